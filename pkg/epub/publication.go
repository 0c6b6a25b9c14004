package epub

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Publication is the single in-memory aggregate root for this library.
// Every chapter, image, and stylesheet is owned by exactly one
// Publication; the build API is the only supported way to mutate it.
type Publication struct {
	Metadata DublinCoreMetadata

	chapters       map[string]*Chapter
	chapterOrder   []string // insertion order, for get_all_chapters
	rootChapterIDs []string

	images        map[string]*Image
	imageOrder    []string
	stylesheets   map[string]*Stylesheet
	styleOrder    []string

	chapterCounter int
	untitledCount  int

	Options Options
}

// New constructs a Publication, validating required metadata, filling
// in defaults for missing optional fields, and injecting the default
// stylesheet when requested.
func New(metadata DublinCoreMetadata, options Options) (*Publication, error) {
	if strings.TrimSpace(metadata.Title) == "" {
		return nil, &InvalidMetadataError{Field: "title"}
	}
	if strings.TrimSpace(metadata.Creator) == "" {
		return nil, &InvalidMetadataError{Field: "creator"}
	}
	if metadata.Language == "" {
		metadata.Language = "en"
	}
	if metadata.Identifier == "" {
		metadata.Identifier = uuid.NewString()
	}
	if metadata.Date == "" {
		metadata.Date = time.Now().UTC().Format("2006-01-02")
	}
	if options.TitleExtraction == nil {
		options.TitleExtraction = DefaultOptions().TitleExtraction
	}

	p := &Publication{
		Metadata:    metadata,
		chapters:    make(map[string]*Chapter),
		images:      make(map[string]*Image),
		stylesheets: make(map[string]*Stylesheet),
		Options:     options,
	}

	if options.AddDefaultStylesheet {
		id := "style-" + uuid.NewString()
		p.stylesheets[id] = &Stylesheet{
			ID:       id,
			Filename: defaultStylesheetFilename,
			Content:  defaultStylesheetContent,
		}
		p.styleOrder = append(p.styleOrder, id)
	}

	return p, nil
}

// AddChapterOptions are the inputs to AddChapter.
type AddChapterOptions struct {
	Title        string
	Content      string
	ParentID     string
	HeadingLevel int
	Linear       *bool
}

// AddChapter mints a new chapter, assigning it the next reading-order
// position and a deterministic filename derived from the chapter
// counter (never from the title).
func (p *Publication) AddChapter(opts AddChapterOptions) (string, error) {
	if opts.ParentID != "" {
		if _, ok := p.chapters[opts.ParentID]; !ok {
			return "", &UnknownParentError{ParentID: opts.ParentID}
		}
	}
	headingLevel := opts.HeadingLevel
	if headingLevel == 0 {
		headingLevel = 1
	}
	if headingLevel < 1 || headingLevel > 6 {
		return "", &InvalidHeadingLevelError{Level: headingLevel}
	}
	linear := true
	if opts.Linear != nil {
		linear = *opts.Linear
	}

	id := "chapter-" + uuid.NewString()
	p.chapterCounter++
	filename := chapterFilename(p.chapterCounter)

	c := &Chapter{
		ID:           id,
		Title:        opts.Title,
		Body:         InlineBody{Markup: opts.Content},
		Filename:     filename,
		ParentID:     opts.ParentID,
		Order:        p.nextOrder(),
		HeadingLevel: headingLevel,
		Linear:       linear,
	}
	p.chapters[id] = c
	p.chapterOrder = append(p.chapterOrder, id)

	if opts.ParentID == "" {
		p.rootChapterIDs = append(p.rootChapterIDs, id)
	} else {
		parent := p.chapters[opts.ParentID]
		parent.ChildIDs = append(parent.ChildIDs, id)
	}

	return id, nil
}

func (p *Publication) nextOrder() int {
	max := -1
	for _, id := range p.chapterOrder {
		if o := p.chapters[id].Order; o > max {
			max = o
		}
	}
	return max + 1
}

func chapterFilename(n int) string {
	return "text/chapter-" + strconv.Itoa(n) + ".xhtml"
}

// SetChapterContent replaces a chapter's inline markup wholesale.
func (p *Publication) SetChapterContent(id, content string) error {
	c, ok := p.chapters[id]
	if !ok {
		return &UnknownChapterError{ID: id}
	}
	c.Body = InlineBody{Markup: content}
	return nil
}

// AppendToChapter concatenates content onto a chapter's existing markup.
func (p *Publication) AppendToChapter(id, content string) error {
	c, ok := p.chapters[id]
	if !ok {
		return &UnknownChapterError{ID: id}
	}
	c.Body = InlineBody{Markup: c.Content() + content}
	return nil
}

// GetChapter is a pure read returning the chapter with the given id, or
// nil if it does not exist.
func (p *Publication) GetChapter(id string) *Chapter {
	return p.chapters[id]
}

// GetRootChapters returns the top-level chapters in tree order.
func (p *Publication) GetRootChapters() []*Chapter {
	out := make([]*Chapter, 0, len(p.rootChapterIDs))
	for _, id := range p.rootChapterIDs {
		out = append(out, p.chapters[id])
	}
	return out
}

// GetAllChapters returns every chapter in insertion order.
func (p *Publication) GetAllChapters() []*Chapter {
	out := make([]*Chapter, 0, len(p.chapterOrder))
	for _, id := range p.chapterOrder {
		out = append(out, p.chapters[id])
	}
	return out
}

// DeleteChapter removes a chapter and its transitive descendants,
// unlinking it from its parent's child list (or the root list). Other
// chapters' Order values are left untouched, so holes may appear.
func (p *Publication) DeleteChapter(id string) error {
	c, ok := p.chapters[id]
	if !ok {
		return &UnknownChapterError{ID: id}
	}

	var collect func(string)
	toDelete := make(map[string]bool)
	collect = func(cid string) {
		toDelete[cid] = true
		if ch, ok := p.chapters[cid]; ok {
			for _, childID := range ch.ChildIDs {
				collect(childID)
			}
		}
	}
	collect(id)

	if c.ParentID == "" {
		p.rootChapterIDs = removeString(p.rootChapterIDs, id)
	} else if parent, ok := p.chapters[c.ParentID]; ok {
		parent.ChildIDs = removeString(parent.ChildIDs, id)
	}

	for cid := range toDelete {
		delete(p.chapters, cid)
	}
	p.chapterOrder = filterStrings(p.chapterOrder, toDelete)

	return nil
}

func removeString(s []string, target string) []string {
	out := s[:0:0]
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func filterStrings(s []string, exclude map[string]bool) []string {
	out := s[:0:0]
	for _, v := range s {
		if !exclude[v] {
			out = append(out, v)
		}
	}
	return out
}

// AddImageOptions are the inputs to AddImage.
type AddImageOptions struct {
	Filename string
	Data     []byte
	Alt      string
	IsCover  bool
}

// AddImage sanitizes the filename, derives a MIME type from its
// extension, and stores the image. Rejects unrecognized extensions.
func (p *Publication) AddImage(opts AddImageOptions) (string, error) {
	ext := extensionOf(opts.Filename)
	mimeType, ok := imageMimeTypes[ext]
	if !ok {
		return "", &InvalidImageExtensionError{Filename: opts.Filename}
	}

	sanitized := SanitizeFilename(opts.Filename)
	filename := "images/" + sanitized

	id := "image-" + uuid.NewString()
	p.images[id] = &Image{
		ID:       id,
		Filename: filename,
		Data:     opts.Data,
		MimeType: mimeType,
		Alt:      opts.Alt,
		IsCover:  opts.IsCover,
	}
	p.imageOrder = append(p.imageOrder, id)
	return id, nil
}

// AddStylesheetOptions are the inputs to AddStylesheet.
type AddStylesheetOptions struct {
	Filename string
	Content  string
}

// AddStylesheet sanitizes the filename identically to AddImage and
// stores the stylesheet text.
func (p *Publication) AddStylesheet(opts AddStylesheetOptions) (string, error) {
	sanitized := SanitizeFilename(opts.Filename)
	if !strings.HasSuffix(sanitized, ".css") {
		sanitized += ".css"
	}
	filename := "css/" + sanitized

	id := "style-" + uuid.NewString()
	p.stylesheets[id] = &Stylesheet{
		ID:       id,
		Filename: filename,
		Content:  opts.Content,
	}
	p.styleOrder = append(p.styleOrder, id)
	return id, nil
}

// GetAllImages is a pure read returning every image in insertion order.
func (p *Publication) GetAllImages() []*Image {
	out := make([]*Image, 0, len(p.imageOrder))
	for _, id := range p.imageOrder {
		out = append(out, p.images[id])
	}
	return out
}

// GetAllStylesheets is a pure read returning every stylesheet in
// insertion order.
func (p *Publication) GetAllStylesheets() []*Stylesheet {
	out := make([]*Stylesheet, 0, len(p.styleOrder))
	for _, id := range p.styleOrder {
		out = append(out, p.stylesheets[id])
	}
	return out
}

// CoverImage returns the image marked IsCover, or nil when none is set.
// This is a convenience not named explicitly in the build API but a
// natural read given the Image.IsCover field.
func (p *Publication) CoverImage() *Image {
	for _, id := range p.imageOrder {
		if img := p.images[id]; img.IsCover {
			return img
		}
	}
	return nil
}

// SetMetadata shallow-merges partial into the existing metadata: only
// non-zero fields on partial overwrite the corresponding field.
func (p *Publication) SetMetadata(partial DublinCoreMetadata) {
	if partial.Title != "" {
		p.Metadata.Title = partial.Title
	}
	if partial.Creator != "" {
		p.Metadata.Creator = partial.Creator
	}
	if partial.Language != "" {
		p.Metadata.Language = partial.Language
	}
	if partial.Identifier != "" {
		p.Metadata.Identifier = partial.Identifier
	}
	if partial.Date != "" {
		p.Metadata.Date = partial.Date
	}
	if partial.Publisher != "" {
		p.Metadata.Publisher = partial.Publisher
	}
	if partial.Description != "" {
		p.Metadata.Description = partial.Description
	}
	if partial.Subject != nil {
		p.Metadata.Subject = partial.Subject
	}
	if partial.Rights != "" {
		p.Metadata.Rights = partial.Rights
	}
	if partial.Contributor != nil {
		p.Metadata.Contributor = partial.Contributor
	}
	if partial.Type != "" {
		p.Metadata.Type = partial.Type
	}
	if partial.Format != "" {
		p.Metadata.Format = partial.Format
	}
	if partial.Source != "" {
		p.Metadata.Source = partial.Source
	}
	if partial.Relation != "" {
		p.Metadata.Relation = partial.Relation
	}
	if partial.Coverage != "" {
		p.Metadata.Coverage = partial.Coverage
	}
}

// Clone deep-copies the publication, including every chapter, image,
// and stylesheet byte buffer, so the copy shares no mutable state with
// the original. Grounded in the merge pipeline's own requirement that
// merges always deep-copy byte buffers and text.
func (p *Publication) Clone() *Publication {
	clone := &Publication{
		Metadata:       p.Metadata,
		chapters:       make(map[string]*Chapter, len(p.chapters)),
		chapterOrder:   append([]string(nil), p.chapterOrder...),
		rootChapterIDs: append([]string(nil), p.rootChapterIDs...),
		images:         make(map[string]*Image, len(p.images)),
		imageOrder:     append([]string(nil), p.imageOrder...),
		stylesheets:    make(map[string]*Stylesheet, len(p.stylesheets)),
		styleOrder:     append([]string(nil), p.styleOrder...),
		chapterCounter: p.chapterCounter,
		untitledCount:  p.untitledCount,
		Options:        p.Options,
	}
	clone.Metadata.Subject = append([]string(nil), p.Metadata.Subject...)
	clone.Metadata.Contributor = append([]string(nil), p.Metadata.Contributor...)

	for id, c := range p.chapters {
		cp := *c
		cp.ChildIDs = append([]string(nil), c.ChildIDs...)
		clone.chapters[id] = &cp
	}
	for id, img := range p.images {
		cp := *img
		cp.Data = append([]byte(nil), img.Data...)
		clone.images[id] = &cp
	}
	for id, s := range p.stylesheets {
		cp := *s
		clone.stylesheets[id] = &cp
	}
	return clone
}

var imageMimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

func extensionOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// SanitizeFilename keeps only alphanumerics, dot, underscore and hyphen,
// lower-cases the result, and strips leading/trailing dots. Exported so
// callers computing a destination filename ahead of calling AddImage or
// AddStylesheet (e.g. the merge pipeline) derive the same name.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".")
}

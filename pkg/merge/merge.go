// Package merge implements the merge pipeline: splicing a source
// publication's chapters under a new section chapter in a destination
// publication, deduplicating stylesheets and images by content hash,
// and rewriting embedded resource references in copied markup.
package merge

import (
	"crypto/sha1"
	"fmt"
	"path"
	"regexp"

	"github.com/kdahlquist/epubkit/pkg/epub"
)

// SeenResources tracks content hashes already copied into a destination
// publication across possibly many AddPublicationAsChapter calls, so
// repeated merges into the same destination keep deduplicating.
type SeenResources struct {
	Stylesheets map[[20]byte]string // hash -> destination filename
	Images      map[[20]byte]string
}

// NewSeenResources returns an empty dedup tracker.
func NewSeenResources() *SeenResources {
	return &SeenResources{
		Stylesheets: make(map[[20]byte]string),
		Images:      make(map[[20]byte]string),
	}
}

// SectionOptions configures the section chapter AddPublicationAsChapter
// creates to hold the source's copied roots.
type SectionOptions struct {
	Title        string
	HeadingLevel int
}

// AddPublicationAsChapter copies every root chapter (and its
// descendants) from source into dest under a newly created section
// chapter, deduplicating stylesheets and images by content hash and
// rewriting src="..." references in copied markup to point at their
// resolved destination paths. bookNumber namespaces copied resource
// filenames (book<N>-<basename>) so same-named resources from different
// sources never collide.
func AddPublicationAsChapter(dest *epub.Publication, section SectionOptions, source *epub.Publication, seen *SeenResources, bookNumber int) (string, error) {
	sectionID, err := dest.AddChapter(epub.AddChapterOptions{
		Title:        section.Title,
		HeadingLevel: section.HeadingLevel,
	})
	if err != nil {
		return "", err
	}

	styleMap, err := copyStylesheets(dest, source, seen, bookNumber)
	if err != nil {
		return "", err
	}
	imageMap, err := copyImages(dest, source, seen, bookNumber)
	if err != nil {
		return "", err
	}

	for _, root := range source.GetRootChapters() {
		if err := copyChapterTree(dest, source, root, sectionID, styleMap, imageMap); err != nil {
			return "", err
		}
	}

	return sectionID, nil
}

// copyStylesheets copies every non-default stylesheet from source into
// dest, deduplicating by content hash. The destination basename is
// computed from the *original* filename before the book-number prefix
// is applied — the source this library is modeled on instead ran
// path.Base on an already-prefixed name, producing filenames like
// "styles/book1-images-diagram.png"; that defect is fixed here rather
// than preserved.
func copyStylesheets(dest, source *epub.Publication, seen *SeenResources, bookNumber int) (map[string]string, error) {
	styleMap := make(map[string]string)
	for _, ss := range source.GetAllStylesheets() {
		if ss.Filename == "css/styles.css" {
			continue // the default stylesheet is never copied across a merge
		}
		hash := sha1.Sum([]byte(ss.Content))
		if existing, ok := seen.Stylesheets[hash]; ok {
			styleMap[ss.Filename] = existing
			continue
		}

		newBasename := fmt.Sprintf("book%d-%s", bookNumber, path.Base(ss.Filename))
		id, err := dest.AddStylesheet(epub.AddStylesheetOptions{Filename: newBasename, Content: ss.Content})
		if err != nil {
			return nil, err
		}
		resolved := filenameOfStylesheet(dest, id)
		styleMap[ss.Filename] = resolved
		seen.Stylesheets[hash] = resolved
	}
	return styleMap, nil
}

// copyImages mirrors copyStylesheets for images. is_cover is
// deliberately not preserved: only the source publication, if any,
// keeps its cover designation, and copies are never promoted.
func copyImages(dest, source *epub.Publication, seen *SeenResources, bookNumber int) (map[string]string, error) {
	imageMap := make(map[string]string)
	for _, img := range source.GetAllImages() {
		hash := sha1.Sum(img.Data)
		if existing, ok := seen.Images[hash]; ok {
			imageMap[img.Filename] = existing
			continue
		}

		newBasename := fmt.Sprintf("book%d-%s", bookNumber, path.Base(img.Filename))
		id, err := dest.AddImage(epub.AddImageOptions{Filename: newBasename, Data: append([]byte(nil), img.Data...)})
		if err != nil {
			return nil, err
		}
		resolved := filenameOfImage(dest, id)
		imageMap[img.Filename] = resolved
		seen.Images[hash] = resolved
	}
	return imageMap, nil
}

func filenameOfStylesheet(p *epub.Publication, id string) string {
	for _, ss := range p.GetAllStylesheets() {
		if ss.ID == id {
			return ss.Filename
		}
	}
	return ""
}

func filenameOfImage(p *epub.Publication, id string) string {
	for _, img := range p.GetAllImages() {
		if img.ID == id {
			return img.Filename
		}
	}
	return ""
}

func copyChapterTree(dest *epub.Publication, source *epub.Publication, c *epub.Chapter, newParentID string, styleMap, imageMap map[string]string) error {
	rewritten := rewriteReferences(c.Content(), styleMap, imageMap)
	linear := c.Linear

	newID, err := dest.AddChapter(epub.AddChapterOptions{
		Title:        c.Title,
		Content:      rewritten,
		ParentID:     newParentID,
		HeadingLevel: c.HeadingLevel,
		Linear:       &linear,
	})
	if err != nil {
		return err
	}

	for _, childID := range c.ChildIDs {
		child := source.GetChapter(childID)
		if child == nil || child.IsFragment() {
			continue
		}
		if err := copyChapterTree(dest, source, child, newID, styleMap, imageMap); err != nil {
			return err
		}
	}
	return nil
}

// rewriteReferences applies the merge pipeline's four replacement
// patterns for every (old, new) pair in styleMap and imageMap, in that
// order. The rewriter operates on raw markup text rather than a parsed
// tree, a deliberate limitation carried over unchanged: only the src
// attribute is rewritten, so href= stylesheet links are untouched.
func rewriteReferences(markup string, styleMap, imageMap map[string]string) string {
	for old, new := range styleMap {
		markup = rewriteOne(markup, old, new)
	}
	for old, new := range imageMap {
		markup = rewriteOne(markup, old, new)
	}
	return markup
}

func rewriteOne(markup, oldPath, newPath string) string {
	base := path.Base(oldPath)
	patterns := []string{
		`src=(["'])\.\./` + regexp.QuoteMeta(oldPath) + `["']`,
		`src=(["'])` + regexp.QuoteMeta(oldPath) + `["']`,
		`src=(["'])\.\./` + regexp.QuoteMeta(base) + `["']`,
		`src=(["'])` + regexp.QuoteMeta(base) + `["']`,
	}
	replacement := fmt.Sprintf(`src="../%s"`, newPath)
	for _, pat := range patterns {
		re := regexp.MustCompile(pat)
		markup = re.ReplaceAllString(markup, replacement)
	}
	return markup
}

// Package deserialize implements the deserialization orchestrator:
// safely unpacking an archive, locating the package document, and
// reconstructing the hierarchical chapter tree from whichever
// navigation format the archive carries, falling back to reading-order
// when navigation is missing or malformed.
package deserialize

import (
	"fmt"
	"strings"

	"github.com/kdahlquist/epubkit/pkg/archive"
	"github.com/kdahlquist/epubkit/pkg/epub"
	"github.com/kdahlquist/epubkit/pkg/markup"
	"github.com/kdahlquist/epubkit/pkg/navxhtml"
	"github.com/kdahlquist/epubkit/pkg/ncx"
	"github.com/kdahlquist/epubkit/pkg/opf"
)

// navNode is the format-independent shape both navxhtml.Item and
// ncx.Point are normalized into, so the tree walk in run() doesn't need
// to know which navigation format produced it.
type navNode struct {
	Label    string
	File     string
	Fragment string
	Children []navNode
}

// Result bundles the reconstructed publication with deserialization
// diagnostics. Malformed navigation and orphan chapters are warnings,
// not errors, per the orchestrator's fallback policy.
type Result struct {
	Publication *epub.Publication
	Report      *epub.ValidationReport
}

// Deserialize parses raw archive bytes into a Result. stage identifies
// the caller-visible entry point ("file" or "buffer") for error-message
// prefixing, matching the propagation policy that wraps deserialization
// errors with "Failed to parse EPUB file: …" / "Failed to parse EPUB
// buffer: …".
func Deserialize(data []byte, opts epub.Options, stage string) (*Result, error) {
	res, err := deserialize(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EPUB %s: %w", stage, err)
	}
	return res, nil
}

func deserialize(data []byte, opts epub.Options) (*Result, error) {
	a, err := archive.Read(data)
	if err != nil {
		return nil, err
	}

	packageData, ok := a.Files[a.PackagePath]
	if !ok {
		return nil, &archive.ErrMissingPackageDocument{Path: a.PackagePath}
	}
	pkg, err := opf.Parse(packageData)
	if err != nil {
		return nil, err
	}

	pub, err := epub.New(pkg.Metadata, epub.Options{
		AddDefaultStylesheet: false,
		IgnoreHeadTitle:      opts.IgnoreHeadTitle,
		TitleExtraction:      opts.TitleExtraction,
	})
	if err != nil {
		return nil, err
	}
	report := &epub.ValidationReport{}

	manifestByID := pkg.ManifestByID()
	hrefToID := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefToID[item.Href] = item.ID
	}

	spineOrder := make(map[string]int, len(pkg.Spine))
	spineLinear := make(map[string]bool, len(pkg.Spine))
	for i, item := range pkg.Spine {
		spineOrder[item.IDRef] = i
		spineLinear[item.IDRef] = item.Linear
	}

	visited := make(map[string]string) // href -> chapter id
	navOrder := 0

	tree, navErr := loadNavTree(a, pkg, manifestByID)
	if navErr != nil {
		report.Warnings = append(report.Warnings, epub.ValidationMessage{
			Severity: epub.SeverityWarning,
			Message:  fmt.Sprintf("navigation unavailable, falling back to reading order: %v", navErr),
		})
	} else {
		walkNav(pub, a, tree, "", opts, &visited, &navOrder, hrefToID, spineOrder, spineLinear, report)
	}

	addOrphans(pub, a, pkg, hrefToID, visited, opts, report)

	if err := restoreResources(pub, a, pkg); err != nil {
		return nil, err
	}

	return &Result{Publication: pub, Report: report}, nil
}

// loadNavTree locates and parses the navigation resource, dispatching
// on format version the way the spec's §4.7 step 2 requires: v3 by the
// manifest item with properties containing "nav", v2 by media type
// application/x-dtbncx+xml.
func loadNavTree(a *archive.Archive, pkg *opf.ParsedPackage, manifestByID map[string]opf.ManifestItem) ([]navNode, error) {
	if pkg.Version == epub.V3 {
		for _, item := range pkg.Manifest {
			if containsToken(item.Properties, "nav") {
				data, ok := a.Files[a.PackageDir()+item.Href]
				if !ok {
					return nil, fmt.Errorf("navigation document %q is missing from archive", item.Href)
				}
				items, err := navxhtml.Parse(data)
				if err != nil {
					return nil, err
				}
				return fromNavItems(items), nil
			}
		}
		return nil, fmt.Errorf("no manifest item with properties=\"nav\"")
	}

	for _, item := range pkg.Manifest {
		if item.MediaType == "application/x-dtbncx+xml" {
			data, ok := a.Files[a.PackageDir()+item.Href]
			if !ok {
				return nil, fmt.Errorf("NCX document %q is missing from archive", item.Href)
			}
			doc, err := ncx.Parse(data)
			if err != nil {
				return nil, err
			}
			return fromNavPoints(doc.NavMap), nil
		}
	}
	return nil, fmt.Errorf("no manifest item with media-type application/x-dtbncx+xml")
}

func fromNavItems(items []navxhtml.Item) []navNode {
	out := make([]navNode, 0, len(items))
	for _, it := range items {
		out = append(out, navNode{
			Label:    it.Label,
			File:     it.Href,
			Fragment: it.Fragment,
			Children: fromNavItems(it.Children),
		})
	}
	return out
}

func fromNavPoints(points []ncx.Point) []navNode {
	out := make([]navNode, 0, len(points))
	for _, p := range points {
		file, frag, _ := strings.Cut(p.Src, "#")
		out = append(out, navNode{
			Label:    p.Label,
			File:     file,
			Fragment: frag,
			Children: fromNavPoints(p.Children),
		})
	}
	return out
}

func containsToken(value, token string) bool {
	for _, t := range strings.Fields(value) {
		if t == token {
			return true
		}
	}
	return false
}

func walkNav(
	pub *epub.Publication,
	a *archive.Archive,
	nodes []navNode,
	parentID string,
	opts epub.Options,
	visited *map[string]string,
	navOrder *int,
	hrefToID map[string]string,
	spineOrder map[string]int,
	spineLinear map[string]bool,
	report *epub.ValidationReport,
) {
	for _, node := range nodes {
		if node.Fragment != "" {
			backingID := ensureBackingChapter(pub, a, node.File, parentID, opts, visited, navOrder, hrefToID, spineOrder, spineLinear, report)
			fragID := pub.RestoreChapter(epub.RestoreChapterOptions{
				Title:        node.Label,
				Body:         epub.FragmentBody{SourceChapterID: backingID, Fragment: node.Fragment},
				ParentID:     parentID,
				Order:        *navOrder,
				HeadingLevel: 2,
				Linear:       true,
			})
			*navOrder++
			walkNav(pub, a, node.Children, fragID, opts, visited, navOrder, hrefToID, spineOrder, spineLinear, report)
			continue
		}

		existingID, seen := (*visited)[node.File]
		var chapterID string
		if seen {
			chapterID = existingID
			existing := pub.GetChapter(existingID)
			if existing.ParentID != parentID {
				pub.ReparentChapter(existingID, parentID)
			}
			if titleSourceConfigured(opts, epub.TitleSourceNav) {
				pub.SetChapterTitle(existingID, node.Label)
			}
		} else {
			chapterID = ensureBackingChapter(pub, a, node.File, parentID, opts, visited, navOrder, hrefToID, spineOrder, spineLinear, report)
		}

		walkNav(pub, a, node.Children, chapterID, opts, visited, navOrder, hrefToID, spineOrder, spineLinear, report)
	}
}

// ensureBackingChapter creates the chapter backing file F if it hasn't
// been seen yet, or returns the existing chapter's id.
func ensureBackingChapter(
	pub *epub.Publication,
	a *archive.Archive,
	file, parentID string,
	opts epub.Options,
	visited *map[string]string,
	navOrder *int,
	hrefToID map[string]string,
	spineOrder map[string]int,
	spineLinear map[string]bool,
	report *epub.ValidationReport,
) string {
	if id, ok := (*visited)[file]; ok {
		return id
	}

	content, ok := a.Files[a.PackageDir()+file]
	if !ok {
		report.Warnings = append(report.Warnings, epub.ValidationMessage{
			Severity: epub.SeverityWarning,
			Message:  fmt.Sprintf("navigation references missing file %q", file),
		})
		content = nil
	}

	extracted, _ := markup.Extract(content, toMarkupSources(opts.TitleExtraction), opts.IgnoreHeadTitle, "", pub.UntitledCounter())

	order := 9999
	linear := false
	if manifestID, ok := hrefToID[file]; ok {
		if o, ok := spineOrder[manifestID]; ok {
			order = o
			linear = spineLinear[manifestID]
		} else {
			report.Warnings = append(report.Warnings, epub.ValidationMessage{
				Severity: epub.SeverityWarning,
				Message:  fmt.Sprintf("chapter file %q is missing from the spine", file),
			})
		}
	}

	id := pub.RestoreChapter(epub.RestoreChapterOptions{
		Title:        extracted.Title,
		Body:         epub.InlineBody{Markup: extracted.Body},
		Filename:     file,
		ParentID:     parentID,
		Order:        order,
		HeadingLevel: extracted.HeadingLevel,
		Linear:       linear,
	})
	(*visited)[file] = id
	*navOrder++
	return id
}

func titleSourceConfigured(opts epub.Options, want epub.TitleSource) bool {
	sources := opts.TitleExtraction
	if sources == nil {
		sources = epub.DefaultOptions().TitleExtraction
	}
	for _, s := range sources {
		if s == want {
			return true
		}
	}
	return false
}

func toMarkupSources(sources []epub.TitleSource) []markup.TitleSource {
	if sources == nil {
		sources = epub.DefaultOptions().TitleExtraction
	}
	out := make([]markup.TitleSource, len(sources))
	for i, s := range sources {
		out[i] = markup.TitleSource(s)
	}
	return out
}

// addOrphans walks the spine in order and adds any file never reached
// through navigation as a root chapter with a warning, per §4.7 step 6.
func addOrphans(pub *epub.Publication, a *archive.Archive, pkg *opf.ParsedPackage, hrefToID map[string]string, visited map[string]string, opts epub.Options, report *epub.ValidationReport) {
	idToHref := make(map[string]string, len(pkg.Manifest))
	for href, id := range hrefToID {
		idToHref[id] = href
	}

	for order, item := range pkg.Spine {
		href, ok := idToHref[item.IDRef]
		if !ok {
			continue
		}
		if _, ok := visited[href]; ok {
			continue
		}

		content := a.Files[a.PackageDir()+href]
		extracted, _ := markup.Extract(content, toMarkupSources(opts.TitleExtraction), opts.IgnoreHeadTitle, "", pub.UntitledCounter())

		id := pub.RestoreChapter(epub.RestoreChapterOptions{
			Title:        extracted.Title,
			Body:         epub.InlineBody{Markup: extracted.Body},
			Filename:     href,
			ParentID:     "",
			Order:        order,
			HeadingLevel: extracted.HeadingLevel,
			Linear:       item.Linear,
		})
		visited[href] = id

		report.Warnings = append(report.Warnings, epub.ValidationMessage{
			Severity: epub.SeverityWarning,
			Message:  fmt.Sprintf("orphan chapter: %q is in the spine but not reachable from navigation", href),
		})
	}
}

// restoreResources adds every image and stylesheet named in the
// manifest to the reconstructed publication.
func restoreResources(pub *epub.Publication, a *archive.Archive, pkg *opf.ParsedPackage) error {
	for _, item := range pkg.Manifest {
		data, ok := a.Files[a.PackageDir()+item.Href]
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(item.MediaType, "image/"):
			isCover := pkg.Version == epub.V3 && containsToken(item.Properties, "cover-image")
			if _, err := pub.AddImage(epub.AddImageOptions{
				Filename: lastSegment(item.Href),
				Data:     data,
				IsCover:  isCover,
			}); err != nil {
				return err
			}
		case item.MediaType == "text/css":
			if _, err := pub.AddStylesheet(epub.AddStylesheetOptions{
				Filename: lastSegment(item.Href),
				Content:  string(data),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func lastSegment(href string) string {
	idx := strings.LastIndex(href, "/")
	if idx < 0 {
		return href
	}
	return href[idx+1:]
}

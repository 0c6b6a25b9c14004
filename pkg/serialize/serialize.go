// Package serialize converts an in-memory Publication into a conformant
// EPUB archive for either format version. It is the top-level
// orchestrator wiring pkg/archive, pkg/opf, pkg/navxhtml, pkg/ncx, and
// pkg/markup together; each of those packages only has to speak its own
// document type, not the full archive shape.
package serialize

import (
	"os"
	"sort"
	"time"

	"github.com/kdahlquist/epubkit/pkg/archive"
	"github.com/kdahlquist/epubkit/pkg/epub"
	"github.com/kdahlquist/epubkit/pkg/markup"
	"github.com/kdahlquist/epubkit/pkg/navxhtml"
	"github.com/kdahlquist/epubkit/pkg/ncx"
	"github.com/kdahlquist/epubkit/pkg/opf"
)

const packageDir = "EPUB/"

// Export serializes pub into EPUB archive bytes for opts.Version. When
// opts.Validate (default true) is set, Publication.Validate() must
// report no errors or Export fails with ValidationRejectedError.
func Export(pub *epub.Publication, opts epub.ExportOptions) ([]byte, error) {
	shouldValidate := opts.Validate || !opts.ValidateSet
	if shouldValidate {
		report := pub.Validate()
		if !report.IsValid() {
			msgs := make([]string, 0, len(report.Errors))
			for _, e := range report.Errors {
				msgs = append(msgs, e.Message)
			}
			return nil, &epub.ValidationRejectedError{Errors: msgs}
		}
	}

	entries := make(map[string][]byte)
	var order []string
	add := func(name string, data []byte) {
		entries[name] = data
		order = append(order, name)
	}

	entries["mimetype"] = []byte("application/epub+zip")
	entries["META-INF/container.xml"] = archive.NewContainerXML(packageDir + "package.opf")

	manifest, spine, ncxItemID := buildManifestAndSpine(pub, opts.Version)

	for _, img := range pub.GetAllImages() {
		add(packageDir+img.Filename, img.Data)
	}
	for _, ss := range pub.GetAllStylesheets() {
		add(packageDir+ss.Filename, []byte(ss.Content))
	}

	stylesheetRefs := stylesheetRefsFor(pub)
	for _, c := range pub.GetAllChapters() {
		if c.IsFragment() {
			continue
		}
		doc := markup.Emit(markup.EmitOptions{
			Version:      int(opts.Version) + 2,
			ChapterID:    c.ID,
			Title:        c.Title,
			HeadingLevel: c.HeadingLevel,
			Body:         c.Content(),
			Stylesheets:  stylesheetRefs,
		})
		add(packageDir+c.Filename, doc)
	}

	if opts.Version == epub.V3 {
		navDoc := navxhtml.Emit(pub.Metadata.Title, buildNavTree(pub, pub.GetRootChapters()))
		add(packageDir+"nav.xhtml", navDoc)
	} else {
		ncxDoc := ncx.Emit(ncx.Document{
			UID:    pub.Metadata.Identifier,
			Title:  pub.Metadata.Title,
			Author: pub.Metadata.Creator,
			NavMap: buildNavPoints(pub, pub.GetRootChapters()),
		})
		add(packageDir+"toc.ncx", ncxDoc)
	}

	packageDoc := opf.Emit(opf.Document{
		Version:    opts.Version,
		Metadata:   pub.Metadata,
		Manifest:   manifest,
		Spine:      spine,
		NCXItemID:  ncxItemID,
		ModifiedAt: modifiedTimestamp(),
	})
	add(packageDir+"package.opf", packageDoc)

	return archive.Write(entries, order, archive.WriteOptions{Compression: opts.Compression})
}

// ExportToFile serializes pub and writes it to path.
func ExportToFile(pub *epub.Publication, path string, opts epub.ExportOptions) error {
	data, err := Export(pub, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func stylesheetRefsFor(pub *epub.Publication) []markup.StylesheetRef {
	var refs []markup.StylesheetRef
	for _, ss := range pub.GetAllStylesheets() {
		refs = append(refs, markup.StylesheetRef{Href: "../" + ss.Filename})
	}
	return refs
}

func buildManifestAndSpine(pub *epub.Publication, version epub.FormatVersion) ([]opf.ManifestItem, []opf.SpineItem, string) {
	var manifest []opf.ManifestItem
	var spine []opf.SpineItem

	for _, img := range pub.GetAllImages() {
		properties := ""
		if version == epub.V3 && img.IsCover {
			properties = "cover-image"
		}
		manifest = append(manifest, opf.ManifestItem{
			ID: img.ID, Href: img.Filename, MediaType: img.MimeType, Properties: properties,
		})
	}
	for _, ss := range pub.GetAllStylesheets() {
		manifest = append(manifest, opf.ManifestItem{ID: ss.ID, Href: ss.Filename, MediaType: "text/css"})
	}
	chapters := pub.GetAllChapters()
	sort.SliceStable(chapters, func(i, j int) bool { return chapters[i].Order < chapters[j].Order })

	for _, c := range chapters {
		if c.IsFragment() {
			continue
		}
		manifest = append(manifest, opf.ManifestItem{
			ID: c.ID, Href: c.Filename, MediaType: "application/xhtml+xml",
		})
		item := opf.SpineItem{IDRef: c.ID, Linear: c.Linear, LinearSet: !c.Linear}
		spine = append(spine, item)
	}

	ncxItemID := ""
	if version == epub.V3 {
		manifest = append(manifest, opf.ManifestItem{
			ID: "nav", Href: "nav.xhtml", MediaType: "application/xhtml+xml", Properties: "nav",
		})
	} else {
		ncxItemID = "ncx"
		manifest = append(manifest, opf.ManifestItem{
			ID: "ncx", Href: "toc.ncx", MediaType: "application/x-dtbncx+xml",
		})
	}

	return manifest, spine, ncxItemID
}

func buildNavTree(pub *epub.Publication, chapters []*epub.Chapter) []navxhtml.Item {
	var items []navxhtml.Item
	for _, c := range chapters {
		item := navxhtml.Item{Label: c.Title, Href: c.Filename}
		var children []*epub.Chapter
		for _, id := range c.ChildIDs {
			children = append(children, pub.GetChapter(id))
		}
		item.Children = buildNavTree(pub, children)
		items = append(items, item)
	}
	return items
}

func buildNavPoints(pub *epub.Publication, chapters []*epub.Chapter) []ncx.Point {
	var points []ncx.Point
	for _, c := range chapters {
		point := ncx.Point{ID: "navpoint-" + c.ID, Label: c.Title, Src: c.Filename}
		var children []*epub.Chapter
		for _, id := range c.ChildIDs {
			children = append(children, pub.GetChapter(id))
		}
		point.Children = buildNavPoints(pub, children)
		points = append(points, point)
	}
	return points
}

func modifiedTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

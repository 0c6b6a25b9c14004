// Package opf implements the package-document codec: emitting and
// parsing EPUB/package.opf for both the 2.0 and 3.0 flavors of the
// format.
package opf

import (
	"fmt"
	"strings"

	"github.com/kdahlquist/epubkit/pkg/epub"
)

// ManifestItem is one <item> entry in the package document's manifest.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string // v3 only; "" when absent
}

// SpineItem is one <itemref> entry in the package document's spine.
type SpineItem struct {
	IDRef      string
	Linear     bool
	LinearSet  bool // true when a linear attribute is present; Emit writes linear="no" only when LinearSet && !Linear
	Properties string
}

// Document is the package document's content, independent of its XML
// serialization.
type Document struct {
	Version    epub.FormatVersion
	Metadata   epub.DublinCoreMetadata
	Manifest   []ManifestItem
	Spine      []SpineItem
	NCXItemID  string // v2 only: spine toc= target
	ModifiedAt string // v3 only: dcterms:modified, RFC3339 truncated to seconds
}

// Emit serializes a Document to package.opf bytes for its Version.
func Emit(doc Document) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	if doc.Version == epub.V3 {
		fmt.Fprintf(&b, `<package version="3.0" unique-identifier="pub-id" xml:lang=%q xmlns="http://www.idpf.org/2007/opf">`+"\n", escape(doc.Metadata.Language))
	} else {
		b.WriteString(`<package version="2.0" unique-identifier="pub-id" xmlns="http://www.idpf.org/2007/opf">` + "\n")
	}

	emitMetadata(&b, doc)
	emitManifest(&b, doc)
	emitSpine(&b, doc)

	b.WriteString("</package>\n")
	return []byte(b.String())
}

func emitMetadata(b *strings.Builder, doc Document) {
	b.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	fmt.Fprintf(b, `    <dc:identifier id="pub-id">%s</dc:identifier>`+"\n", escape(doc.Metadata.Identifier))
	fmt.Fprintf(b, "    <dc:title>%s</dc:title>\n", escape(doc.Metadata.Title))
	fmt.Fprintf(b, "    <dc:creator>%s</dc:creator>\n", escape(doc.Metadata.Creator))
	fmt.Fprintf(b, "    <dc:language>%s</dc:language>\n", escape(doc.Metadata.Language))
	fmt.Fprintf(b, "    <dc:date>%s</dc:date>\n", escape(doc.Metadata.Date))

	if doc.Version == epub.V3 {
		modified := doc.ModifiedAt
		fmt.Fprintf(b, `    <meta property="dcterms:modified">%s</meta>`+"\n", escape(modified))
	}

	if doc.Metadata.Publisher != "" {
		fmt.Fprintf(b, "    <dc:publisher>%s</dc:publisher>\n", escape(doc.Metadata.Publisher))
	}
	if doc.Metadata.Description != "" {
		fmt.Fprintf(b, "    <dc:description>%s</dc:description>\n", escape(doc.Metadata.Description))
	}
	for _, s := range doc.Metadata.Subject {
		fmt.Fprintf(b, "    <dc:subject>%s</dc:subject>\n", escape(s))
	}
	if doc.Metadata.Rights != "" {
		fmt.Fprintf(b, "    <dc:rights>%s</dc:rights>\n", escape(doc.Metadata.Rights))
	}
	for _, c := range doc.Metadata.Contributor {
		fmt.Fprintf(b, "    <dc:contributor>%s</dc:contributor>\n", escape(c))
	}

	if doc.Version == epub.V3 {
		if doc.Metadata.Type != "" {
			fmt.Fprintf(b, "    <dc:type>%s</dc:type>\n", escape(doc.Metadata.Type))
		}
		if doc.Metadata.Format != "" {
			fmt.Fprintf(b, "    <dc:format>%s</dc:format>\n", escape(doc.Metadata.Format))
		}
		if doc.Metadata.Source != "" {
			fmt.Fprintf(b, "    <dc:source>%s</dc:source>\n", escape(doc.Metadata.Source))
		}
		if doc.Metadata.Relation != "" {
			fmt.Fprintf(b, "    <dc:relation>%s</dc:relation>\n", escape(doc.Metadata.Relation))
		}
		if doc.Metadata.Coverage != "" {
			fmt.Fprintf(b, "    <dc:coverage>%s</dc:coverage>\n", escape(doc.Metadata.Coverage))
		}
	}

	b.WriteString("  </metadata>\n")
}

func emitManifest(b *strings.Builder, doc Document) {
	b.WriteString("  <manifest>\n")
	for _, item := range doc.Manifest {
		if doc.Version == epub.V3 && item.Properties != "" {
			fmt.Fprintf(b, `    <item id=%q href=%q media-type=%q properties=%q/>`+"\n",
				escape(item.ID), escape(item.Href), escape(item.MediaType), escape(item.Properties))
		} else {
			fmt.Fprintf(b, `    <item id=%q href=%q media-type=%q/>`+"\n",
				escape(item.ID), escape(item.Href), escape(item.MediaType))
		}
	}
	b.WriteString("  </manifest>\n")
}

func emitSpine(b *strings.Builder, doc Document) {
	if doc.Version == epub.V2 && doc.NCXItemID != "" {
		fmt.Fprintf(b, `  <spine toc=%q>`+"\n", escape(doc.NCXItemID))
	} else {
		b.WriteString("  <spine>\n")
	}
	for _, item := range doc.Spine {
		attrs := fmt.Sprintf(`idref=%q`, escape(item.IDRef))
		if item.LinearSet && !item.Linear {
			attrs += ` linear="no"`
		}
		if doc.Version == epub.V3 && item.Properties != "" {
			attrs += fmt.Sprintf(` properties=%q`, escape(item.Properties))
		}
		fmt.Fprintf(b, "    <itemref %s/>\n", attrs)
	}
	b.WriteString("  </spine>\n")
}

func escape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}


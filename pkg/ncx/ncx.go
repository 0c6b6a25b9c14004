// Package ncx implements the EPUB 2 navigation codec: the separate
// toc.ncx XML dialect with a recursive navPoint tree, carrying the
// same table-of-contents information the v3 nav document carries.
package ncx

import (
	"fmt"
	"strings"
)

// Point is one node of a parsed or to-be-emitted navMap tree.
type Point struct {
	ID       string
	Label    string
	Src      string // file, optionally with #fragment
	Children []Point
}

// Document is the NCX's content, independent of its XML serialization.
type Document struct {
	UID       string
	Title     string
	Author    string // "" omits docAuthor
	NavMap    []Point
}

// Emit renders a Document as a toc.ncx byte stream. Depth is computed by
// walking the tree; pagination meta is always "0" since this library
// never tracks print-page mappings.
func Emit(doc Document) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<ncx version="2005-1" xmlns="http://www.daisy.org/z3986/2005/ncx/">` + "\n")
	b.WriteString("  <head>\n")
	fmt.Fprintf(&b, `    <meta name="dtb:uid" content=%q/>`+"\n", escape(doc.UID))
	fmt.Fprintf(&b, `    <meta name="dtb:depth" content="%d"/>`+"\n", depth(doc.NavMap))
	b.WriteString(`    <meta name="dtb:totalPageCount" content="0"/>` + "\n")
	b.WriteString(`    <meta name="dtb:maxPageNumber" content="0"/>` + "\n")
	b.WriteString("  </head>\n")
	fmt.Fprintf(&b, "  <docTitle><text>%s</text></docTitle>\n", escape(doc.Title))
	if doc.Author != "" {
		fmt.Fprintf(&b, "  <docAuthor><text>%s</text></docAuthor>\n", escape(doc.Author))
	}
	b.WriteString("  <navMap>\n")
	playOrder := 1
	emitPoints(&b, doc.NavMap, 2, &playOrder)
	b.WriteString("  </navMap>\n")
	b.WriteString("</ncx>\n")
	return []byte(b.String())
}

func depth(points []Point) int {
	if len(points) == 0 {
		return 0
	}
	maxChild := 0
	for _, p := range points {
		if d := depth(p.Children); d > maxChild {
			maxChild = d
		}
	}
	return 1 + maxChild
}

func emitPoints(b *strings.Builder, points []Point, indent int, playOrder *int) {
	pad := strings.Repeat("  ", indent)
	for _, p := range points {
		fmt.Fprintf(b, `%s<navPoint id=%q playOrder="%d">`+"\n", pad, escape(p.ID), *playOrder)
		*playOrder++
		fmt.Fprintf(b, "%s  <navLabel><text>%s</text></navLabel>\n", pad, escape(p.Label))
		fmt.Fprintf(b, "%s  <content src=%q/>\n", pad, escape(p.Src))
		if len(p.Children) > 0 {
			emitPoints(b, p.Children, indent+1, playOrder)
		}
		fmt.Fprintf(b, "%s</navPoint>\n", pad)
	}
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}

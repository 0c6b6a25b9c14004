// Package navxhtml implements the EPUB 3 navigation document codec: the
// XHTML file carrying a <nav epub:type="toc"> tree (and optionally
// page-list/landmarks nav elements), emitted from and parsed back into
// a chapter tree.
package navxhtml

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Item is one node of a parsed or to-be-emitted navigation tree.
type Item struct {
	Label    string
	Href     string // file part, without fragment
	Fragment string // "" unless the href carried a #fragment
	Children []Item
}

// Emit renders a table-of-contents tree as a v3 navigation document.
func Emit(title string, toc []Item) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	fmt.Fprintf(&b, "<head><title>%s</title></head>\n", escape(title))
	b.WriteString("<body>\n")
	b.WriteString(`  <nav epub:type="toc">` + "\n")
	fmt.Fprintf(&b, "    <h1>%s</h1>\n", escape(title))
	emitList(&b, toc, 2)
	b.WriteString("  </nav>\n")
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

func emitList(b *strings.Builder, items []Item, indent int) {
	if len(items) == 0 {
		return
	}
	pad := strings.Repeat("  ", indent)
	fmt.Fprintf(b, "%s<ol>\n", pad)
	for _, item := range items {
		href := item.Href
		if item.Fragment != "" {
			href += "#" + item.Fragment
		}
		fmt.Fprintf(b, "%s  <li><a href=%q>%s</a>", pad, escape(href), escape(item.Label))
		if len(item.Children) > 0 {
			b.WriteString("\n")
			emitList(b, item.Children, indent+2)
			fmt.Fprintf(b, "%s  </li>\n", pad)
		} else {
			b.WriteString("</li>\n")
		}
	}
	fmt.Fprintf(b, "%s</ol>\n", pad)
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}

// ErrNoTocNav is returned when a navigation document has no
// <nav epub:type="toc">.
var ErrNoTocNav = fmt.Errorf(`navigation document has no nav epub:type="toc"`)

// Parse locates the toc nav and walks its <ol> recursively into an Item
// tree, using goquery the way flouciel-folian-parser's DOM-based content
// transforms do, since the nav grammar is recursive list nesting rather
// than a flat element sequence a token scanner handles cleanly.
func Parse(data []byte) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing navigation document: %w", err)
	}

	var tocNav *goquery.Selection
	doc.Find("nav").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if containsToken(s.AttrOr("epub:type", ""), "toc") {
			sel := s
			tocNav = sel
			return false
		}
		return true
	})
	if tocNav == nil {
		return nil, ErrNoTocNav
	}

	ol := tocNav.ChildrenFiltered("ol").First()
	if ol.Length() == 0 {
		ol = tocNav.Find("ol").First()
	}
	return parseList(ol), nil
}

func parseList(ol *goquery.Selection) []Item {
	var items []Item
	ol.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		items = append(items, parseListItem(li))
	})
	return items
}

func parseListItem(li *goquery.Selection) Item {
	var item Item

	a := li.ChildrenFiltered("a").First()
	if a.Length() > 0 {
		href := a.AttrOr("href", "")
		file, frag, _ := strings.Cut(href, "#")
		item.Href = file
		item.Fragment = frag
		item.Label = normalizeLabel(a.Text())
	} else {
		span := li.ChildrenFiltered("span").First()
		item.Label = normalizeLabel(span.Text())
	}

	if item.Label == "" {
		item.Label = "Untitled"
	}

	nested := li.ChildrenFiltered("ol").First()
	if nested.Length() > 0 {
		item.Children = parseList(nested)
	}
	return item
}

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// containsToken reports whether space-separated value contains token,
// matching epub:type's space-separated token-set semantics.
func containsToken(value, token string) bool {
	for _, t := range strings.Fields(value) {
		if t == token {
			return true
		}
	}
	return false
}

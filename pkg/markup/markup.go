// Package markup implements the per-chapter XHTML codec: emitting a
// chapter's wrapped markup document and extracting title/body back out
// of one, for both format versions.
package markup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StylesheetRef is one <link rel="stylesheet"> target emitted into
// every chapter document's head.
type StylesheetRef struct {
	Href string
}

// EmitOptions configures chapter markup emission.
type EmitOptions struct {
	Version      int // 2 or 3
	ChapterID    string
	Title        string
	HeadingLevel int
	Body         string
	Stylesheets  []StylesheetRef
}

// Emit renders a chapter as a standalone XHTML document.
func Emit(opts EmitOptions) []byte {
	level := opts.HeadingLevel
	if level == 0 {
		level = 1
	}

	var b strings.Builder
	if opts.Version == 2 {
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
		b.WriteString(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">` + "\n")
		b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml">` + "\n")
	} else {
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
		b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	}

	b.WriteString("<head>\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", escape(opts.Title))
	for _, ss := range opts.Stylesheets {
		fmt.Fprintf(&b, `  <link rel="stylesheet" type="text/css" href=%q/>`+"\n", escape(ss.Href))
	}
	b.WriteString("</head>\n")

	b.WriteString("<body>\n")
	if opts.Version == 2 {
		fmt.Fprintf(&b, `  <div id=%q>`+"\n", escape(opts.ChapterID))
	} else {
		fmt.Fprintf(&b, `  <section id=%q epub:type="chapter">`+"\n", escape(opts.ChapterID))
	}
	fmt.Fprintf(&b, "    <h%d>%s</h%d>\n", level, escape(opts.Title), level)
	b.WriteString(opts.Body)
	b.WriteString("\n")
	if opts.Version == 2 {
		b.WriteString("  </div>\n")
	} else {
		b.WriteString("  </section>\n")
	}
	b.WriteString("</body>\n</html>\n")

	return []byte(b.String())
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}

// TitleSource mirrors epub.TitleSource without importing pkg/epub, so
// this codec has no dependency on the document model package.
type TitleSource int

const (
	TitleSourceHead TitleSource = iota
	TitleSourceContent
	TitleSourceNav
)

// Extracted is the result of parsing a chapter markup document.
type Extracted struct {
	Title        string
	Body         string
	HeadingLevel int
}

// Extract parses a chapter document, locating the body wrapper (v3
// <section>, v2 <div>), stripping the first heading element inside it,
// and returning the remaining markup trimmed. navLabel is the label the
// navigation tree gave this item, used only when NAV is preferred or
// every other source is empty. untitledCounter is owned by the caller
// (the library keeps no process-level state of its own) and is
// incremented in place whenever every title source comes up empty.
func Extract(data []byte, order []TitleSource, ignoreHeadTitle bool, navLabel string, untitledCounter *int) (Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return Extracted{}, fmt.Errorf("parsing chapter markup: %w", err)
	}

	body := doc.Find("body").First()
	wrapper := body.Find("section").First()
	if wrapper.Length() == 0 {
		wrapper = body.Find("div").First()
	}

	container := body
	if wrapper.Length() > 0 {
		container = wrapper
	}

	heading := container.Find("h1,h2,h3,h4,h5,h6").First()
	level := headingLevel(heading)
	headingHTML, _ := heading.Html()
	heading.Remove()

	bodyHTML, _ := container.Html()
	bodyHTML = strings.TrimSpace(bodyHTML)

	headTitle := strings.TrimSpace(doc.Find("head title").First().Text())
	contentTitle := strings.TrimSpace(heading.Text())
	if contentTitle == "" {
		contentTitle = strings.TrimSpace(stripTags(headingHTML))
	}

	title := resolveTitle(order, ignoreHeadTitle, headTitle, contentTitle, navLabel)
	if title == "" {
		*untitledCounter++
		title = "Chapter " + strconv.Itoa(*untitledCounter)
	}

	return Extracted{Title: title, Body: bodyHTML, HeadingLevel: level}, nil
}

func resolveTitle(order []TitleSource, ignoreHeadTitle bool, headTitle, contentTitle, navLabel string) string {
	if order == nil {
		order = []TitleSource{TitleSourceHead, TitleSourceContent, TitleSourceNav}
	}
	for _, src := range order {
		switch src {
		case TitleSourceHead:
			if !ignoreHeadTitle && headTitle != "" {
				return headTitle
			}
		case TitleSourceContent:
			if contentTitle != "" {
				return contentTitle
			}
		case TitleSourceNav:
			if navLabel != "" {
				return navLabel
			}
		}
	}
	return ""
}

func headingLevel(sel *goquery.Selection) int {
	if sel.Length() == 0 {
		return 1
	}
	tag := goquery.NodeName(sel)
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	default:
		return 1
	}
}

func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

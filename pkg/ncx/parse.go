package ncx

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// xmlNavPoint mirrors the recursive navPoint grammar directly, which is
// the case struct-tag unmarshaling handles cleanly (unlike the package
// document's missing-vs-empty-attribute distinction): encoding/xml
// natively recurses into repeated child elements of the same name.
type xmlNavPoint struct {
	ID       string        `xml:"id,attr"`
	NavLabel struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []xmlNavPoint `xml:"navPoint"`
}

type xmlNCX struct {
	XMLName xml.Name `xml:"ncx"`
	Head    struct {
		Meta []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"head"`
	DocTitle struct {
		Text string `xml:"text"`
	} `xml:"docTitle"`
	DocAuthor struct {
		Text string `xml:"text"`
	} `xml:"docAuthor"`
	NavMap struct {
		NavPoint []xmlNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

// Parse decodes a toc.ncx document into a Document tree.
func Parse(data []byte) (*Document, error) {
	var x xmlNCX
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, fmt.Errorf("parsing NCX document: %w", err)
	}

	doc := &Document{
		Title:  strings.TrimSpace(x.DocTitle.Text),
		Author: strings.TrimSpace(x.DocAuthor.Text),
	}
	for _, m := range x.Head.Meta {
		if m.Name == "dtb:uid" {
			doc.UID = m.Content
		}
	}
	doc.NavMap = convertPoints(x.NavMap.NavPoint)
	return doc, nil
}

func convertPoints(xs []xmlNavPoint) []Point {
	var out []Point
	for _, x := range xs {
		label := strings.TrimSpace(x.NavLabel.Text)
		if label == "" {
			label = "Untitled"
		}
		out = append(out, Point{
			ID:       x.ID,
			Label:    label,
			Src:      x.Content.Src,
			Children: convertPoints(x.Children),
		})
	}
	return out
}

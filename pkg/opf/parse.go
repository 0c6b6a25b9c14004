package opf

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/kdahlquist/epubkit/pkg/epub"
)

// ParsedPackage is the result of parsing a package.opf document.
type ParsedPackage struct {
	Version   epub.FormatVersion
	Metadata  epub.DublinCoreMetadata
	Manifest  []ManifestItem
	Spine     []SpineItem
	NCXItemID string
}

// ManifestByID returns the manifest indexed by item id.
func (p *ParsedPackage) ManifestByID() map[string]ManifestItem {
	out := make(map[string]ManifestItem, len(p.Manifest))
	for _, item := range p.Manifest {
		out[item.ID] = item
	}
	return out
}

// Parse reads a package.opf document, tolerating either of the two
// format versions. It scans tokens directly with encoding/xml's decoder
// rather than unmarshaling into a fixed struct, because the manifest's
// optional "properties" attribute and the spine's optional "linear"
// attribute need to be told apart from an absent attribute, not just
// defaulted — the same reason the teacher package it is grounded on
// avoids struct-tag unmarshaling for this document.
func Parse(data []byte) (*ParsedPackage, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))

	result := &ParsedPackage{
		Metadata: epub.DublinCoreMetadata{
			Title:    "Untitled",
			Creator:  "Unknown",
			Language: "en",
		},
	}

	var (
		inMetadata bool
		textBuf    strings.Builder
		textTarget string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing package document: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			local := t.Name.Local
			switch local {
			case "package":
				if v := attrValue(t.Attr, "version"); strings.HasPrefix(v, "2") {
					result.Version = epub.V2
				} else {
					result.Version = epub.V3
				}
			case "metadata":
				inMetadata = true
			case "item":
				result.Manifest = append(result.Manifest, manifestItemFromAttrs(t.Attr))
			case "itemref":
				result.Spine = append(result.Spine, spineItemFromAttrs(t.Attr))
			case "spine":
				result.NCXItemID = attrValue(t.Attr, "toc")
			default:
				if inMetadata {
					textTarget = local
					textBuf.Reset()
				}
			}

		case xml.CharData:
			if inMetadata && textTarget != "" {
				textBuf.Write(t)
			}

		case xml.EndElement:
			local := t.Name.Local
			if local == "metadata" {
				inMetadata = false
				textTarget = ""
				continue
			}
			if inMetadata && local == textTarget {
				applyMetadataField(&result.Metadata, local, strings.TrimSpace(textBuf.String()))
				textTarget = ""
			}
		}
	}

	return result, nil
}

func manifestItemFromAttrs(attrs []xml.Attr) ManifestItem {
	return ManifestItem{
		ID:         attrValue(attrs, "id"),
		Href:       attrValue(attrs, "href"),
		MediaType:  attrValue(attrs, "media-type"),
		Properties: attrValue(attrs, "properties"),
	}
}

func spineItemFromAttrs(attrs []xml.Attr) SpineItem {
	item := SpineItem{
		IDRef:      attrValue(attrs, "idref"),
		Linear:     true,
		Properties: attrValue(attrs, "properties"),
	}
	if v := attrValue(attrs, "linear"); v != "" {
		item.LinearSet = true
		item.Linear = v != "no"
	}
	return item
}

func attrValue(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func applyMetadataField(m *epub.DublinCoreMetadata, local, text string) {
	if text == "" {
		return
	}
	switch local {
	case "title":
		m.Title = text
	case "creator":
		m.Creator = text
	case "language":
		m.Language = text
	case "identifier":
		m.Identifier = text
	case "date":
		m.Date = text
	case "publisher":
		m.Publisher = text
	case "description":
		m.Description = text
	case "subject":
		m.Subject = append(m.Subject, text)
	case "rights":
		m.Rights = text
	case "contributor":
		m.Contributor = append(m.Contributor, text)
	case "type":
		m.Type = text
	case "format":
		m.Format = text
	case "source":
		m.Source = text
	case "relation":
		m.Relation = text
	case "coverage":
		m.Coverage = text
	}
}

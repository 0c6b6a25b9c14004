package ncx

import (
	"strings"
	"testing"
)

func sampleDoc() Document {
	return Document{
		UID:   "urn:uuid:abc",
		Title: "My Book",
		NavMap: []Point{
			{ID: "navpoint-1", Label: "Part I", Src: "text/chapter-1.xhtml", Children: []Point{
				{ID: "navpoint-2", Label: "Chapter 1", Src: "text/chapter-2.xhtml"},
			}},
			{ID: "navpoint-3", Label: "Part II", Src: "text/chapter-3.xhtml"},
		},
	}
}

func TestEmitParseRoundTrip(t *testing.T) {
	data := Emit(sampleDoc())
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.UID != "urn:uuid:abc" {
		t.Errorf("UID = %q", doc.UID)
	}
	if doc.Title != "My Book" {
		t.Errorf("Title = %q", doc.Title)
	}
	if len(doc.NavMap) != 2 {
		t.Fatalf("expected 2 root navPoints, got %d", len(doc.NavMap))
	}
	if len(doc.NavMap[0].Children) != 1 {
		t.Fatalf("expected 1 nested navPoint, got %d", len(doc.NavMap[0].Children))
	}
}

func TestEmitDepthTwo(t *testing.T) {
	data := string(Emit(sampleDoc()))
	if !strings.Contains(data, `content="2"`) {
		t.Errorf("expected dtb:depth 2, got %s", data)
	}
}

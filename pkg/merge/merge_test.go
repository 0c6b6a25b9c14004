package merge

import (
	"strings"
	"testing"

	"github.com/kdahlquist/epubkit/pkg/epub"
)

func newPub(t *testing.T, title string) *epub.Publication {
	t.Helper()
	p, err := epub.New(epub.DublinCoreMetadata{Title: title, Creator: "A"}, epub.DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestMergeTwoPublications(t *testing.T) {
	dest := newPub(t, "Combined")

	p1 := newPub(t, "Book 1")
	p1.AddChapter(epub.AddChapterOptions{Title: "A"})
	p1.AddChapter(epub.AddChapterOptions{Title: "B"})
	p1.AddImage(epub.AddImageOptions{Filename: "img.png", Data: []byte("b1")})

	p2 := newPub(t, "Book 2")
	p2.AddChapter(epub.AddChapterOptions{Title: "C"})
	p2.AddImage(epub.AddImageOptions{Filename: "img.png", Data: []byte("b2")})

	seen := NewSeenResources()
	sec1, err := AddPublicationAsChapter(dest, SectionOptions{Title: "Book 1"}, p1, seen, 1)
	if err != nil {
		t.Fatalf("merge p1: %v", err)
	}
	sec2, err := AddPublicationAsChapter(dest, SectionOptions{Title: "Book 2"}, p2, seen, 2)
	if err != nil {
		t.Fatalf("merge p2: %v", err)
	}

	roots := dest.GetRootChapters()
	if len(roots) != 2 {
		t.Fatalf("expected 2 root sections, got %d", len(roots))
	}
	s1 := dest.GetChapter(sec1)
	s2 := dest.GetChapter(sec2)
	if len(s1.ChildIDs) != 2 {
		t.Errorf("section 1 should have 2 children, got %d", len(s1.ChildIDs))
	}
	if len(s2.ChildIDs) != 1 {
		t.Errorf("section 2 should have 1 child, got %d", len(s2.ChildIDs))
	}

	images := dest.GetAllImages()
	if len(images) != 2 {
		t.Fatalf("expected 2 distinct images, got %d", len(images))
	}
	names := map[string]bool{}
	for _, img := range images {
		names[img.Filename] = true
	}
	if !names["images/book1-img.png"] || !names["images/book2-img.png"] {
		t.Errorf("unexpected image filenames: %v", names)
	}
}

func TestMergeDeduplicatesIdenticalStylesheets(t *testing.T) {
	dest := newPub(t, "Combined")

	p1 := newPub(t, "Book 1")
	p1.AddStylesheet(epub.AddStylesheetOptions{Filename: "s.css", Content: "body{color:red}"})
	p1.AddChapter(epub.AddChapterOptions{Title: "A", Content: `<img src="../css/s.css"/>`})

	p2 := newPub(t, "Book 2")
	p2.AddStylesheet(epub.AddStylesheetOptions{Filename: "s.css", Content: "body{color:red}"})
	p2.AddChapter(epub.AddChapterOptions{Title: "B", Content: `<img src="s.css"/>`})

	seen := NewSeenResources()
	if _, err := AddPublicationAsChapter(dest, SectionOptions{Title: "Book 1"}, p1, seen, 1); err != nil {
		t.Fatalf("merge p1: %v", err)
	}
	if _, err := AddPublicationAsChapter(dest, SectionOptions{Title: "Book 2"}, p2, seen, 2); err != nil {
		t.Fatalf("merge p2: %v", err)
	}

	styles := dest.GetAllStylesheets()
	nonDefault := 0
	var filename string
	for _, s := range styles {
		if s.Filename != "css/styles.css" {
			nonDefault++
			filename = s.Filename
		}
	}
	if nonDefault != 1 {
		t.Fatalf("expected exactly 1 non-default stylesheet, got %d", nonDefault)
	}

	for _, c := range dest.GetAllChapters() {
		if c.Title == "A" || c.Title == "B" {
			if !strings.Contains(c.Content(), `src="../`+filename+`"`) {
				t.Errorf("chapter %q reference not rewritten: %q", c.Title, c.Content())
			}
		}
	}
}

func TestMergeFixesImageBasenameQuirk(t *testing.T) {
	dest := newPub(t, "Combined")
	p1 := newPub(t, "Book 1")
	p1.AddImage(epub.AddImageOptions{Filename: "diagram.png", Data: []byte("x")})

	seen := NewSeenResources()
	if _, err := AddPublicationAsChapter(dest, SectionOptions{Title: "Book 1"}, p1, seen, 1); err != nil {
		t.Fatalf("merge: %v", err)
	}
	images := dest.GetAllImages()
	if len(images) != 1 || images[0].Filename != "images/book1-diagram.png" {
		t.Fatalf("got %+v", images)
	}
}

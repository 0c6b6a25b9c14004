package epub

import "testing"

func mustNew(t *testing.T) *Publication {
	t.Helper()
	p, err := New(DublinCoreMetadata{Title: "T", Creator: "A"}, DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewRequiresTitleAndCreator(t *testing.T) {
	if _, err := New(DublinCoreMetadata{Creator: "A"}, DefaultOptions()); err == nil {
		t.Fatal("expected InvalidMetadataError for missing title")
	}
	if _, err := New(DublinCoreMetadata{Title: "T"}, DefaultOptions()); err == nil {
		t.Fatal("expected InvalidMetadataError for missing creator")
	}
}

func TestNewFillsDefaults(t *testing.T) {
	p := mustNew(t)
	if p.Metadata.Language != "en" {
		t.Errorf("Language = %q, want en", p.Metadata.Language)
	}
	if p.Metadata.Identifier == "" {
		t.Error("Identifier should be generated")
	}
	if p.Metadata.Date == "" {
		t.Error("Date should default to today")
	}
	if len(p.GetAllStylesheets()) != 1 {
		t.Errorf("expected default stylesheet, got %d stylesheets", len(p.GetAllStylesheets()))
	}
}

func TestNewWithoutDefaultStylesheet(t *testing.T) {
	opts := DefaultOptions()
	opts.AddDefaultStylesheet = false
	p, err := New(DublinCoreMetadata{Title: "T", Creator: "A"}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(p.GetAllStylesheets()) != 0 {
		t.Errorf("expected no stylesheets, got %d", len(p.GetAllStylesheets()))
	}
}

func TestAddChapterUnknownParent(t *testing.T) {
	p := mustNew(t)
	before := len(p.chapterOrder)
	_, err := p.AddChapter(AddChapterOptions{Title: "C", ParentID: "does-not-exist"})
	if _, ok := err.(*UnknownParentError); !ok {
		t.Fatalf("err = %T, want *UnknownParentError", err)
	}
	if len(p.chapterOrder) != before {
		t.Error("publication must be left unchanged on UnknownParent")
	}
}

func TestAddChapterFilenameDeterministic(t *testing.T) {
	p := mustNew(t)
	id1, _ := p.AddChapter(AddChapterOptions{Title: "Alpha"})
	id2, _ := p.AddChapter(AddChapterOptions{Title: "Beta"})

	c1, c2 := p.GetChapter(id1), p.GetChapter(id2)
	if c1.Filename != "text/chapter-1.xhtml" {
		t.Errorf("c1.Filename = %q", c1.Filename)
	}
	if c2.Filename != "text/chapter-2.xhtml" {
		t.Errorf("c2.Filename = %q", c2.Filename)
	}
}

func TestNestedSections(t *testing.T) {
	p := mustNew(t)
	p1, _ := p.AddChapter(AddChapterOptions{Title: "Part I"})
	c1, _ := p.AddChapter(AddChapterOptions{Title: "Chapter 1", ParentID: p1})
	_, _ = p.AddChapter(AddChapterOptions{Title: "Section 1.1", ParentID: c1})

	roots := p.GetRootChapters()
	if len(roots) != 1 {
		t.Fatalf("expected 1 root chapter, got %d", len(roots))
	}
	if len(roots[0].ChildIDs) != 1 {
		t.Fatalf("expected root to have 1 child, got %d", len(roots[0].ChildIDs))
	}
	child := p.GetChapter(roots[0].ChildIDs[0])
	if len(child.ChildIDs) != 1 {
		t.Fatalf("expected child to have 1 grandchild, got %d", len(child.ChildIDs))
	}
}

func TestDeleteChapterCascades(t *testing.T) {
	p := mustNew(t)
	p1, _ := p.AddChapter(AddChapterOptions{Title: "Part I"})
	c1, _ := p.AddChapter(AddChapterOptions{Title: "Chapter 1", ParentID: p1})
	s1, _ := p.AddChapter(AddChapterOptions{Title: "Section 1.1", ParentID: c1})

	if err := p.DeleteChapter(c1); err != nil {
		t.Fatalf("DeleteChapter: %v", err)
	}
	if p.GetChapter(c1) != nil {
		t.Error("c1 should be deleted")
	}
	if p.GetChapter(s1) != nil {
		t.Error("descendant s1 should cascade-delete")
	}
	root := p.GetChapter(p1)
	if len(root.ChildIDs) != 0 {
		t.Error("parent's child list should no longer reference deleted chapter")
	}
}

func TestAddImageRejectsUnknownExtension(t *testing.T) {
	p := mustNew(t)
	_, err := p.AddImage(AddImageOptions{Filename: "cover.xyz", Data: []byte("x")})
	if _, ok := err.(*InvalidImageExtensionError); !ok {
		t.Fatalf("err = %v, want InvalidImageExtensionError", err)
	}
}

func TestAddImageSanitizesFilename(t *testing.T) {
	p := mustNew(t)
	id, err := p.AddImage(AddImageOptions{Filename: "My Cover!!.PNG", Data: []byte("x")})
	if err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	img := p.images[id]
	if img.Filename != "images/mycover.png" {
		t.Errorf("Filename = %q, want images/mycover.png", img.Filename)
	}
	if img.MimeType != "image/png" {
		t.Errorf("MimeType = %q", img.MimeType)
	}
}

func TestSetMetadataShallowMerge(t *testing.T) {
	p := mustNew(t)
	p.SetMetadata(DublinCoreMetadata{Publisher: "Acme"})
	if p.Metadata.Title != "T" {
		t.Error("SetMetadata should not clobber unset fields")
	}
	if p.Metadata.Publisher != "Acme" {
		t.Error("SetMetadata should apply set fields")
	}

	// Idempotence: applying the same partial twice yields the same state.
	p.SetMetadata(DublinCoreMetadata{Publisher: "Acme"})
	if p.Metadata.Publisher != "Acme" {
		t.Error("repeated SetMetadata should be idempotent")
	}
}

func TestValidateEmptyPublicationIsWarningOnly(t *testing.T) {
	p := mustNew(t)
	report := p.Validate()
	if !report.IsValid() {
		t.Errorf("empty publication should have no errors, got %v", report.Errors)
	}
	if len(report.Warnings) == 0 {
		t.Error("empty publication should warn about no chapters")
	}
}

func TestValidateIsPure(t *testing.T) {
	p := mustNew(t)
	p.AddChapter(AddChapterOptions{Title: "C1"})
	r1 := p.Validate()
	r2 := p.Validate()
	if len(r1.Errors) != len(r2.Errors) || len(r1.Warnings) != len(r2.Warnings) {
		t.Error("Validate should be pure")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := mustNew(t)
	cid, _ := p.AddChapter(AddChapterOptions{Title: "C1", Content: "<p>x</p>"})
	clone := p.Clone()

	clone.SetChapterContent(cid, "<p>changed</p>")
	if p.GetChapter(cid).Content() == "<p>changed</p>" {
		t.Error("mutating clone must not affect original")
	}
}

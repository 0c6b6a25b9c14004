package markup

import (
	"strings"
	"testing"
)

func TestEmitV3Wraps(t *testing.T) {
	data := string(Emit(EmitOptions{
		Version:      3,
		ChapterID:    "chapter-1",
		Title:        "Chapter One",
		HeadingLevel: 2,
		Body:         "<p>x</p>",
		Stylesheets:  []StylesheetRef{{Href: "../css/styles.css"}},
	}))
	if !strings.Contains(data, `<section id="chapter-1" epub:type="chapter">`) {
		t.Error("expected v3 section wrapper")
	}
	if !strings.Contains(data, "<h2>Chapter One</h2>") {
		t.Error("expected h2 heading at configured level")
	}
	if !strings.Contains(data, `<link rel="stylesheet" type="text/css" href="../css/styles.css"/>`) {
		t.Error("expected stylesheet link")
	}
}

func TestEmitV2Wraps(t *testing.T) {
	data := string(Emit(EmitOptions{Version: 2, ChapterID: "chapter-1", Title: "C1", Body: "<p>x</p>"}))
	if !strings.Contains(data, `<div id="chapter-1">`) {
		t.Error("expected v2 div wrapper")
	}
	if strings.Contains(data, "epub:type") {
		t.Error("v2 markup must not carry epub:type")
	}
}

func TestExtractStripsHeadingAndWrapper(t *testing.T) {
	doc := Emit(EmitOptions{Version: 3, ChapterID: "chapter-1", Title: "Chapter One", Body: "<p>hello</p>"})
	counter := 0
	got, err := Extract(doc, nil, false, "", &counter)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Title != "Chapter One" {
		t.Errorf("Title = %q, want Chapter One", got.Title)
	}
	if strings.Contains(got.Body, "<h1>") {
		t.Errorf("heading should be stripped from body, got %q", got.Body)
	}
	if !strings.Contains(got.Body, "hello") {
		t.Errorf("expected body content preserved, got %q", got.Body)
	}
}

func TestExtractFallsBackToUntitled(t *testing.T) {
	doc := []byte(`<html><head></head><body><section id="c"></section></body></html>`)
	counter := 0
	got, err := Extract(doc, nil, true, "", &counter)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Title != "Chapter 1" {
		t.Errorf("Title = %q, want Chapter 1", got.Title)
	}
}

func TestExtractPrefersNavWhenConfiguredFirst(t *testing.T) {
	doc := []byte(`<html><head><title>Head Title</title></head><body><section><h1>Content Title</h1></section></body></html>`)
	counter := 0
	got, err := Extract(doc, []TitleSource{TitleSourceNav, TitleSourceHead, TitleSourceContent}, false, "Nav Label", &counter)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Title != "Nav Label" {
		t.Errorf("Title = %q, want Nav Label", got.Title)
	}
}


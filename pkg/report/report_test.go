package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kdahlquist/epubkit/pkg/epub"
)

func TestWriteTextNoFindings(t *testing.T) {
	var buf bytes.Buffer
	WriteText(&buf, &epub.ValidationReport{})
	if !strings.Contains(buf.String(), "No errors or warnings detected.") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteTextWithFindings(t *testing.T) {
	r := &epub.ValidationReport{
		Errors:   []epub.ValidationMessage{{Severity: epub.SeverityError, Message: "Title is required"}},
		Warnings: []epub.ValidationMessage{{Severity: epub.SeverityWarning, Message: "No chapters added to EPUB"}},
	}
	var buf bytes.Buffer
	WriteText(&buf, r)
	out := buf.String()
	if !strings.Contains(out, "[ERROR] Title is required") {
		t.Errorf("missing error line: %q", out)
	}
	if !strings.Contains(out, "[WARNING] No chapters added to EPUB") {
		t.Errorf("missing warning line: %q", out)
	}
	if !strings.Contains(out, "1 error(s), 1 warning(s)") {
		t.Errorf("missing summary line: %q", out)
	}
}

func TestWriteJSONEmptyArraysNotNull(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, &epub.ValidationReport{}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"errors": []`) || !strings.Contains(out, `"warnings": []`) {
		t.Errorf("expected empty array fields, got %q", out)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Errorf("expected valid:true, got %q", out)
	}
}

func TestWriteJSONReflectsInvalid(t *testing.T) {
	r := &epub.ValidationReport{
		Errors: []epub.ValidationMessage{{Severity: epub.SeverityError, Message: "Creator/Author is required"}},
	}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"valid": false`) {
		t.Errorf("expected valid:false, got %q", out)
	}
	if !strings.Contains(out, "Creator/Author is required") {
		t.Errorf("missing error message, got %q", out)
	}
}

package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"strconv"
	"testing"
)

func buildZIP(t *testing.T, entries map[string][]byte, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
		if _, err := fw.Write(entries[name]); err != nil {
			t.Fatalf("write %q: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func minimalEntries() (map[string][]byte, []string) {
	entries := map[string][]byte{
		"mimetype":               []byte(mimetypeContents),
		"META-INF/container.xml": NewContainerXML("EPUB/package.opf"),
		"EPUB/package.opf":       []byte(`<package></package>`),
	}
	order := []string{"mimetype", "META-INF/container.xml", "EPUB/package.opf"}
	return entries, order
}

func TestReadMinimal(t *testing.T) {
	entries, order := minimalEntries()
	data := buildZIP(t, entries, order)

	a, err := Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if a.PackagePath != "EPUB/package.opf" {
		t.Errorf("PackagePath = %q, want EPUB/package.opf", a.PackagePath)
	}
	if a.PackageDir() != "EPUB/" {
		t.Errorf("PackageDir() = %q, want EPUB/", a.PackageDir())
	}
}

func TestReadMissingContainer(t *testing.T) {
	entries := map[string][]byte{"mimetype": []byte(mimetypeContents)}
	data := buildZIP(t, entries, []string{"mimetype"})

	_, err := Read(data)
	if err != ErrMissingContainer {
		t.Fatalf("err = %v, want ErrMissingContainer", err)
	}
}

func TestReadMissingPackageDocument(t *testing.T) {
	entries := map[string][]byte{
		"mimetype":               []byte(mimetypeContents),
		"META-INF/container.xml": NewContainerXML("EPUB/package.opf"),
	}
	data := buildZIP(t, entries, []string{"mimetype", "META-INF/container.xml"})

	_, err := Read(data)
	var missing *ErrMissingPackageDocument
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want ErrMissingPackageDocument", err)
	}
}

func TestReadPathTraversal(t *testing.T) {
	entries, order := minimalEntries()
	entries["../evil.txt"] = []byte("pwned")
	order = append(order, "../evil.txt")
	data := buildZIP(t, entries, order)

	_, err := Read(data)
	var unsafe *ErrUnsafePath
	if !errors.As(err, &unsafe) {
		t.Fatalf("err = %v, want ErrUnsafePath", err)
	}
}

func TestReadTooManyEntries(t *testing.T) {
	entries, order := minimalEntries()
	for i := 0; i < maxEntries; i++ {
		name := "EPUB/filler/" + strconv.Itoa(i) + ".txt"
		entries[name] = []byte("x")
		order = append(order, name)
	}
	data := buildZIP(t, entries, order)

	_, err := Read(data)
	var tooLarge *ErrArchiveTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("err = %v, want ErrArchiveTooLarge", err)
	}
}

func TestResolveHrefPercentEncoded(t *testing.T) {
	a := &Archive{PackagePath: "EPUB/package.opf"}

	tests := []struct{ href, want string }{
		{"chapter.xhtml", "EPUB/chapter.xhtml"},
		{"chapter%20one.xhtml", "EPUB/chapter one.xhtml"},
		{"sub/page.xhtml", "EPUB/sub/page.xhtml"},
	}
	for _, tt := range tests {
		if got := a.ResolveHref(tt.href); got != tt.want {
			t.Errorf("ResolveHref(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestWriteMimetypeFirstAndStored(t *testing.T) {
	entries, order := minimalEntries()
	data, err := Write(entries, order, WriteOptions{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if len(zr.File) == 0 || zr.File[0].Name != "mimetype" {
		t.Fatal("mimetype must be first entry")
	}
	if zr.File[0].Method != zip.Store {
		t.Errorf("mimetype method = %v, want Store", zr.File[0].Method)
	}
}



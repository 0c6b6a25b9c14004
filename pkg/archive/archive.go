// Package archive implements the OCF (Open Container Format) bootstrap:
// reading and writing the ZIP container that carries an EPUB publication,
// including the safety ceilings and path-traversal checks a deserializer
// must apply before trusting anything inside the archive.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Safety ceilings. These are anti-zip-bomb guards, not user preferences,
// so they are compile-time constants rather than an Options field.
const (
	maxEntries = 10_000
	maxBytes   = 1_000_000_000
)

const mimetypeContents = "application/epub+zip"

// ErrArchiveTooLarge is returned when an archive exceeds the entry-count
// or uncompressed-size safety ceiling.
type ErrArchiveTooLarge struct {
	Entries      int
	Bytes        uint64
	MaxEntries   int
	MaxBytes     uint64
}

func (e *ErrArchiveTooLarge) Error() string {
	if e.Entries > e.MaxEntries {
		return fmt.Sprintf("archive has %d entries, exceeding the limit of %d", e.Entries, e.MaxEntries)
	}
	return fmt.Sprintf("archive has %d uncompressed bytes, exceeding the limit of %d", e.Bytes, e.MaxBytes)
}

// ErrUnsafePath is returned when an archive entry's name would resolve
// outside the notional extraction root.
type ErrUnsafePath struct {
	Name string
}

func (e *ErrUnsafePath) Error() string {
	return fmt.Sprintf("unsafe archive entry path: %q", e.Name)
}

// ErrMissingContainer is returned when META-INF/container.xml is absent.
var ErrMissingContainer = fmt.Errorf("archive is missing META-INF/container.xml")

// ErrMissingPackagePath is returned when container.xml has no usable rootfile.
var ErrMissingPackagePath = fmt.Errorf("container.xml does not reference a package document")

// ErrMissingPackageDocument is returned when the referenced package document is absent.
type ErrMissingPackageDocument struct {
	Path string
}

func (e *ErrMissingPackageDocument) Error() string {
	return fmt.Sprintf("package document %q referenced by container.xml is missing", e.Path)
}

// Archive is a parsed, safety-checked EPUB container held in memory.
// It owns its own byte buffers — nothing is shared with the caller after
// Read returns.
type Archive struct {
	// Files maps ZIP entry name to its uncompressed contents.
	Files map[string][]byte

	// Order preserves the entry order of the source ZIP, mimetype first.
	Order []string

	// PackagePath is the full path (relative to the archive root) of the
	// package document, e.g. "EPUB/package.opf".
	PackagePath string
}

// PackageDir returns the directory containing the package document,
// e.g. "EPUB/" for PackagePath "EPUB/package.opf", or "" if the package
// document is at the archive root.
func (a *Archive) PackageDir() string {
	dir := path.Dir(a.PackagePath)
	if dir == "." {
		return ""
	}
	return dir + "/"
}

// ResolveHref resolves a manifest href (IRI-encoded, relative to the
// package directory) to an archive entry name. Hrefs are percent-decoded
// because manifest hrefs are IRI-encoded while ZIP entry names are not,
// and Unicode-normalized to NFC so that NFD-encoded hrefs match NFC
// archive entry names.
func (a *Archive) ResolveHref(href string) string {
	decoded, err := url.PathUnescape(href)
	if err != nil {
		decoded = href
	}
	decoded = norm.NFC.String(decoded)
	dir := a.PackageDir()
	if dir == "" {
		return path.Clean(decoded)
	}
	return path.Clean(dir + decoded)
}

// Read opens and safety-checks an EPUB archive from raw bytes, locating
// the package document via the container bootstrap.
func Read(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	if len(zr.File) > maxEntries {
		return nil, &ErrArchiveTooLarge{Entries: len(zr.File), MaxEntries: maxEntries}
	}

	a := &Archive{Files: make(map[string][]byte, len(zr.File))}

	var totalBytes uint64
	for _, f := range zr.File {
		if err := checkSafePath(f.Name); err != nil {
			return nil, err
		}
		totalBytes += f.UncompressedSize64
		if totalBytes > maxBytes {
			return nil, &ErrArchiveTooLarge{Bytes: totalBytes, MaxBytes: maxBytes}
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening entry %q: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading entry %q: %w", f.Name, err)
		}

		a.Files[f.Name] = content
		a.Order = append(a.Order, f.Name)
	}

	packagePath, err := parseContainer(a)
	if err != nil {
		return nil, err
	}
	a.PackagePath = packagePath

	if _, ok := a.Files[packagePath]; !ok {
		return nil, &ErrMissingPackageDocument{Path: packagePath}
	}

	return a, nil
}

// checkSafePath rejects entry names that would escape the extraction root
// once cleaned: absolute paths, and any path whose cleaned form starts
// with "../" or is exactly "..".
func checkSafePath(name string) error {
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(name) {
		return &ErrUnsafePath{Name: name}
	}
	return nil
}

type containerXML struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles struct {
		RootFile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

func parseContainer(a *Archive) (string, error) {
	data, ok := a.Files["META-INF/container.xml"]
	if !ok {
		return "", ErrMissingContainer
	}

	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("parsing container.xml: %w", err)
	}

	for _, rf := range c.RootFiles.RootFile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			return rf.FullPath, nil
		}
	}
	if len(c.RootFiles.RootFile) > 0 {
		return c.RootFiles.RootFile[0].FullPath, nil
	}
	return "", ErrMissingPackagePath
}

// WriteOptions configures archive serialization.
type WriteOptions struct {
	// Compression is the DEFLATE level applied to every entry after the
	// mimetype bootstrap (1-9). Zero selects level 9, so level 0 (no
	// compression) cannot be requested.
	Compression int
}

// Write serializes files into a conformant EPUB archive: the mimetype
// entry first and uncompressed, then META-INF/container.xml, then every
// other entry in the given order, DEFLATE-compressed.
//
// entries must already contain "mimetype" and "META-INF/container.xml";
// order controls the emission order of all remaining entries.
func Write(entries map[string][]byte, order []string, opts WriteOptions) ([]byte, error) {
	level := opts.Compression
	if level == 0 {
		level = 9
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return newDeflateWriter(out, level)
	})

	mimetype, ok := entries["mimetype"]
	if !ok {
		mimetype = []byte(mimetypeContents)
	}
	mw, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, fmt.Errorf("writing mimetype entry: %w", err)
	}
	if _, err := mw.Write(mimetype); err != nil {
		return nil, fmt.Errorf("writing mimetype entry: %w", err)
	}

	if data, ok := entries["META-INF/container.xml"]; ok {
		cw, err := w.Create("META-INF/container.xml")
		if err != nil {
			return nil, fmt.Errorf("writing container.xml: %w", err)
		}
		if _, err := cw.Write(data); err != nil {
			return nil, fmt.Errorf("writing container.xml: %w", err)
		}
	}

	for _, name := range order {
		if name == "mimetype" || name == "META-INF/container.xml" {
			continue
		}
		data, ok := entries[name]
		if !ok {
			continue
		}
		fw, err := w.Create(name)
		if err != nil {
			return nil, fmt.Errorf("writing entry %q: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return nil, fmt.Errorf("writing entry %q: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// NewContainerXML builds the META-INF/container.xml bootstrap pointing at
// packagePath (e.g. "EPUB/package.opf").
func NewContainerXML(packagePath string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + packagePath + `" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`)
}

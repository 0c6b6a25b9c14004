package epub

// FormatVersion selects which EPUB flavor the serialization and
// deserialization pipelines target. The source this library is modeled
// on exposed two concrete builder types sharing an abstract base; this
// rewrite commits to one Publication value plus this enum instead.
type FormatVersion int

const (
	V2 FormatVersion = iota
	V3
)

func (v FormatVersion) String() string {
	switch v {
	case V2:
		return "2.0"
	case V3:
		return "3.0"
	default:
		return "unknown"
	}
}

// TitleSource names where a chapter title may be drawn from during
// deserialization and markup extraction.
type TitleSource int

const (
	TitleSourceHead TitleSource = iota
	TitleSourceContent
	TitleSourceNav
)

// DublinCoreMetadata holds the publication's bibliographic record.
// Title and Creator are required; every other field is optional.
type DublinCoreMetadata struct {
	Title      string
	Creator    string
	Language   string
	Identifier string
	Date       string

	Publisher    string
	Description  string
	Subject      []string
	Rights       string
	Contributor  []string
	Type         string
	Format       string
	Source       string
	Relation     string
	Coverage     string
}

// ChapterBody is a tagged variant distinguishing a chapter that owns its
// own markup from a fragment chapter whose content is an anchor inside
// another chapter's markup. Modeling this as a variant (rather than an
// optional fragment/source-id field pair) keeps the two shapes from
// being constructed in an invalid half-set state.
type ChapterBody interface {
	isChapterBody()
}

// InlineBody is the ordinary case: the chapter owns its markup fragment.
type InlineBody struct {
	Markup string
}

func (InlineBody) isChapterBody() {}

// FragmentBody marks a virtual chapter representing a same-file anchor
// inside another chapter's backing markup.
type FragmentBody struct {
	SourceChapterID string
	Fragment        string
}

func (FragmentBody) isChapterBody() {}

// Chapter is one node in the publication's chapter tree, held in the
// flat arena on Publication.chapters. Child/parent references are by id,
// not by pointer, so the tree has no cyclic ownership and serializes
// trivially.
type Chapter struct {
	ID           string
	Title        string
	Body         ChapterBody
	Filename     string
	ParentID     string // "" iff root
	Order        int
	ChildIDs     []string
	HeadingLevel int
	Linear       bool
}

// IsFragment reports whether this chapter is a virtual fragment chapter.
func (c *Chapter) IsFragment() bool {
	_, ok := c.Body.(FragmentBody)
	return ok
}

// Content returns the chapter's own inline markup, or "" for a fragment
// chapter (whose markup lives on its source chapter).
func (c *Chapter) Content() string {
	if ib, ok := c.Body.(InlineBody); ok {
		return ib.Markup
	}
	return ""
}

// Image is a binary resource embedded in the publication.
type Image struct {
	ID       string
	Filename string
	Data     []byte
	MimeType string
	Alt      string
	IsCover  bool
}

// Stylesheet is a CSS resource embedded in the publication.
type Stylesheet struct {
	ID       string
	Filename string
	Content  string
}

// Options configures construction-time and title-extraction behavior.
type Options struct {
	// AddDefaultStylesheet injects a built-in CSS resource at construction.
	AddDefaultStylesheet bool

	// IgnoreHeadTitle skips the head <title> element during title
	// extraction, preferring content headings instead.
	IgnoreHeadTitle bool

	// TitleExtraction is the ordered preference of title sources. A nil
	// slice means the default order: HEAD, CONTENT, NAV.
	TitleExtraction []TitleSource
}

// DefaultOptions returns the Options defaults named in the data model.
func DefaultOptions() Options {
	return Options{
		AddDefaultStylesheet: true,
		IgnoreHeadTitle:      false,
		TitleExtraction:      []TitleSource{TitleSourceHead, TitleSourceContent, TitleSourceNav},
	}
}

// ExportOptions configures the Export/ExportToFile operations.
type ExportOptions struct {
	// Validate runs validate() before serializing and refuses export on
	// validation errors when true (the default).
	Validate bool
	// ValidateSet is true when the caller explicitly set Validate, so
	// Export can distinguish "false" from "unset" (defaulting to true).
	ValidateSet bool

	// Compression is the DEFLATE level (1-9, default 9) applied to
	// non-bootstrap archive entries. Zero selects the default, so level 0
	// (no compression) cannot be requested.
	Compression int

	Version FormatVersion
}

const defaultStylesheetFilename = "css/styles.css"

const defaultStylesheetContent = `body {
  font-family: serif;
  line-height: 1.5;
  margin: 1em;
}

h1, h2, h3, h4, h5, h6 {
  font-family: sans-serif;
}
`

package epub

import "fmt"

// InvalidMetadataError is returned when required Dublin Core metadata
// (title or creator) is empty.
type InvalidMetadataError struct {
	Field string
}

func (e *InvalidMetadataError) Error() string {
	return fmt.Sprintf("invalid metadata: %s is required", e.Field)
}

// UnknownChapterError is returned when an operation references a chapter
// id that does not exist in the publication.
type UnknownChapterError struct {
	ID string
}

func (e *UnknownChapterError) Error() string {
	return fmt.Sprintf("unknown chapter: %q", e.ID)
}

// UnknownParentError is returned when AddChapter is given a parent_id
// that does not name an existing chapter.
type UnknownParentError struct {
	ParentID string
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("unknown parent chapter: %q", e.ParentID)
}

// UnknownImageError is returned when an operation references an image id
// that does not exist.
type UnknownImageError struct {
	ID string
}

func (e *UnknownImageError) Error() string {
	return fmt.Sprintf("unknown image: %q", e.ID)
}

// InvalidImageExtensionError is returned when AddImage is given a filename
// whose extension is not a recognized image type.
type InvalidImageExtensionError struct {
	Filename string
}

func (e *InvalidImageExtensionError) Error() string {
	return fmt.Sprintf("invalid image extension: %q", e.Filename)
}

// InvalidHeadingLevelError is returned when a chapter is given a heading
// level outside 1-6.
type InvalidHeadingLevelError struct {
	Level int
}

func (e *InvalidHeadingLevelError) Error() string {
	return fmt.Sprintf("invalid heading level: %d (must be 1-6)", e.Level)
}

// ValidationRejectedError is returned by Export when validation is enabled
// and the publication's ValidationReport contains errors.
type ValidationRejectedError struct {
	Errors []string
}

func (e *ValidationRejectedError) Error() string {
	return fmt.Sprintf("publication failed validation: %v", e.Errors)
}

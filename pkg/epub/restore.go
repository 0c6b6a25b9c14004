package epub

import "strconv"

// RestoreChapterOptions are the inputs to RestoreChapter, the
// deserialization-only counterpart of AddChapter. Parsed chapters carry
// their own filename, order, and body shape straight from the archive,
// none of which the ordinary build API assigns, so the orchestrator
// needs a lower-level entry point than AddChapter.
type RestoreChapterOptions struct {
	ID           string
	Title        string
	Body         ChapterBody
	Filename     string
	ParentID     string
	Order        int
	HeadingLevel int
	Linear       bool
}

// RestoreChapter inserts a chapter with caller-supplied identity and
// position, as used by the deserialization orchestrator reconstructing
// a tree from a parsed archive. It is not part of the ordinary build
// API: callers outside pkg/deserialize should use AddChapter instead.
func (p *Publication) RestoreChapter(opts RestoreChapterOptions) string {
	id := opts.ID
	if id == "" {
		id = "chapter-" + opts.Filename
	}
	headingLevel := opts.HeadingLevel
	if headingLevel == 0 {
		headingLevel = 1
	}

	c := &Chapter{
		ID:           id,
		Title:        opts.Title,
		Body:         opts.Body,
		Filename:     opts.Filename,
		ParentID:     opts.ParentID,
		Order:        opts.Order,
		HeadingLevel: headingLevel,
		Linear:       opts.Linear,
	}
	p.chapters[id] = c
	p.chapterOrder = append(p.chapterOrder, id)

	if opts.ParentID == "" {
		p.rootChapterIDs = append(p.rootChapterIDs, id)
	} else if parent, ok := p.chapters[opts.ParentID]; ok {
		parent.ChildIDs = append(parent.ChildIDs, id)
	}

	p.bumpCounterFromFilename(opts.Filename)
	return id
}

// FindChapterByFilename scans for a chapter with the given filename, or
// returns nil.
func (p *Publication) FindChapterByFilename(filename string) *Chapter {
	for _, id := range p.chapterOrder {
		if c := p.chapters[id]; c.Filename == filename {
			return c
		}
	}
	return nil
}

// ReparentChapter moves an existing chapter under a new parent,
// unlinking it from its previous parent (or the root list).
func (p *Publication) ReparentChapter(id, newParentID string) error {
	c, ok := p.chapters[id]
	if !ok {
		return &UnknownChapterError{ID: id}
	}
	if c.ParentID == newParentID {
		return nil
	}
	if c.ParentID == "" {
		p.rootChapterIDs = removeString(p.rootChapterIDs, id)
	} else if oldParent, ok := p.chapters[c.ParentID]; ok {
		oldParent.ChildIDs = removeString(oldParent.ChildIDs, id)
	}

	c.ParentID = newParentID
	if newParentID == "" {
		p.rootChapterIDs = append(p.rootChapterIDs, id)
	} else if newParent, ok := p.chapters[newParentID]; ok {
		newParent.ChildIDs = append(newParent.ChildIDs, id)
	}
	return nil
}

// SetChapterTitle overwrites a chapter's title in place, used when the
// navigation label is authoritative per the configured title sources.
func (p *Publication) SetChapterTitle(id, title string) error {
	c, ok := p.chapters[id]
	if !ok {
		return &UnknownChapterError{ID: id}
	}
	c.Title = title
	return nil
}

func (p *Publication) bumpCounterFromFilename(filename string) {
	const prefix = "text/chapter-"
	const suffix = ".xhtml"
	if len(filename) <= len(prefix)+len(suffix) {
		return
	}
	if filename[:len(prefix)] != prefix || filename[len(filename)-len(suffix):] != suffix {
		return
	}
	n, err := strconv.Atoi(filename[len(prefix) : len(filename)-len(suffix)])
	if err != nil {
		return
	}
	if n > p.chapterCounter {
		p.chapterCounter = n
	}
}

// UntitledCounter returns a pointer to the publication's running
// untitled-chapter counter, threaded into pkg/markup.Extract so title
// fallback numbering is scoped to one publication instead of living as
// package-level state.
func (p *Publication) UntitledCounter() *int {
	return &p.untitledCount
}

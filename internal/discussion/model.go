// Package discussion holds the in-memory model of a discussion page (sections
// and the comments in them) and the code that maps that model back onto raw
// page source: locating a section's byte range and inserting new content.
package discussion

import (
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
)

// Comment is one signed comment as seen on the rendered page.
type Comment struct {
	Anchor    string
	Date      time.Time
	Author    string
	Timestamp string // timestamp text as rendered, if known
	Text      string // comment text with markup removed

	IsOpeningSection      bool
	OpeningSectionOfLevel int

	IsOwn  bool
	IsNew  bool
	IsSeen bool

	// IndentationChars are the list markers the comment is indented with, e.g. "::*".
	IndentationChars string

	Section *Section
}

// Section is one heading of the rendered page and the content under it.
type Section struct {
	// ID is the section's index in document order during one parse. It is not
	// stable across page loads.
	ID       int
	Headline string
	Level    int

	// OldestComment is the earliest dated comment directly in the section.
	OldestComment *Comment
	Comments      []*Comment

	// SourcePage is the page whose source holds the section. It differs from
	// the displayed page when the section is transcluded.
	SourcePage string

	// PrecedingHeadlines are the headlines of the sections before this one, in
	// document order. Only the last three are used when locating.
	PrecedingHeadlines []string

	// InCode is set by Locator.Locate and cleared before every attempt.
	InCode *Location

	model *Model
}

// Model is the result of parsing one page: its sections in document order
// and the registry of comment anchors issued during the parse.
type Model struct {
	Page     string
	Sections []*Section
	Comments []*Comment
	Anchors  *timestamp.AnchorRegistry
}

// NewModel starts an empty model for page with a fresh anchor registry.
func NewModel(page string) *Model {
	return &Model{Page: page, Anchors: timestamp.NewAnchorRegistry()}
}

// AddSection appends a section. Its ID and preceding headlines are derived
// from the sections already in the model.
func (m *Model) AddSection(headline string, level int, sourcePage string) *Section {
	if sourcePage == "" {
		sourcePage = m.Page
	}

	start := len(m.Sections) - 3
	if start < 0 {
		start = 0
	}
	preceding := make([]string, 0, 3)
	for _, s := range m.Sections[start:] {
		preceding = append(preceding, s.Headline)
	}

	s := &Section{
		ID:                 len(m.Sections),
		Headline:           headline,
		Level:              level,
		SourcePage:         sourcePage,
		PrecedingHeadlines: preceding,
		model:              m,
	}
	m.Sections = append(m.Sections, s)
	return s
}

// AddComment appends a comment to section, resolving its anchor against the
// model's registry and updating the section's oldest comment.
func (m *Model) AddComment(section *Section, date time.Time, author, text string) *Comment {
	c := &Comment{
		Date:    date,
		Author:  author,
		Text:    text,
		Section: section,
	}
	if !date.IsZero() {
		c.Anchor = m.Anchors.Resolve(date, author)
	}

	if len(section.Comments) == 0 {
		c.IsOpeningSection = true
		c.OpeningSectionOfLevel = section.Level
	}
	section.Comments = append(section.Comments, c)
	m.Comments = append(m.Comments, c)

	if !date.IsZero() && (section.OldestComment == nil || date.Before(section.OldestComment.Date)) {
		section.OldestComment = c
	}
	return c
}

// CommentByAnchor returns the comment with the given anchor, or nil.
func (m *Model) CommentByAnchor(anchor string) *Comment {
	for _, c := range m.Comments {
		if c.Anchor == anchor {
			return c
		}
	}
	return nil
}

// Base returns the closest enclosing section of level 2 or higher, the
// section itself if it qualifies.
func (s *Section) Base() *Section {
	if s.Level <= 2 || s.model == nil {
		return s
	}
	for i := s.ID - 1; i >= 0; i-- {
		if other := s.model.Sections[i]; other.Level <= 2 {
			return other
		}
	}
	return s
}

// Children returns the subsections of s: only direct ones unless indirect is
// set.
func (s *Section) Children(indirect bool) []*Section {
	if s.model == nil {
		return nil
	}

	var children []*Section
	shallowest := 7
	for _, other := range s.model.Sections[s.ID+1:] {
		if other.Level <= s.Level {
			break
		}
		// A subsection is direct unless a shallower subsection precedes it.
		if indirect || other.Level <= shallowest {
			children = append(children, other)
		}
		shallowest = min(shallowest, other.Level)
	}
	return children
}

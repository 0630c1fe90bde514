// Package page models a wiki page's source snapshot and the narrow
// interfaces used to fetch and edit it.
package page

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
	"github.com/GergesShamon/convenient-discussions/internal/wikitext"
)

// Page is one snapshot of a page's source.
type Page struct {
	Name string
	// ID is the wiki's page ID. It is 0 for a page that doesn't exist.
	ID         int64
	Code       string
	RevisionID int64
	// QueryTimestamp is the server time the code was fetched at. It is sent
	// back as the edit start timestamp to detect conflicting deletions.
	QueryTimestamp string
}

// Provider fetches page source.
type Provider interface {
	// GetCode returns the current source of the page. Errors are network or
	// api errors; api errors carry code missing or invalid.
	GetCode(ctx context.Context, name string, bypassCache bool) (*Page, error)
}

// EditRequest describes a full-page edit.
type EditRequest struct {
	Title          string
	Text           string
	Summary        string
	BaseRevisionID int64
	StartTimestamp string
	Minor          bool
}

// EditResult is returned by a successful edit.
type EditResult struct {
	NewRevisionID int64
	NoChange      bool
}

// Editor submits edits. Errors are network or api errors; api errors carry
// codes such as edit-conflict, blocked or abuse-filter.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (*EditResult, error)
}

// Placement is where new topics go on a page.
type Placement struct {
	AreNewTopicsOnTop bool
	// FirstSectionStartIndex is the offset of the first heading, or -1 if the
	// page has none.
	FirstSectionStartIndex int
}

// AnalyzeNewTopicPlacement tells whether new topics are added to the top of
// the page. They are when the page has at least two dated level-2 sections
// and the first of them is newer than the last. override, when set, wins.
func (p *Page) AnalyzeNewTopicPlacement(engine *timestamp.Engine, override *bool) Placement {
	adjusted := wikitext.HideDistractingCode(p.Code)
	headings := wikitext.ScanHeadings(adjusted)

	placement := Placement{FirstSectionStartIndex: -1}
	if len(headings) > 0 {
		placement.FirstSectionStartIndex = headings[0].Start
	}
	if override != nil {
		placement.AreNewTopicsOnTop = *override
		return placement
	}

	var first, last time.Time
	dated := 0
	for _, h := range headings {
		if h.Level != 2 {
			continue
		}
		end := wikitext.FindSectionEnd(adjusted, h.ContentStart, 2)
		date, ok := oldestDate(engine, adjusted[h.ContentStart:end])
		if !ok {
			continue
		}
		if dated == 0 {
			first = date
		}
		last = date
		dated++
	}
	placement.AreNewTopicsOnTop = dated >= 2 && first.After(last)
	return placement
}

func oldestDate(engine *timestamp.Engine, code string) (time.Time, bool) {
	var oldest time.Time
	re := engine.Regexp()
	for _, m := range re.FindAllStringSubmatchIndex(code, -1) {
		date, ok := engine.DateFromMatch(code, m)
		if ok && (oldest.IsZero() || date.Before(oldest)) {
			oldest = date
		}
	}
	return oldest, !oldest.IsZero()
}

// IsProbablyTalkPage reports whether name is in a talk namespace or starts
// with one of extraPrefixes (e.g. "Wikipedia:Village pump").
func IsProbablyTalkPage(name string, extraPrefixes []string) bool {
	name = strings.ReplaceAll(name, "_", " ")
	for _, prefix := range extraPrefixes {
		if prefix != "" && strings.HasPrefix(name, strings.ReplaceAll(prefix, "_", " ")) {
			return true
		}
	}

	ns, _, ok := strings.Cut(name, ":")
	if !ok {
		return false
	}
	ns = strings.ToLower(strings.TrimSpace(ns))
	return ns == "talk" || strings.HasSuffix(ns, " talk")
}

// SectionWikilink is the link target of a section on a page.
func SectionWikilink(pageName, headline string) string {
	return pageName + "#" + wikitext.EncodeWikilink(headline)
}

// maxSummaryLength is the edit summary limit in characters.
const maxSummaryLength = 500

// BuildEditSummary prefixes text with the section autocomment and trims the
// result to the summary length limit.
func BuildEditSummary(text, section string) string {
	summary := text
	if section != "" {
		summary = "/* " + section + " */ " + text
	}
	if utf8.RuneCountInString(summary) <= maxSummaryLength {
		return summary
	}
	runes := []rune(summary)
	return string(runes[:maxSummaryLength-1]) + "…"
}

package discussion

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/GergesShamon/convenient-discussions/internal/config"
	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
	"github.com/GergesShamon/convenient-discussions/internal/wikitext"
)

// placeholderRegex matches a lone "#" or "*" list item ending the first chunk.
var placeholderRegex = regexp.MustCompile(`\n([#*]) *\n+$`)

// Location is the byte range a section occupies in one snapshot of page
// source. All indices are offsets into that snapshot.
type Location struct {
	StartIndex        int
	EndIndex          int
	ContentStartIndex int
	ContentEndIndex   int

	FirstChunkEndIndex        int
	FirstChunkContentEndIndex int

	Code           string
	FirstChunkCode string

	// RelativeContentStartIndex is ContentStartIndex - StartIndex.
	RelativeContentStartIndex int

	// ReplyPlaceholder is "#" or "*" when the first chunk ends with an empty
	// list item that replies should continue, otherwise "".
	ReplyPlaceholder string

	Headline     string // headline as found in the code, normalized
	Level        int
	SectionIndex int // scan-order index of the heading
	Score        float64
	Signals      Signals
}

// Signals is the per-signal breakdown of a candidate's score.
type Signals struct {
	Headline              bool
	OldestCommentIdentity bool
	OldestCommentOverlap  float64 // value of the oldest-comment term in [0,1]
	SectionIndex          bool
	PrecedingHeadlines    bool
}

// Locator finds sections in page source.
type Locator struct {
	scoring    config.ScoringConfig
	keepEnding []*regexp.Regexp
	signatures *wikitext.SignatureExtractor
	logger     *slog.Logger
}

// NewLocator builds a locator from configuration. engine parses the
// signature timestamps found in section code.
func NewLocator(cfg *config.Config, engine *timestamp.Engine, logger *slog.Logger) (*Locator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	keep := make([]*regexp.Regexp, 0, len(cfg.KeepInSectionEnding))
	for _, pattern := range cfg.KeepInSectionEnding {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile keep_in_section_ending %q: %w", pattern, err)
		}
		keep = append(keep, re)
	}

	return &Locator{
		scoring:    cfg.Scoring,
		keepEnding: keep,
		signatures: wikitext.NewSignatureExtractor(engine, cfg.UserNamespaces, cfg.ContributionsPage),
		logger:     logger,
	}, nil
}

// Locate finds the section in code and stores the result in section.InCode.
// It returns a parse error with code section-not-found if no candidate
// scores above the threshold.
func (l *Locator) Locate(section *Section, code string) (*Location, error) {
	section.InCode = nil

	var best *Location
	for _, candidate := range l.Search(section, code) {
		if best == nil || candidate.Score > best.Score {
			best = candidate
		}
	}
	if best == nil {
		return nil, cderrors.NewLocateSection(section.Headline)
	}

	l.logger.Debug("section located",
		"headline", section.Headline,
		"section_index", best.SectionIndex,
		"score", best.Score,
	)
	section.InCode = best
	return best, nil
}

// Search returns the candidates scoring above the threshold in document
// order. Scanning stops at the first candidate reaching the maximum score.
func (l *Locator) Search(section *Section, code string) []*Location {
	adjusted := wikitext.HideDistractingCode(code)
	headings := wikitext.ScanHeadings(adjusted)
	headlines := make([]string, len(headings))
	for i, h := range headings {
		headlines[i] = wikitext.NormalizeCode(wikitext.RemoveWikiMarkup(h.Text))
	}

	targetHeadline := wikitext.NormalizeCode(section.Headline)
	preceding := lastReversed(section.PrecedingHeadlines, 3)
	for i, h := range preceding {
		preceding[i] = wikitext.NormalizeCode(h)
	}
	maxScore := l.scoring.MaxScore()

	var candidates []*Location
	for i, h := range headings {
		codePreceding := make([]string, 0, 3)
		for j := i - 1; j >= 0 && j >= i-3; j-- {
			codePreceding = append(codePreceding, headlines[j])
		}

		loc := l.buildLocation(code, adjusted, h, i)
		loc.Headline = headlines[i]
		loc.Signals.Headline = headlines[i] == targetHeadline
		loc.Signals.SectionIndex = section.ID == i
		loc.Signals.PrecedingHeadlines = headlinesMatch(preceding, codePreceding)
		loc.Signals.OldestCommentIdentity, loc.Signals.OldestCommentOverlap = l.matchOldestComment(section.OldestComment, loc.Code)

		loc.Score = l.score(loc.Signals)
		if loc.Score <= l.scoring.Threshold {
			continue
		}
		candidates = append(candidates, loc)
		if loc.Score >= maxScore {
			break
		}
	}
	return candidates
}

func (l *Locator) score(s Signals) float64 {
	score := s.OldestCommentOverlap * l.scoring.OldestComment
	if s.Headline {
		score += l.scoring.Headline
	}
	if s.SectionIndex {
		score += l.scoring.SectionIndex
	}
	if s.PrecedingHeadlines {
		score += l.scoring.PrecedingHeadlines
	}
	return score
}

// matchOldestComment compares the model's oldest comment with the oldest
// signature in sectionCode. It returns whether they are certainly the same
// comment and the value of the oldest-comment term.
func (l *Locator) matchOldestComment(oldest *Comment, sectionCode string) (bool, float64) {
	sig := oldestSignature(l.signatures.Extract(sectionCode))

	switch {
	case oldest == nil && sig == nil:
		return false, 1
	case oldest == nil || sig == nil:
		return false, 0
	}

	sameDate := !oldest.Date.IsZero() && oldest.Date.Equal(sig.Date)
	sameTimestamp := oldest.Timestamp != "" && oldest.Timestamp == sig.Timestamp
	sameAuthor := oldest.Author != "" && oldest.Author == sig.Author
	if sameDate || sameTimestamp || sameAuthor {
		return true, 1
	}

	text := wikitext.RemoveWikiMarkup(sectionCode[sig.CommentStartIndex:sig.StartIndex])
	return false, wikitext.CalculateWordOverlap(oldest.Text, text)
}

func oldestSignature(sigs []wikitext.Signature) *wikitext.Signature {
	var oldest *wikitext.Signature
	for i := range sigs {
		sig := &sigs[i]
		if oldest == nil ||
			(oldest.Date.IsZero() && !sig.Date.IsZero()) ||
			(!sig.Date.IsZero() && sig.Date.Before(oldest.Date)) {
			oldest = sig
		}
	}
	return oldest
}

// headlinesMatch reports whether every model headline equals the code
// headline at the same position. Both lists are nearest-first.
func headlinesMatch(model, code []string) bool {
	for i, h := range model {
		if i >= len(code) || code[i] != h {
			return false
		}
	}
	return true
}

func lastReversed(list []string, n int) []string {
	start := max(0, len(list)-n)
	out := make([]string, 0, len(list)-start)
	for i := len(list) - 1; i >= start; i-- {
		out = append(out, list[i])
	}
	return out
}

func (l *Locator) buildLocation(code, adjusted string, h wikitext.Heading, i int) *Location {
	end := wikitext.FindSectionEnd(adjusted, h.ContentStart, h.Level)

	// The first chunk ends at the next heading of any level.
	firstChunkEnd := wikitext.FindSectionEnd(adjusted, h.ContentStart, 6)
	if firstChunkEnd < len(code) {
		// Blank lines before the next heading don't belong to the first chunk.
		r := firstChunkEnd
		for r > 0 && adjusted[r-1] == '\n' {
			r--
		}
		firstChunkEnd = max(r+1, h.ContentStart)
	}

	loc := &Location{
		StartIndex:                h.Start,
		EndIndex:                  end,
		ContentStartIndex:         h.ContentStart,
		ContentEndIndex:           end,
		FirstChunkEndIndex:        firstChunkEnd,
		FirstChunkContentEndIndex: firstChunkEnd,
		Code:                      code[h.Start:end],
		FirstChunkCode:            code[h.Start:firstChunkEnd],
		RelativeContentStartIndex: h.ContentStart - h.Start,
		Level:                     h.Level,
		SectionIndex:              i,
	}

	for _, re := range l.keepEnding {
		// The pattern's leading line break stays in the content.
		if m := re.FindStringIndex(loc.FirstChunkCode); m != nil && m[1] > m[0] {
			loc.FirstChunkContentEndIndex -= m[1] - m[0] - 1
		}
		if m := re.FindStringIndex(loc.Code); m != nil && m[1] > m[0] {
			loc.ContentEndIndex -= m[1] - m[0] - 1
		}
	}

	if m := placeholderRegex.FindStringSubmatchIndex(loc.FirstChunkCode); m != nil {
		// The placeholder line itself, up to the end of the chunk.
		loc.FirstChunkContentEndIndex -= len(loc.FirstChunkCode) - m[2]
		loc.ReplyPlaceholder = loc.FirstChunkCode[m[2]:m[3]]
	}

	loc.ContentEndIndex = max(loc.ContentEndIndex, loc.ContentStartIndex)
	loc.FirstChunkContentEndIndex = max(loc.FirstChunkContentEndIndex, loc.ContentStartIndex)
	return loc
}

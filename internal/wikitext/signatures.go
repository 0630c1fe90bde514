package wikitext

import (
	"regexp"
	"strings"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
)

// Signature is an author and timestamp pair found in page source.
type Signature struct {
	Author    string    // empty for unsigned timestamps
	Date      time.Time // zero if the timestamp couldn't be converted
	Timestamp string    // timestamp text as written, including the timezone

	// StartIndex is where the signature begins: the author link if there is
	// one on the timestamp's line, otherwise the timestamp.
	StartIndex int
	EndIndex   int

	// CommentStartIndex is where the signed comment begins: right after the
	// line holding the previous signature, or 0.
	CommentStartIndex int
}

// SignatureExtractor finds signatures in page source.
type SignatureExtractor struct {
	engine   *timestamp.Engine
	userLink *regexp.Regexp
}

// NewSignatureExtractor builds an extractor recognizing links to pages in
// userNamespaces (e.g. "User", "User talk") and to contributionsPage (e.g.
// "Special:Contributions") as author links.
func NewSignatureExtractor(engine *timestamp.Engine, userNamespaces []string, contributionsPage string) *SignatureExtractor {
	return &SignatureExtractor{
		engine:   engine,
		userLink: buildUserLinkRegex(userNamespaces, contributionsPage),
	}
}

func buildUserLinkRegex(namespaces []string, contributionsPage string) *regexp.Regexp {
	spaced := func(s string) string {
		return strings.ReplaceAll(regexp.QuoteMeta(s), " ", "[ _]+")
	}

	alts := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		if ns = strings.TrimSpace(ns); ns != "" {
			alts = append(alts, spaced(ns))
		}
	}

	var parts []string
	if len(alts) > 0 {
		parts = append(parts, `(?:`+strings.Join(alts, "|")+`)[ _]*:[ _]*([^|\]\[#/\n]+)`)
	}
	if contributionsPage != "" {
		parts = append(parts, spaced(contributionsPage)+`/[ _]*([^|\]\[#\n]+)`)
	}
	if len(parts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\[\[[ _]*:?[ _]*(?:` + strings.Join(parts, "|") + `)`)
}

// Extract returns the signatures in code in document order. Timestamps inside
// comments and <nowiki>-like tags are ignored.
func (x *SignatureExtractor) Extract(code string) []Signature {
	adjusted := HideDistractingCode(code)
	re := x.engine.Regexp()

	var sigs []Signature
	commentStart := 0
	for _, m := range re.FindAllStringSubmatchIndex(adjusted, -1) {
		if rest := adjusted[m[1]:]; strings.HasPrefix(rest, `"`) || strings.HasPrefix(rest, "»") {
			continue
		}

		sig := Signature{
			Timestamp:         code[m[0]:m[1]],
			StartIndex:        m[0],
			EndIndex:          m[1],
			CommentStartIndex: commentStart,
		}
		if date, ok := x.engine.DateFromMatch(code, m); ok {
			sig.Date = date
		}

		lineStart := strings.LastIndexByte(adjusted[:m[0]], '\n') + 1
		if lineStart < commentStart {
			lineStart = commentStart
		}
		if author, start, ok := x.lastAuthor(adjusted, lineStart, m[0]); ok {
			sig.Author = author
			sig.StartIndex = start
		}

		sigs = append(sigs, sig)

		if nl := strings.IndexByte(adjusted[m[1]:], '\n'); nl >= 0 {
			commentStart = m[1] + nl + 1
		} else {
			commentStart = len(code)
		}
	}
	return sigs
}

// lastAuthor finds the last author link in adjusted[from:to].
func (x *SignatureExtractor) lastAuthor(adjusted string, from, to int) (string, int, bool) {
	if x.userLink == nil {
		return "", 0, false
	}
	matches := x.userLink.FindAllStringSubmatchIndex(adjusted[from:to], -1)
	if len(matches) == 0 {
		return "", 0, false
	}
	m := matches[len(matches)-1]
	for g := 1; 2*g+1 < len(m); g++ {
		if m[2*g] >= 0 {
			name := adjusted[from+m[2*g] : from+m[2*g+1]]
			return NormalizeCode(name), from + m[0], true
		}
	}
	return "", 0, false
}

// FindFirstTimestamp returns the first timestamp in code outside of hidden
// code, or "".
func FindFirstTimestamp(code string, engine *timestamp.Engine) string {
	loc := engine.Regexp().FindStringIndex(HideDistractingCode(code))
	if loc == nil {
		return ""
	}
	return code[loc[0]:loc[1]]
}

package wikitext

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	maskRegex         = regexp.MustCompile("[\x01\x02]+")
	tagRegex          = regexp.MustCompile(`</?[a-zA-Z][^<>]*>`)
	templateRegex     = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	wikilinkRegex     = regexp.MustCompile(`\[\[:?(?:[^|\[\]]*\|)?([^\[\]]*)\]\]`)
	externalLinkRegex = regexp.MustCompile(`\[(?:https?:)?//[^\s\]]+\s*([^\]]*)\]`)
	quotesRegex       = regexp.MustCompile(`'{2,5}`)
	headingRegex      = regexp.MustCompile(`(?m)^=+[ \t]*(.*?)[ \t]*=+[ \t]*$`)
	listMarkerRegex   = regexp.MustCompile(`(?m)^[:*#;]+[ \t]*`)
	spacesRegex       = regexp.MustCompile(`\s+`)
	htmlTagLikeRegex  = regexp.MustCompile(`<(\w+(?: [^>]*)?)>`)
)

// RemoveWikiMarkup strips markup so that two renditions of the same text
// compare equal: comments, tags, templates, link syntax (keeping the link
// text), bold and italic quotes, heading and list markers. The result is only
// suitable for comparison, never for slicing.
func RemoveWikiMarkup(code string) string {
	// Each pass can expose markup that an earlier step already handled, e.g.
	// quotes joined by a removed tag. Iterate to a fixed point.
	for i := 0; i < 5; i++ {
		next := removeWikiMarkupPass(code)
		if next == code {
			break
		}
		code = next
	}
	return code
}

func removeWikiMarkupPass(code string) string {
	code = commentRegex.ReplaceAllString(code, "")
	code = maskRegex.ReplaceAllString(code, "")
	code = tagRegex.ReplaceAllString(code, "")
	for {
		next := templateRegex.ReplaceAllString(code, "")
		if next == code {
			break
		}
		code = next
	}
	code = wikilinkRegex.ReplaceAllString(code, "$1")
	code = externalLinkRegex.ReplaceAllString(code, "$1")
	code = quotesRegex.ReplaceAllString(code, "")
	code = headingRegex.ReplaceAllString(code, "$1")
	code = listMarkerRegex.ReplaceAllString(code, "")
	return strings.TrimSpace(code)
}

// NormalizeCode makes headline-like text comparable: underscores become
// spaces, whitespace runs collapse to one space, ends are trimmed.
func NormalizeCode(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	s = maskRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(spacesRegex.ReplaceAllString(s, " "))
}

// EndWithTwoNewlines makes text that ends with a non-newline character,
// optionally followed by a single line break, end with exactly two line
// breaks. Text already ending with two or more line breaks is returned as is.
func EndWithTwoNewlines(s string) string {
	n := len(s)
	switch {
	case n == 0:
		return s
	case s[n-1] != '\n':
		return s + "\n\n"
	case n >= 2 && s[n-2] != '\n':
		return s + "\n"
	default:
		return s
	}
}

// CalculateWordOverlap returns the share of distinct words two texts have in
// common, |A∩B| / |A∪B|. Words are runs of letters and digits compared
// case-insensitively. Returns 0 if either text has no words.
func CalculateWordOverlap(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	shared := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(wordsA)+len(wordsB)-shared)
}

func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var wikilinkReplacer = strings.NewReplacer(
	"[", "&#91;",
	"]", "&#93;",
	"{", "&#123;",
	"|", "&#124;",
	"}", "&#125;",
)

// EncodeWikilink escapes a headline for use as the fragment of a wikilink.
func EncodeWikilink(s string) string {
	s = htmlTagLikeRegex.ReplaceAllString(s, "&lt;$1&gt;")
	s = wikilinkReplacer.Replace(s)
	return spacesRegex.ReplaceAllString(s, " ")
}

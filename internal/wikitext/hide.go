// Package wikitext holds the text transforms used to compare and slice raw
// page source: masking code that must not be parsed structurally, stripping
// markup before text comparison, and extracting comment signatures.
package wikitext

import (
	"regexp"
	"strings"
)

// Mask is the byte that replaces hidden code.
const Mask = '\x01'

// distractingTags are tags whose contents may contain heading-like lines or
// signatures that must not be treated as structure.
var distractingTags = []string{
	"nowiki", "pre", "syntaxhighlight", "source", "math", "code", "templatestyles",
}

var (
	commentRegex         = regexp.MustCompile(`(?s)<!--.*?(?:-->|$)`)
	defaultTagRegexes    = buildTagRegexes(distractingTags)
	selfClosingTagRegexp = regexp.MustCompile(`(?i)<(?:nowiki|templatestyles)\b[^>]*/>`)
)

func buildTagRegexes(tags []string) []*regexp.Regexp {
	regexes := make([]*regexp.Regexp, 0, len(tags))
	for _, tag := range tags {
		tag = regexp.QuoteMeta(strings.ToLower(tag))
		regexes = append(regexes, regexp.MustCompile(`(?is)<`+tag+`(?:\s[^>]*)?>.*?</`+tag+`\s*>`))
	}
	return regexes
}

// HideDistractingCode replaces HTML comments and the contents of tags like
// <nowiki> and <pre> (plus extraTags) with Mask bytes. Line breaks are kept and
// the result has the same byte length as code, so offsets found in the result
// can be used to slice code.
func HideDistractingCode(code string, extraTags ...string) string {
	b := []byte(code)

	mask := func(re *regexp.Regexp) {
		for _, loc := range re.FindAllIndex(b, -1) {
			for i := loc[0]; i < loc[1]; i++ {
				if b[i] != '\n' {
					b[i] = Mask
				}
			}
		}
	}

	mask(commentRegex)
	for _, re := range defaultTagRegexes {
		mask(re)
	}
	if len(extraTags) > 0 {
		for _, re := range buildTagRegexes(extraTags) {
			mask(re)
		}
	}
	mask(selfClosingTagRegexp)

	return string(b)
}

// Package timestamp parses and formats signature timestamps written in a
// wiki's content-language date format, and derives comment anchors from them.
//
// Terminology: a "date" is a time.Time, a "timestamp" is the string as it
// appears on a wiki page (e.g. "23:29, 10 May 2019 (UTC)").
package timestamp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf8"

	"github.com/GergesShamon/convenient-discussions/internal/config"
)

// dirMarks matches left-to-right and right-to-left marks that get copied from
// page histories into timestamps.
var dirMarks = regexp.MustCompile("[\u200E\u200F]")

// token is one element of a parsed date format.
type token struct {
	code    string // format code; empty for literals
	literal string
}

// Engine parses and formats timestamps for one date format and locale.
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	cfg      config.TimestampConfig
	tokens   []token
	groups   []string // codes of the capturing groups, in order
	digits   []rune
	location *time.Location

	mainPattern     string
	timezonePattern string
	re              *regexp.Regexp
	reNoTimezone    *regexp.Regexp
	reTimezone      *regexp.Regexp
}

// Parsed is the result of a successful Parse.
type Parsed struct {
	Date      time.Time // UTC instant
	Timestamp string    // the matched text, including the timezone suffix if any
	Start     int       // byte offset of the match in the input (after dir mark removal)
	End       int
}

// NewEngine builds an engine from the content-language timestamp settings.
func NewEngine(cfg config.TimestampConfig) (*Engine, error) {
	if cfg.DateFormat == "" {
		return nil, fmt.Errorf("date format is empty")
	}
	for name, list := range map[string]struct {
		values []string
		want   int
	}{
		"month_names":          {cfg.MonthNames, 12},
		"month_names_genitive": {cfg.MonthNamesGenitive, 12},
		"month_abbrevs":        {cfg.MonthAbbrevs, 12},
		"day_names":            {cfg.DayNames, 7},
		"day_abbrevs":          {cfg.DayAbbrevs, 7},
	} {
		if len(list.values) != 0 && len(list.values) != list.want {
			return nil, fmt.Errorf("%s: want %d entries, got %d", name, list.want, len(list.values))
		}
	}

	e := &Engine{cfg: cfg}

	if cfg.Digits != "" {
		e.digits = []rune(cfg.Digits)
		if len(e.digits) != 10 {
			return nil, fmt.Errorf("digits: want 10 characters, got %d", len(e.digits))
		}
	}

	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	e.location = loc

	e.tokens = tokenize(cfg.DateFormat)
	for _, t := range e.tokens {
		if t.code != "" && t.code != "xx" {
			if e.names(t.code) == nil && isNameCode(t.code) {
				return nil, fmt.Errorf("format code %q needs localized names", t.code)
			}
			e.groups = append(e.groups, t.code)
		}
	}

	e.mainPattern = e.buildMainPattern()
	utcLabel := cfg.UTCLabel
	if utcLabel == "" {
		utcLabel = "UTC"
	}
	e.timezonePattern = `\((?:` + regexp.QuoteMeta(utcLabel) + `|[A-Z]{1,5}|[+-]\d{0,4})\)`

	// " +" accounts for direction marks replaced with a space.
	if e.re, err = regexp.Compile(e.mainPattern + ` +` + e.timezonePattern); err != nil {
		return nil, fmt.Errorf("compile timestamp regexp: %w", err)
	}
	if e.reNoTimezone, err = regexp.Compile(e.mainPattern); err != nil {
		return nil, fmt.Errorf("compile timestamp regexp: %w", err)
	}
	e.reTimezone = regexp.MustCompile(e.timezonePattern)

	return e, nil
}

// Regexp matches a timestamp followed by a timezone suffix.
func (e *Engine) Regexp() *regexp.Regexp { return e.re }

// RegexpNoTimezone matches the date part of a timestamp only.
func (e *Engine) RegexpNoTimezone() *regexp.Regexp { return e.reNoTimezone }

// TimezoneRegexp matches the timezone suffix, e.g. "(UTC)".
func (e *Engine) TimezoneRegexp() *regexp.Regexp { return e.reTimezone }

// Location is the wiki's timezone.
func (e *Engine) Location() *time.Location { return e.location }

// tokenize splits a MediaWiki date format into codes and literals. Supported
// codes are D d F G H i j l M n Y xg xkY xx, backslash escapes and "quoted"
// literals.
func tokenize(format string) []token {
	var tokens []token
	lit := func(s string) {
		if n := len(tokens); n > 0 && tokens[n-1].code == "" {
			tokens[n-1].literal += s
			return
		}
		tokens = append(tokens, token{literal: s})
	}

	for p := 0; p < len(format); p++ {
		c := format[p]
		switch {
		case c == 'x' && strings.HasPrefix(format[p:], "xkY"):
			tokens = append(tokens, token{code: "xkY"})
			p += 2
		case c == 'x' && strings.HasPrefix(format[p:], "xg"):
			tokens = append(tokens, token{code: "xg"})
			p++
		case c == 'x' && strings.HasPrefix(format[p:], "xx"):
			tokens = append(tokens, token{code: "xx"})
			p++
		case strings.IndexByte("DdFGHijlMnY", c) >= 0:
			tokens = append(tokens, token{code: string(c)})
		case c == '\\':
			if p < len(format)-1 {
				_, size := utf8.DecodeRuneInString(format[p+1:])
				lit(format[p+1 : p+1+size])
				p += size
			} else {
				lit(`\`)
			}
		case c == '"':
			end := -1
			if p < len(format)-1 {
				end = strings.IndexByte(format[p+1:], '"')
			}
			if end == -1 {
				lit(`"`)
			} else {
				lit(format[p+1 : p+1+end])
				p += end + 1
			}
		default:
			_, size := utf8.DecodeRuneInString(format[p:])
			lit(format[p : p+size])
			p += size - 1
		}
	}
	return tokens
}

func isNameCode(code string) bool {
	switch code {
	case "xg", "F", "M", "D", "l":
		return true
	}
	return false
}

func (e *Engine) names(code string) []string {
	switch code {
	case "xg":
		return e.cfg.MonthNamesGenitive
	case "F":
		return e.cfg.MonthNames
	case "M":
		return e.cfg.MonthAbbrevs
	case "D":
		return e.cfg.DayAbbrevs
	case "l":
		return e.cfg.DayNames
	}
	return nil
}

func (e *Engine) buildMainPattern() string {
	digit := `\d`
	if e.digits != nil {
		digit = "[" + regexp.QuoteMeta(string(e.digits)) + "]"
	}

	var b strings.Builder
	if e.startsWithASCIIWord() {
		b.WriteString(`\b`)
	}
	for _, t := range e.tokens {
		switch t.code {
		case "":
			b.WriteString(regexp.QuoteMeta(t.literal))
		case "xx":
			b.WriteString("x")
		case "xg", "D", "l", "F", "M":
			names := e.names(t.code)
			quoted := make([]string, len(names))
			for i, n := range names {
				quoted[i] = regexp.QuoteMeta(n)
			}
			b.WriteString("(" + strings.Join(quoted, "|") + ")")
		case "d", "H", "i":
			b.WriteString("(" + digit + "{2})")
		case "j", "n", "G":
			b.WriteString("(" + digit + "{1,2})")
		case "Y", "xkY":
			b.WriteString("(" + digit + "{4})")
		}
	}
	return b.String()
}

// startsWithASCIIWord reports whether every timestamp starts with an ASCII
// word character, the only case where a leading \b can match.
func (e *Engine) startsWithASCIIWord() bool {
	if len(e.tokens) == 0 {
		return false
	}
	first := e.tokens[0]
	switch first.code {
	case "":
		return isASCIIWordByte(first.literal[0])
	case "xx":
		return true
	case "xg", "D", "l", "F", "M":
		for _, n := range e.names(first.code) {
			if n == "" || !isASCIIWordByte(n[0]) {
				return false
			}
		}
		return true
	default:
		return e.digits == nil
	}
}

func isASCIIWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// RemoveDirMarks strips left-to-right and right-to-left marks.
func RemoveDirMarks(s string) string {
	return dirMarks.ReplaceAllString(s, "")
}

// Parse finds the last timestamp with a timezone suffix in s and converts it
// to a date using the wiki's timezone. A timestamp followed by a quote
// character is treated as quoted text and skipped.
func (e *Engine) Parse(s string) (*Parsed, bool) {
	return e.parse(s, e.re, nil)
}

// ParseWithOffset is Parse for timestamps without a timezone suffix,
// interpreting them with the given UTC offset in minutes.
func (e *Engine) ParseWithOffset(s string, offsetMinutes int) (*Parsed, bool) {
	return e.parse(s, e.reNoTimezone, &offsetMinutes)
}

func (e *Engine) parse(s string, re *regexp.Regexp, offset *int) (*Parsed, bool) {
	s = RemoveDirMarks(s)

	matches := re.FindAllStringSubmatchIndex(s, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if offset == nil && followedByQuote(s[m[1]:]) {
			continue
		}
		date, ok := e.dateFromMatch(s, m, offset)
		if !ok {
			continue
		}
		return &Parsed{Date: date, Timestamp: s[m[0]:m[1]], Start: m[0], End: m[1]}, true
	}
	return nil, false
}

func followedByQuote(rest string) bool {
	return strings.HasPrefix(rest, `"`) || strings.HasPrefix(rest, "»")
}

// DateFromMatch converts submatch indices produced by Regexp or
// RegexpNoTimezone on s into a date.
func (e *Engine) DateFromMatch(s string, m []int) (time.Time, bool) {
	return e.dateFromMatch(s, m, nil)
}

func (e *Engine) dateFromMatch(s string, m []int, offset *int) (time.Time, bool) {
	var year, day, hours, minutes int
	month := 1

	for i, code := range e.groups {
		start, end := m[2*(i+1)], m[2*(i+1)+1]
		if start < 0 {
			return time.Time{}, false
		}
		text := s[start:end]

		switch code {
		case "xg", "F", "M":
			idx := indexOf(e.names(code), text)
			if idx < 0 {
				return time.Time{}, false
			}
			month = idx + 1
		case "d", "j":
			day = e.number(text)
		case "D", "l":
			// Day of the week carries no information.
		case "n":
			month = e.number(text)
		case "Y":
			year = e.number(text)
		case "xkY":
			year = e.number(text) - 543
		case "G", "H":
			hours = e.number(text)
		case "i":
			minutes = e.number(text)
		}
	}

	if offset != nil {
		t := time.Date(year, time.Month(month), day, hours, minutes, 0, 0, time.UTC)
		return t.Add(-time.Duration(*offset) * time.Minute), true
	}
	return time.Date(year, time.Month(month), day, hours, minutes, 0, 0, e.location).UTC(), true
}

func (e *Engine) number(text string) int {
	if e.digits != nil {
		var b strings.Builder
		for _, r := range text {
			if idx := indexRune(e.digits, r); idx >= 0 {
				b.WriteByte(byte('0' + idx))
			} else {
				b.WriteRune(r)
			}
		}
		text = b.String()
	}
	n, _ := strconv.Atoi(text)
	return n
}

// Format renders t in the engine's date format in loc (the wiki timezone when
// loc is nil). It is the inverse of ParseWithOffset for the same location.
func (e *Engine) Format(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = e.location
	}
	t = t.In(loc)

	var b strings.Builder
	for _, tok := range e.tokens {
		switch tok.code {
		case "":
			b.WriteString(tok.literal)
		case "xx":
			b.WriteString("x")
		case "xg", "F", "M":
			b.WriteString(e.names(tok.code)[t.Month()-1])
		case "D", "l":
			b.WriteString(e.names(tok.code)[t.Weekday()])
		case "d":
			b.WriteString(e.localize(fmt.Sprintf("%02d", t.Day())))
		case "j":
			b.WriteString(e.localize(strconv.Itoa(t.Day())))
		case "n":
			b.WriteString(e.localize(strconv.Itoa(int(t.Month()))))
		case "Y":
			b.WriteString(e.localize(strconv.Itoa(t.Year())))
		case "xkY":
			b.WriteString(e.localize(strconv.Itoa(t.Year() + 543)))
		case "G":
			b.WriteString(e.localize(strconv.Itoa(t.Hour())))
		case "H":
			b.WriteString(e.localize(fmt.Sprintf("%02d", t.Hour())))
		case "i":
			b.WriteString(e.localize(fmt.Sprintf("%02d", t.Minute())))
		}
	}
	return b.String()
}

// FormatWithTimezone is Format followed by a timezone suffix: " (UTC)" when
// loc has no offset at t, " (UTC+3)" or " (UTC-5.5)" otherwise.
func (e *Engine) FormatWithTimezone(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = e.location
	}
	label := e.cfg.UTCLabel
	if label == "" {
		label = "UTC"
	}

	s := e.Format(t, loc)
	_, offset := t.In(loc).Zone()
	if offset == 0 {
		return s + " (" + label + ")"
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := strconv.FormatFloat(float64(offset)/3600, 'f', -1, 64)
	return s + " (" + label + sign + hours + ")"
}

func (e *Engine) localize(s string) string {
	if e.digits == nil {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(e.digits[r-'0'])
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func indexRune(list []rune, r rune) int {
	for i, v := range list {
		if v == r {
			return i
		}
	}
	return -1
}

package wikitext

import "strings"

// Heading is a heading line found in page source.
type Heading struct {
	Start        int // offset of the first "="
	ContentStart int // offset after the line break ending the heading line
	Level        int
	Text         string // text between the "=" runs, untrimmed
}

// ScanHeadings finds heading lines in code that has had distracting code
// hidden (see HideDistractingCode). A heading line starts and ends with "="
// runs, the shorter run giving the level, may be followed by spaces, tabs or
// mask bytes, and is terminated by a line break.
func ScanHeadings(adjusted string) []Heading {
	var headings []Heading
	for pos := 0; pos < len(adjusted); {
		nl := strings.IndexByte(adjusted[pos:], '\n')
		if nl < 0 {
			break
		}
		nl += pos

		if level, text, ok := parseHeadingLine(adjusted[pos:nl]); ok {
			headings = append(headings, Heading{
				Start:        pos,
				ContentStart: nl + 1,
				Level:        level,
				Text:         text,
			})
		}
		pos = nl + 1
	}
	return headings
}

func parseHeadingLine(line string) (int, string, bool) {
	if !strings.HasPrefix(line, "=") {
		return 0, "", false
	}
	line = strings.TrimRight(line, " \t\x01\x02")
	lead := len(line) - len(strings.TrimLeft(line, "="))
	trail := len(line) - len(strings.TrimRight(line, "="))
	level := min(lead, trail, len(line)/2)
	if level == 0 {
		return 0, "", false
	}
	return level, line[level : len(line)-level], true
}

// FindSectionEnd returns the offset of the first line at or after from that
// ends a section of the given level, or len(adjusted). Such a line starts with
// at most level "=" followed by a character other than "=", and ends with "="
// before optional trailing blanks and a line break. Deeper headings don't end
// the section.
func FindSectionEnd(adjusted string, from, level int) int {
	for pos := from; pos < len(adjusted); {
		if endsSection(adjusted, pos, level) {
			return pos
		}
		nl := strings.IndexByte(adjusted[pos:], '\n')
		if nl < 0 {
			break
		}
		pos += nl + 1
	}
	return len(adjusted)
}

func endsSection(adjusted string, pos, level int) bool {
	nl := strings.IndexByte(adjusted[pos:], '\n')
	if nl < 0 {
		return false
	}
	line := adjusted[pos : pos+nl]
	lead := len(line) - len(strings.TrimLeft(line, "="))
	if lead == 0 || lead > level || lead == len(line) {
		return false
	}
	rest := strings.TrimRight(line[lead+1:], " \t\x01\x02")
	return strings.HasSuffix(rest, "=")
}

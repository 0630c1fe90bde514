package userstate

import (
	"regexp"
	"sort"
	"strings"
)

// WatchedSections maps a page ID to the headlines watched on it.
type WatchedSections map[string][]string

var watchedPageRegex = regexp.MustCompile(`(?:^|\n )(\d+) `)

// PackWatchedSections serializes watched sections as " <pageId> <h1>\n<h2>\n"
// blocks. Headlines can't contain newlines, so a block ends where the next
// "\n <digits> " begins.
func PackWatchedSections(w WatchedSections) string {
	keys := make([]string, 0, len(w))
	for k, headlines := range w {
		if len(headlines) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return lessNumeric(keys[i], keys[j]) })

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" " + k + " " + strings.Join(w[k], "\n") + "\n")
	}
	return strings.TrimSpace(b.String())
}

// UnpackWatchedSections parses the output of PackWatchedSections.
func UnpackWatchedSections(s string) WatchedSections {
	w := WatchedSections{}
	matches := watchedPageRegex.FindAllStringSubmatchIndex(s, -1)
	for i, m := range matches {
		end := len(s)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		id := s[m[2]:m[3]]
		for _, h := range strings.Split(s[m[1]:end], "\n") {
			if h = strings.TrimSpace(h); h != "" {
				w.Watch(id, h)
			}
		}
	}
	return w
}

// IsWatched reports whether headline is watched on the page.
func (w WatchedSections) IsWatched(pageID, headline string) bool {
	for _, h := range w[pageID] {
		if h == headline {
			return true
		}
	}
	return false
}

// Watch adds headline to the page. It reports whether anything changed.
func (w WatchedSections) Watch(pageID, headline string) bool {
	if headline == "" || w.IsWatched(pageID, headline) {
		return false
	}
	w[pageID] = append(w[pageID], headline)
	return true
}

// Unwatch removes headline from the page. It reports whether anything
// changed.
func (w WatchedSections) Unwatch(pageID, headline string) bool {
	list := w[pageID]
	for i, h := range list {
		if h == headline {
			list = append(list[:i:i], list[i+1:]...)
			if len(list) == 0 {
				delete(w, pageID)
			} else {
				w[pageID] = list
			}
			return true
		}
	}
	return false
}

// Rename moves a watch from an old headline to a new one. The old headline
// stays watched if another section on the page still carries it.
func (w WatchedSections) Rename(pageID, oldHeadline, newHeadline string, oldStillPresent bool) {
	if !w.IsWatched(pageID, oldHeadline) {
		return
	}
	w.Watch(pageID, newHeadline)
	if !oldStillPresent {
		w.Unwatch(pageID, oldHeadline)
	}
}

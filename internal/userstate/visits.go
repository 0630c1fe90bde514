// Package userstate keeps the per-user state that outlives a page view:
// when each page was last visited and which sections are watched.
package userstate

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/discussion"
)

// Visits maps a page ID to its visit times in Unix seconds, oldest first.
type Visits map[string][]int64

// visitLineRegex tolerates a space after the first comma, which older
// packed values contain.
var visitLineRegex = regexp.MustCompile(`(?m)^(\d+), *(.+)$`)

// PackVisits serializes visits as one "<pageId>,<t1>,<t2>" line per page.
// Pages are ordered by ID so the output is stable.
func PackVisits(v Visits) string {
	keys := make([]string, 0, len(v))
	for k, times := range v {
		if len(times) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return lessNumeric(keys[i], keys[j]) })

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		for _, t := range v[k] {
			b.WriteByte(',')
			b.WriteString(strconv.FormatInt(t, 10))
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// UnpackVisits parses the output of PackVisits. Malformed times are
// skipped.
func UnpackVisits(s string) Visits {
	v := Visits{}
	for _, m := range visitLineRegex.FindAllStringSubmatch(s, -1) {
		var times []int64
		for _, part := range strings.Split(m[2], ",") {
			t, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				continue
			}
			times = append(times, t)
		}
		if len(times) > 0 {
			v[m[1]] = times
		}
	}
	return v
}

// CleanUpVisits drops the oldest tenth of all visit times across pages.
// Pages left without visits are removed. v is not modified.
func CleanUpVisits(v Visits) Visits {
	var all []int64
	for _, times := range v {
		all = append(all, times...)
	}
	if len(all) <= 1 {
		return Visits{}
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	// At least the oldest visit goes, even with fewer than ten.
	boundary := all[max(len(all)/10, 1)]

	out := Visits{}
	for k, times := range v {
		var kept []int64
		for _, t := range times {
			if t >= boundary {
				kept = append(kept, t)
			}
		}
		if len(kept) > 0 {
			out[k] = kept
		}
	}
	return out
}

// Count returns the total number of visit times.
func (v Visits) Count() int {
	n := 0
	for _, times := range v {
		n += len(times)
	}
	return n
}

// VisitResult is the outcome of ProcessVisits.
type VisitResult struct {
	// Visits is the page's visit list after trimming, with the current visit
	// appended.
	Visits []int64
	// PreviousVisit is the last visit before this one, or 0.
	PreviousVisit int64
	// FirstVisit is set when there was no visit to compare against. Comment
	// flags are left untouched then.
	FirstVisit bool
	New        int
	Unseen     int
}

// ProcessVisits marks comments as new and seen against the page's visits
// and returns the updated visit list.
//
// Visits older than interval are dropped except the newest of them, which
// remains the baseline. A comment is new if it was posted after the
// baseline and seen if it was posted before the last visit, or is the
// user's own, unless its anchor is in unseenAnchors. When a comment's
// minute is the current minute, the recorded visit is pushed one minute
// forward so the comment is not flagged again.
func ProcessVisits(pageVisits []int64, comments []*discussion.Comment, now time.Time, interval time.Duration, unseenAnchors []string) VisitResult {
	current := now.Unix()
	visits := append([]int64(nil), pageVisits...)

	res := VisitResult{}
	if len(visits) > 0 {
		res.PreviousVisit = visits[len(visits)-1]
	}

	cutoff := current - int64(interval/time.Second)
	for i := len(visits) - 1; i >= 0; i-- {
		if visits[i] < cutoff {
			visits = visits[i:]
			break
		}
	}

	unseen := make(map[string]struct{}, len(unseenAnchors))
	for _, a := range unseenAnchors {
		unseen[a] = struct{}{}
	}

	matchedMinute := false
	if len(visits) == 0 {
		res.FirstVisit = true
	} else {
		first, last := visits[0], visits[len(visits)-1]
		for _, c := range comments {
			c.IsNew = false
			c.IsSeen = true
			if c.Date.IsZero() {
				continue
			}

			t := c.Date.Unix()
			if t <= current && current < t+60 {
				matchedMinute = true
			}
			if t+60 > first {
				c.IsNew = true
				_, forcedUnseen := unseen[c.Anchor]
				c.IsSeen = (t+60 <= last || c.IsOwn) && !forcedUnseen
				res.New++
				if !c.IsSeen {
					res.Unseen++
				}
			}
		}
	}

	if matchedMinute {
		current += 60
	}
	res.Visits = append(visits, current)
	return res
}

func lessNumeric(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

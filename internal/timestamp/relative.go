package timestamp

import (
	"fmt"
	"math"
	"time"
)

// FormatRelative renders t relative to now in English ("5 minutes ago",
// "in 2 hours"). Values are floored; thresholds are 59 seconds, 59 minutes,
// 23 hours, 29 days and 11 months.
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	future := d < 0
	if future {
		d = -d
	}

	phrase := relativePhrase(d, t, now, future)
	if future {
		return "in " + phrase
	}
	return phrase + " ago"
}

func relativePhrase(d time.Duration, t, now time.Time, future bool) string {
	seconds := int(math.Floor(d.Seconds()))
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case seconds <= 59:
		return "a few seconds"
	case minutes <= 1:
		return "a minute"
	case minutes <= 59:
		return fmt.Sprintf("%d minutes", minutes)
	case hours <= 1:
		return "an hour"
	case hours <= 23:
		return fmt.Sprintf("%d hours", hours)
	case days <= 1:
		return "a day"
	case days <= 29:
		return fmt.Sprintf("%d days", days)
	}

	from, to := t, now
	if future {
		from, to = now, t
	}
	months := monthsBetween(from, to)
	switch {
	case months <= 1:
		return "a month"
	case months <= 11:
		return fmt.Sprintf("%d months", months)
	case months/12 <= 1:
		return "a year"
	default:
		return fmt.Sprintf("%d years", months/12)
	}
}

// monthsBetween counts whole calendar months from a to b (a before b).
func monthsBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if a.AddDate(0, months, 0).After(b) {
		months--
	}
	return months
}

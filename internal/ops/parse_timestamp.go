package ops

import (
	"strings"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
)

// ParseTimestampInput contains parameters for the ParseTimestamp operation.
type ParseTimestampInput struct {
	Text string
	// OffsetMinutes overrides the configured timezone when set.
	OffsetMinutes *int
}

// ParseTimestampOutput contains the result of the ParseTimestamp operation.
type ParseTimestampOutput struct {
	Timestamp string `json:"timestamp"`
	Date      string `json:"date"`
	Relative  string `json:"relative"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	// Formatted is the date written back in the wiki's format.
	Formatted string `json:"formatted"`
}

// ParseTimestamp finds the last signature timestamp in text.
func ParseTimestamp(engine *timestamp.Engine, input ParseTimestampInput, now time.Time) (*ParseTimestampOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}

	var (
		parsed *timestamp.Parsed
		ok     bool
	)
	if input.OffsetMinutes != nil {
		parsed, ok = engine.ParseWithOffset(input.Text, *input.OffsetMinutes)
	} else {
		parsed, ok = engine.Parse(input.Text)
	}
	if !ok {
		return nil, errors.NewNotFound("timestamp")
	}

	return &ParseTimestampOutput{
		Timestamp: parsed.Timestamp,
		Date:      parsed.Date.UTC().Format(time.RFC3339),
		Relative:  timestamp.FormatRelative(parsed.Date, now),
		Start:     parsed.Start,
		End:       parsed.End,
		Formatted: engine.FormatWithTimezone(parsed.Date, nil),
	}, nil
}

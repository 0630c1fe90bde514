package ops

import (
	"strings"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
)

// AnchorInput contains parameters for the Anchor operation. Either Anchor
// is parsed, or Date and Author produce one.
type AnchorInput struct {
	Anchor string
	Date   string // RFC 3339
	Author string
}

// AnchorOutput contains the result of the Anchor operation.
type AnchorOutput struct {
	Anchor string `json:"anchor"`
	Date   string `json:"date"`
	Author string `json:"author"`
}

// Anchor generates a comment anchor or parses one.
func Anchor(input AnchorInput) (*AnchorOutput, error) {
	if a := strings.TrimSpace(input.Anchor); a != "" {
		date, author, ok := timestamp.ParseAnchor(a)
		if !ok {
			return nil, errors.NewInvalidRequest("not a comment anchor: " + a)
		}
		return &AnchorOutput{Anchor: a, Date: date.Format(time.RFC3339), Author: strings.ReplaceAll(author, "_", " ")}, nil
	}

	if strings.TrimSpace(input.Author) == "" {
		return nil, errors.NewInvalidRequest("either anchor or date and author are required")
	}
	date, err := parseDate(input.Date)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, errors.NewInvalidRequest("date is required")
	}
	return &AnchorOutput{
		Anchor: timestamp.GenerateAnchor(date, input.Author),
		Date:   date.Format(time.RFC3339),
		Author: input.Author,
	}, nil
}

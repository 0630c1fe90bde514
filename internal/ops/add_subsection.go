package ops

import (
	"context"
	"strings"

	"github.com/GergesShamon/convenient-discussions/internal/discussion"
	"github.com/GergesShamon/convenient-discussions/internal/errors"
)

// AddSubsectionInput contains parameters for the AddSubsection operation.
type AddSubsectionInput struct {
	Section  SectionRef
	Headline string
	Text     string
	Summary  string // defaults to "new subsection"
	Minor    bool
	DryRun   bool
}

// AddSubsection appends a signed subsection at the end of the section's
// content, before any code kept at the section's end.
func AddSubsection(ctx context.Context, d *Deps, input AddSubsectionInput) (*EditOutput, error) {
	headline := strings.TrimSpace(input.Headline)
	if headline == "" {
		return nil, errors.NewInvalidRequest("headline is required")
	}
	if strings.ContainsAny(headline, "\n") {
		return nil, errors.NewInvalidRequest("headline must be a single line")
	}
	if err := validateCommentText(input.Text); err != nil {
		return nil, err
	}
	section, err := input.Section.Section()
	if err != nil {
		return nil, err
	}

	return locateAndEdit(ctx, d, section, editRequest{
		action:         discussion.ActionAddSubsection,
		summary:        firstNonEmpty(input.Summary, "new subsection"),
		summarySection: headline,
		minor:          input.Minor,
		dryRun:         input.DryRun,
		content: func(loc *discussion.Location) string {
			marks := strings.Repeat("=", min(loc.Level+1, 6))
			return marks + " " + headline + " " + marks + "\n" +
				formatComment(input.Text, "", d.Config.SignatureCode) + "\n"
		},
	})
}

package ops

import (
	"context"
	"strings"

	"github.com/GergesShamon/convenient-discussions/internal/discussion"
	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/page"
)

// MaxCommentChars limits the text of a new comment.
const MaxCommentChars = 50000

// ReplyInput contains parameters for the Reply operation.
type ReplyInput struct {
	Section SectionRef
	Text    string
	// Indentation is the list markup of the comment replied to, e.g. "::".
	// Empty replies to the section itself.
	Indentation string
	Summary     string // defaults to "reply"
	Minor       bool
	DryRun      bool
}

// EditOutput is the result of an operation that edits a page.
type EditOutput struct {
	Page          string `json:"page"`
	NewRevisionID int64  `json:"new_revision_id,omitempty"`
	NoChange      bool   `json:"no_change,omitempty"`
	InsertedAt    int    `json:"inserted_at"`
	InsertedCode  string `json:"inserted_code"`
	Summary       string `json:"summary"`
	// NewPageCode is only set on dry runs.
	NewPageCode string `json:"new_page_code,omitempty"`
	DryRun      bool   `json:"dry_run,omitempty"`
}

// Reply adds a signed comment at the end of the section's first chunk.
func Reply(ctx context.Context, d *Deps, input ReplyInput) (*EditOutput, error) {
	if err := validateCommentText(input.Text); err != nil {
		return nil, err
	}
	section, err := input.Section.Section()
	if err != nil {
		return nil, err
	}

	return locateAndEdit(ctx, d, section, editRequest{
		action:         discussion.ActionReplyInChunk,
		summary:        firstNonEmpty(input.Summary, "reply"),
		summarySection: section.Headline,
		minor:          input.Minor,
		dryRun:         input.DryRun,
		content: func(loc *discussion.Location) string {
			char := discussion.ReplyIndentation(loc, input.Indentation, d.Config.IndentationCharMode, d.Config.DefaultIndentationChar)
			return formatComment(input.Text, input.Indentation+char, d.Config.SignatureCode)
		},
	})
}

type editRequest struct {
	action         discussion.Action
	summary        string
	summarySection string
	minor          bool
	dryRun         bool
	content        func(loc *discussion.Location) string
}

// locateAndEdit fetches the section's page, inserts the code built by
// req.content and saves the page unless req.dryRun is set.
func locateAndEdit(ctx context.Context, d *Deps, section *discussion.Section, req editRequest) (*EditOutput, error) {
	if err := d.requireWiki(); err != nil {
		return nil, err
	}

	p, err := d.Provider.GetCode(ctx, section.SourcePage, true)
	if err != nil {
		return nil, err
	}
	loc, err := d.Locator.Locate(section, p.Code)
	if err != nil {
		return nil, err
	}

	code := req.content(loc)
	res, err := discussion.Modify(p.Code, loc, req.action, code)
	if err != nil {
		return nil, err
	}

	out := &EditOutput{
		Page:         p.Name,
		InsertedAt:   res.InsertedAt,
		InsertedCode: code,
		Summary:      page.BuildEditSummary(req.summary, req.summarySection),
		DryRun:       req.dryRun,
	}
	if req.dryRun {
		out.NewPageCode = res.NewPageCode
		return out, nil
	}

	edit, err := d.Editor.Edit(ctx, page.EditRequest{
		Title:          p.Name,
		Text:           res.NewPageCode,
		Summary:        out.Summary,
		BaseRevisionID: p.RevisionID,
		StartTimestamp: p.QueryTimestamp,
		Minor:          req.minor,
	})
	if err != nil {
		return nil, err
	}
	out.NewRevisionID = edit.NewRevisionID
	out.NoChange = edit.NoChange

	d.Logger.Info("page edited",
		"page", p.Name,
		"section", section.Headline,
		"action", string(req.action),
		"revision", edit.NewRevisionID,
	)
	return out, nil
}

func firstNonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func validateCommentText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.NewInvalidRequest("text is required")
	}
	if len([]rune(text)) > MaxCommentChars {
		return errors.NewInvalidRequest("text is too long")
	}
	return nil
}

// formatComment indents every line of text and signs the last one.
func formatComment(text, indentation, signature string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var b strings.Builder
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		if indentation != "" {
			b.WriteString(indentation)
			if line != "" && !strings.ContainsAny(line[:1], ":*#;") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(line)
		if i == len(lines)-1 && signature != "" {
			b.WriteString(" " + signature)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

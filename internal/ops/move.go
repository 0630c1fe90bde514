package ops

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/db"
	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/move"
)

// MoveInput contains parameters for the Move operation.
type MoveInput struct {
	Section       SectionRef
	TargetPage    string
	SummaryEnding string
	KeepLink      *bool // default: true (nil means default)
}

// MoveOutput contains the result of the Move operation. A failed move is
// reported here rather than as an error, since it is journaled.
type MoveOutput struct {
	ID               string     `json:"id"`
	State            move.State `json:"state"`
	SourcePage       string     `json:"source_page"`
	TargetPage       string     `json:"target_page"`
	SourceRevisionID int64      `json:"source_revision_id,omitempty"`
	TargetRevisionID int64      `json:"target_revision_id,omitempty"`
	Message          string     `json:"message,omitempty"`
	Recoverable      bool       `json:"recoverable,omitempty"`
	TargetEdited     bool       `json:"target_edited,omitempty"`
}

// Move moves a section to another page, journaling every state.
func Move(ctx context.Context, d *Deps, input MoveInput) (*MoveOutput, error) {
	if err := d.requireWiki(); err != nil {
		return nil, err
	}
	section, err := input.Section.Section()
	if err != nil {
		return nil, err
	}
	if input.TargetPage == "" {
		return nil, errors.NewInvalidRequest("target_page is required")
	}

	orch, err := move.New(d.Config, d.Provider, d.Editor, d.Locator, d.Engine, d.Logger)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	keepLink := true
	if input.KeepLink != nil {
		keepLink = *input.KeepLink
	}
	req := move.Request{
		Section:       section,
		TargetPage:    input.TargetPage,
		SummaryEnding: input.SummaryEnding,
		KeepLink:      keepLink,
	}

	record, err := move.NewRecord(req, time.Now())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := db.InsertMove(d.DB, record); err != nil {
		return nil, err
	}
	orch.Subscribe(func(c move.StateChange) {
		record.Apply(c)
		if err := db.UpdateMove(d.DB, record); err != nil {
			d.Logger.Error("failed to journal move state", "move_id", record.ID, "state", c.To.String(), "error", err)
		}
	})

	out := &MoveOutput{
		ID:         record.ID,
		SourcePage: section.SourcePage,
		TargetPage: input.TargetPage,
	}
	res, err := orch.Run(ctx, req)
	out.State = orch.State()

	var failure *move.Failure
	switch {
	case stderrors.As(err, &failure):
		out.Message = failure.Message
		out.Recoverable = failure.Recoverable
		out.TargetEdited = failure.TargetEdited
		return out, nil
	case err != nil:
		return nil, err
	}

	out.SourcePage = res.SourcePage
	out.TargetPage = res.TargetPage
	out.SourceRevisionID = res.SourceRevisionID
	out.TargetRevisionID = res.TargetRevisionID
	return out, nil
}

package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/db"
	"github.com/GergesShamon/convenient-discussions/internal/discussion"
	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/userstate"
)

// VisitComment is a comment seen on the page during a visit.
type VisitComment struct {
	Anchor string `json:"anchor"`
	Date   string `json:"date"` // RFC 3339
	Author string `json:"author,omitempty"`
	Own    bool   `json:"own,omitempty"`
}

// RecordVisitInput contains parameters for the RecordVisit operation.
type RecordVisitInput struct {
	PageID        string
	Comments      []VisitComment
	UnseenAnchors []string
	// Sync pushes all stored visits to the user's options afterwards.
	Sync bool
}

// CommentFlags reports how one comment was classified.
type CommentFlags struct {
	Anchor string `json:"anchor"`
	New    bool   `json:"new"`
	Seen   bool   `json:"seen"`
}

// RecordVisitOutput contains the result of the RecordVisit operation.
type RecordVisitOutput struct {
	PageID        string         `json:"page_id"`
	Visits        []int64        `json:"visits"`
	PreviousVisit int64          `json:"previous_visit,omitempty"`
	FirstVisit    bool           `json:"first_visit"`
	New           int            `json:"new"`
	Unseen        int            `json:"unseen"`
	Comments      []CommentFlags `json:"comments,omitempty"`
	Synced        bool           `json:"synced,omitempty"`
}

// RecordVisit records a visit to a page and classifies its comments as new
// and seen against the previous visits.
func RecordVisit(ctx context.Context, d *Deps, input RecordVisitInput, now time.Time) (*RecordVisitOutput, error) {
	pageID := strings.TrimSpace(input.PageID)
	if err := validatePageID(pageID); err != nil {
		return nil, err
	}

	comments := make([]*discussion.Comment, 0, len(input.Comments))
	for _, vc := range input.Comments {
		date, err := parseDate(vc.Date)
		if err != nil {
			return nil, err
		}
		comments = append(comments, &discussion.Comment{
			Anchor: vc.Anchor,
			Date:   date,
			Author: vc.Author,
			IsOwn:  vc.Own,
		})
	}

	previous, err := db.GetVisits(d.DB, pageID)
	if err != nil {
		return nil, err
	}

	interval := time.Duration(d.Config.HighlightNewInterval) * time.Minute
	res := userstate.ProcessVisits(previous, comments, now, interval, input.UnseenAnchors)
	if err := db.ReplaceVisits(d.DB, pageID, res.Visits); err != nil {
		return nil, err
	}

	out := &RecordVisitOutput{
		PageID:        pageID,
		Visits:        res.Visits,
		PreviousVisit: res.PreviousVisit,
		FirstVisit:    res.FirstVisit,
		New:           res.New,
		Unseen:        res.Unseen,
	}
	if !res.FirstVisit {
		for _, c := range comments {
			out.Comments = append(out.Comments, CommentFlags{Anchor: c.Anchor, New: c.IsNew, Seen: c.IsSeen})
		}
	}

	if input.Sync {
		if err := syncVisits(ctx, d); err != nil {
			return nil, err
		}
		out.Synced = true
	}
	return out, nil
}

// syncVisits pushes all visits to the remote option. If they had to be
// trimmed to fit, the local store is trimmed the same way.
func syncVisits(ctx context.Context, d *Deps) error {
	if d.Remote == nil {
		return errors.NewInvalidRequest("api_url is not configured")
	}
	all, err := db.AllVisits(d.DB)
	if err != nil {
		return err
	}
	stored, err := d.Remote.SaveVisits(ctx, all)
	if err != nil {
		return err
	}
	if stored.Count() < all.Count() {
		d.Logger.Info("trimmed visits to fit the options size limit", "before", all.Count(), "after", stored.Count())
		return db.ReplaceAllVisits(d.DB, stored)
	}
	return nil
}

// VisitsInput contains parameters for the Visits operation.
type VisitsInput struct {
	PageID string
}

// VisitsOutput contains the result of the Visits operation.
type VisitsOutput struct {
	PageID string  `json:"page_id"`
	Visits []int64 `json:"visits"`
}

// Visits returns the recorded visit times of a page.
func Visits(database *sql.DB, input VisitsInput) (*VisitsOutput, error) {
	pageID := strings.TrimSpace(input.PageID)
	if err := validatePageID(pageID); err != nil {
		return nil, err
	}
	visits, err := db.GetVisits(database, pageID)
	if err != nil {
		return nil, err
	}
	if visits == nil {
		visits = []int64{}
	}
	return &VisitsOutput{PageID: pageID, Visits: visits}, nil
}

// ImportVisits replaces the local visits with those stored in the user's
// options.
func ImportVisits(ctx context.Context, d *Deps) (int, error) {
	if d.Remote == nil {
		return 0, errors.NewInvalidRequest("api_url is not configured")
	}
	v, err := d.Remote.LoadVisits(ctx)
	if err != nil {
		return 0, err
	}
	if err := db.ReplaceAllVisits(d.DB, v); err != nil {
		return 0, err
	}
	return v.Count(), nil
}

func validatePageID(id string) error {
	if id == "" {
		return errors.NewInvalidRequest("page_id is required")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return errors.NewInvalidRequest("page_id must be numeric, got " + id)
		}
	}
	return nil
}

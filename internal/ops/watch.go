package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/GergesShamon/convenient-discussions/internal/db"
	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/userstate"
)

// WatchInput contains parameters for the Watch and Unwatch operations.
type WatchInput struct {
	PageID   string
	Headline string
	Sync     bool
}

// WatchOutput contains the result of the Watch and Unwatch operations.
type WatchOutput struct {
	PageID   string `json:"page_id"`
	Headline string `json:"headline"`
	Watched  bool   `json:"watched"`
	// Changed is false when the section already was in the requested state.
	Changed bool `json:"changed"`
	Synced  bool `json:"synced,omitempty"`
}

// Watch adds a section to the watched sections.
func Watch(ctx context.Context, d *Deps, input WatchInput) (*WatchOutput, error) {
	pageID, headline, err := validateWatch(input.PageID, input.Headline)
	if err != nil {
		return nil, err
	}
	changed, err := db.WatchSection(d.DB, pageID, headline)
	if err != nil {
		return nil, err
	}
	out := &WatchOutput{PageID: pageID, Headline: headline, Watched: true, Changed: changed}
	if input.Sync {
		if err := syncWatched(ctx, d); err != nil {
			return nil, err
		}
		out.Synced = true
	}
	return out, nil
}

// Unwatch removes a section from the watched sections.
func Unwatch(ctx context.Context, d *Deps, input WatchInput) (*WatchOutput, error) {
	pageID, headline, err := validateWatch(input.PageID, input.Headline)
	if err != nil {
		return nil, err
	}
	changed, err := db.UnwatchSection(d.DB, pageID, headline)
	if err != nil {
		return nil, err
	}
	out := &WatchOutput{PageID: pageID, Headline: headline, Changed: changed}
	if input.Sync {
		if err := syncWatched(ctx, d); err != nil {
			return nil, err
		}
		out.Synced = true
	}
	return out, nil
}

// WatchedInput contains parameters for the Watched operation.
type WatchedInput struct {
	PageID string // empty lists all pages
}

// WatchedOutput contains the result of the Watched operation.
type WatchedOutput struct {
	Pages map[string][]string `json:"pages"`
	Total int                 `json:"total"`
}

// Watched lists watched sections.
func Watched(database *sql.DB, input WatchedInput) (*WatchedOutput, error) {
	pageID := strings.TrimSpace(input.PageID)
	if pageID != "" {
		if err := validatePageID(pageID); err != nil {
			return nil, err
		}
	}
	w, err := db.WatchedSections(database, pageID)
	if err != nil {
		return nil, err
	}
	out := &WatchedOutput{Pages: map[string][]string(w)}
	if out.Pages == nil {
		out.Pages = map[string][]string{}
	}
	for _, hs := range out.Pages {
		out.Total += len(hs)
	}
	return out, nil
}

// RenameWatchedInput contains parameters for the RenameWatched operation.
type RenameWatchedInput struct {
	PageID      string
	OldHeadline string
	NewHeadline string
	// OldStillPresent keeps the old headline watched, for when another
	// section still carries it.
	OldStillPresent bool
	Sync            bool
}

// RenameWatched follows a watched section whose headline changed.
func RenameWatched(ctx context.Context, d *Deps, input RenameWatchedInput) (*WatchedOutput, error) {
	pageID, oldHeadline, err := validateWatch(input.PageID, input.OldHeadline)
	if err != nil {
		return nil, err
	}
	newHeadline := strings.TrimSpace(input.NewHeadline)
	if newHeadline == "" {
		return nil, errors.NewInvalidRequest("new_headline is required")
	}

	current, err := db.WatchedSections(d.DB, pageID)
	if err != nil {
		return nil, err
	}
	if !current.IsWatched(pageID, oldHeadline) {
		return nil, errors.NewNotFound("watched section " + oldHeadline)
	}

	before := append([]string(nil), current[pageID]...)
	current.Rename(pageID, oldHeadline, newHeadline, input.OldStillPresent)
	after := userstate.WatchedSections{pageID: current[pageID]}

	for _, h := range after[pageID] {
		if _, err := db.WatchSection(d.DB, pageID, h); err != nil {
			return nil, err
		}
	}
	for _, h := range before {
		if !after.IsWatched(pageID, h) {
			if _, err := db.UnwatchSection(d.DB, pageID, h); err != nil {
				return nil, err
			}
		}
	}

	if input.Sync {
		if err := syncWatched(ctx, d); err != nil {
			return nil, err
		}
	}
	return Watched(d.DB, WatchedInput{PageID: pageID})
}

// ImportWatched merges the watched sections stored in the user's options
// into the local store.
func ImportWatched(ctx context.Context, d *Deps) (int, error) {
	if d.Remote == nil {
		return 0, errors.NewInvalidRequest("api_url is not configured")
	}
	w, err := d.Remote.LoadWatchedSections(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	for pageID, headlines := range w {
		for _, h := range headlines {
			ok, err := db.WatchSection(d.DB, pageID, h)
			if err != nil {
				return added, err
			}
			if ok {
				added++
			}
		}
	}
	return added, nil
}

func syncWatched(ctx context.Context, d *Deps) error {
	if d.Remote == nil {
		return errors.NewInvalidRequest("api_url is not configured")
	}
	all, err := db.WatchedSections(d.DB, "")
	if err != nil {
		return err
	}
	return d.Remote.SaveWatchedSections(ctx, all)
}

func validateWatch(pageID, headline string) (string, string, error) {
	pageID = strings.TrimSpace(pageID)
	if err := validatePageID(pageID); err != nil {
		return "", "", err
	}
	headline = strings.TrimSpace(headline)
	if headline == "" {
		return "", "", errors.NewInvalidRequest("headline is required")
	}
	if strings.Contains(headline, "\n") {
		return "", "", errors.NewInvalidRequest("headline must be a single line")
	}
	return pageID, headline, nil
}

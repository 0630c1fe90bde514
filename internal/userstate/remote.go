package userstate

import (
	"context"
	"log/slog"

	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
)

// OptionStore reads and writes user options on the wiki.
type OptionStore interface {
	GetOption(ctx context.Context, name string) (string, error)
	SetOptionInBackground(ctx context.Context, name, value string) error
}

// Remote keeps visits and watched sections in user options.
type Remote struct {
	options       OptionStore
	visitsOption  string
	watchedOption string
	logger        *slog.Logger
}

// NewRemote creates a remote store using the given option names.
func NewRemote(options OptionStore, visitsOption, watchedOption string, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{
		options:       options,
		visitsOption:  visitsOption,
		watchedOption: watchedOption,
		logger:        logger.With("component", "cd.userstate"),
	}
}

// LoadVisits fetches all pages' visits.
func (r *Remote) LoadVisits(ctx context.Context) (Visits, error) {
	s, err := r.options.GetOption(ctx, r.visitsOption)
	if err != nil {
		return nil, err
	}
	return UnpackVisits(s), nil
}

// SaveVisits stores visits. While the packed value is over the size
// limit, the oldest tenth of the visits is dropped and saving is retried.
// The visits actually stored are returned.
func (r *Remote) SaveVisits(ctx context.Context, v Visits) (Visits, error) {
	for {
		err := r.options.SetOptionInBackground(ctx, r.visitsOption, PackVisits(v))
		if !cderrors.Is(err, cderrors.ErrSizeLimit) {
			return v, err
		}

		cleaned := CleanUpVisits(v)
		if cleaned.Count() == v.Count() {
			return v, err
		}
		r.logger.Info("visits over size limit, dropping oldest", "before", v.Count(), "after", cleaned.Count())
		v = cleaned
	}
}

// LoadWatchedSections fetches all pages' watched sections.
func (r *Remote) LoadWatchedSections(ctx context.Context) (WatchedSections, error) {
	s, err := r.options.GetOption(ctx, r.watchedOption)
	if err != nil {
		return nil, err
	}
	return UnpackWatchedSections(s), nil
}

// SaveWatchedSections stores watched sections.
func (r *Remote) SaveWatchedSections(ctx context.Context, w WatchedSections) error {
	return r.options.SetOptionInBackground(ctx, r.watchedOption, PackWatchedSections(w))
}

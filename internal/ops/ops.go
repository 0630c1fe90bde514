package ops

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/config"
	"github.com/GergesShamon/convenient-discussions/internal/discussion"
	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/mwapi"
	"github.com/GergesShamon/convenient-discussions/internal/page"
	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
	"github.com/GergesShamon/convenient-discussions/internal/userstate"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Deps is what the operations run against. Provider, Editor, Remote and
// Suggester are nil when no wiki API is configured.
type Deps struct {
	DB        *sql.DB
	Config    *config.Config
	Engine    *timestamp.Engine
	Locator   *discussion.Locator
	Provider  page.Provider
	Editor    page.Editor
	Remote    *userstate.Remote
	Suggester *mwapi.Suggester
	Logger    *slog.Logger
}

// NewDeps builds the parsing components from cfg and wires client, which
// may be nil, as the wiki backend.
func NewDeps(database *sql.DB, cfg *config.Config, client *mwapi.Client, logger *slog.Logger) (*Deps, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine, err := timestamp.NewEngine(cfg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("timestamp engine: %w", err)
	}
	locator, err := discussion.NewLocator(cfg, engine, logger)
	if err != nil {
		return nil, err
	}

	d := &Deps{
		DB:      database,
		Config:  cfg,
		Engine:  engine,
		Locator: locator,
		Logger:  logger,
	}
	if client != nil {
		d.Provider = client
		d.Editor = client
		d.Remote = userstate.NewRemote(client, cfg.VisitsOptionName, cfg.WatchedSectionsOptionName, logger)
		d.Suggester = mwapi.NewSuggester(client, firstOr(cfg.UserNamespaces, "User"), 0)
	}
	return d, nil
}

func (d *Deps) requireWiki() error {
	if d.Provider == nil || d.Editor == nil {
		return errors.NewInvalidRequest("api_url is not configured")
	}
	return nil
}

// CommentRef describes a comment as rendered on the page.
type CommentRef struct {
	Author string `json:"author"`
	// Date is RFC 3339.
	Date string `json:"date"`
	Text string `json:"text,omitempty"`
}

// SectionRef describes a section as rendered on the page. The rendered page
// is parsed elsewhere, so callers pass what they saw.
type SectionRef struct {
	Page               string      `json:"page"`
	Headline           string      `json:"headline"`
	Level              int         `json:"level"`
	ID                 int         `json:"id"`
	OldestComment      *CommentRef `json:"oldest_comment,omitempty"`
	PrecedingHeadlines []string    `json:"preceding_headlines,omitempty"`
}

// Section validates the reference and converts it to a model section.
func (r SectionRef) Section() (*discussion.Section, error) {
	if strings.TrimSpace(r.Page) == "" {
		return nil, errors.NewInvalidRequest("page is required")
	}
	if strings.TrimSpace(r.Headline) == "" {
		return nil, errors.NewInvalidRequest("headline is required")
	}
	level := r.Level
	if level == 0 {
		level = 2
	}
	if level < 1 || level > 6 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("level must be between 1 and 6, got %d", r.Level))
	}
	if r.ID < 0 {
		return nil, errors.NewInvalidRequest("id must not be negative")
	}

	s := &discussion.Section{
		ID:                 r.ID,
		Headline:           r.Headline,
		Level:              level,
		SourcePage:         r.Page,
		PrecedingHeadlines: r.PrecedingHeadlines,
	}
	if c := r.OldestComment; c != nil {
		date, err := parseDate(c.Date)
		if err != nil {
			return nil, err
		}
		oldest := &discussion.Comment{
			Date:             date,
			Author:           c.Author,
			Text:             c.Text,
			IsOpeningSection: true,
			Section:          s,
		}
		s.OldestComment = oldest
		s.Comments = []*discussion.Comment{oldest}
	}
	return s, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("invalid date %q: want RFC 3339", s))
	}
	return t.UTC(), nil
}

func firstOr(list []string, fallback string) string {
	if len(list) > 0 && list[0] != "" {
		return list[0]
	}
	return fallback
}

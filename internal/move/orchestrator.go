// Package move moves a section from one page to another with two edits:
// first the target page gains the section, then the source page loses it.
// There is no rollback; a failure after the target edit must be fixed by
// hand and is reported as non-recoverable.
package move

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GergesShamon/convenient-discussions/internal/config"
	"github.com/GergesShamon/convenient-discussions/internal/discussion"
	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/page"
	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
	"github.com/GergesShamon/convenient-discussions/internal/wikitext"
)

// State is a step of a move.
type State int

const (
	Idle State = iota
	LoadingBoth
	EditingTarget
	EditingSource
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingBoth:
		return "loading"
	case EditingTarget:
		return "editing-target"
	case EditingSource:
		return "editing-source"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateChange is sent to subscribers on every transition.
type StateChange struct {
	From    State
	To      State
	At      time.Time
	Failure *Failure // set when To is Aborted
}

// Failure is a move error with the user-facing message and whether the
// move can be retried from scratch.
type Failure struct {
	Message     string
	Recoverable bool
	// State is where the move was when it failed.
	State        State
	TargetEdited bool
	Err          error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// Request describes one move.
type Request struct {
	// Section is the section to move. Its SourcePage names the page that
	// holds its code.
	Section       *discussion.Section
	TargetPage    string
	SummaryEnding string
	// KeepLink leaves markers on both pages using the configured strategy.
	KeepLink bool
}

// Result describes a finished move.
type Result struct {
	SourcePage       string
	TargetPage       string
	SourceWikilink   string
	TargetWikilink   string
	SourceRevisionID int64
	TargetRevisionID int64
	SectionCode      string
}

// Orchestrator runs one move. It may be run again after a recoverable
// failure.
type Orchestrator struct {
	provider  page.Provider
	editor    page.Editor
	locator   *discussion.Locator
	engine    *timestamp.Engine
	markers   MarkerStrategy
	messages  Messages
	signature string
	talkNS    []string
	onTop     *bool
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	lastFailure *Failure
	subscribers []func(StateChange)
}

// New creates an orchestrator in the Idle state.
func New(cfg *config.Config, provider page.Provider, editor page.Editor, locator *discussion.Locator, engine *timestamp.Engine, logger *slog.Logger) (*Orchestrator, error) {
	markers, err := LookupMarkerStrategy(cfg.MoveMarker)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	sig := cfg.SignatureCode
	if sig == "" {
		sig = "~~~~"
	}
	return &Orchestrator{
		provider:  provider,
		editor:    editor,
		locator:   locator,
		engine:    engine,
		markers:   markers,
		messages:  English,
		signature: sig,
		talkNS:    cfg.TalkNamespaces,
		onTop:     cfg.NewTopicsOnTop,
		logger:    logger.With("component", "cd.move"),
	}, nil
}

// SetMessages replaces the failure and summary texts.
func (o *Orchestrator) SetMessages(m Messages) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = m
}

// Subscribe registers fn to receive state changes. fn is called
// synchronously from the goroutine running the move.
func (o *Orchestrator) Subscribe(fn func(StateChange)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, fn)
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transition(to State, failure *Failure) {
	o.mu.Lock()
	from := o.state
	o.state = to
	if failure != nil {
		o.lastFailure = failure
	}
	subs := append([]func(StateChange){}, o.subscribers...)
	o.mu.Unlock()

	o.logger.Debug("move state changed", "from", from.String(), "to", to.String())
	change := StateChange{From: from, To: to, At: time.Now().UTC(), Failure: failure}
	for _, fn := range subs {
		fn(change)
	}
}

func (o *Orchestrator) abort(f *Failure) (*Result, error) {
	o.logger.Warn("move aborted",
		"state", f.State.String(),
		"recoverable", f.Recoverable,
		"target_edited", f.TargetEdited,
		"error", f.Err,
	)
	o.transition(Aborted, f)
	return nil, f
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.state == Idle:
		return nil
	case o.state == Aborted && o.lastFailure != nil && o.lastFailure.Recoverable:
		return nil
	default:
		return cderrors.NewInvalidRequest(fmt.Sprintf("move cannot start in state %s", o.state))
	}
}

type loadedSource struct {
	page     *page.Page
	loc      *discussion.Location
	wikilink string
}

type loadedTarget struct {
	page      *page.Page
	placement page.Placement
	wikilink  string
}

// Run performs the move. A failure is returned as *Failure; an error of
// another type means the move could not start.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Section == nil || req.Section.SourcePage == "" {
		return nil, cderrors.NewInvalidRequest("section with a source page is required")
	}
	if err := o.begin(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	msg := o.messages
	o.mu.Unlock()

	sourceName := req.Section.SourcePage
	if sameTitle(sourceName, req.TargetPage) || !page.IsProbablyTalkPage(req.TargetPage, o.talkNS) {
		return o.abort(&Failure{Message: msg.WrongPage, State: o.State()})
	}

	o.transition(LoadingBoth, nil)
	var (
		source loadedSource
		target loadedTarget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = o.loadSource(gctx, req.Section, msg)
		return err
	})
	g.Go(func() error {
		var err error
		target, err = o.loadTarget(gctx, req.TargetPage, req.Section.Headline, msg)
		return err
	})
	if err := g.Wait(); err != nil {
		f, ok := err.(*Failure)
		if !ok {
			f = &Failure{Message: msg.Unknown, Recoverable: true, Err: err}
		}
		f.State = LoadingBoth
		return o.abort(f)
	}

	markerData := MarkerData{
		SourceWikilink: source.wikilink,
		TargetWikilink: target.wikilink,
		Signature:      o.signature,
	}

	o.transition(EditingTarget, nil)
	begin, end := "", ""
	if req.KeepLink {
		begin, end = o.markers.TargetMarkers(markerData)
	}
	sectionCode, targetText := TargetCode(source.loc, target.page.Code, target.placement, begin, end)
	targetRes, err := o.editor.Edit(ctx, page.EditRequest{
		Title:          target.page.Name,
		Text:           targetText,
		Summary:        page.BuildEditSummary(summary(msg.MovedFrom, source.wikilink, req.SummaryEnding), req.Section.Headline),
		BaseRevisionID: target.page.RevisionID,
		StartTimestamp: target.page.QueryTimestamp,
	})
	if err != nil {
		return o.abort(&Failure{
			Message:     editFailureMessage(msg.EditingTarget, err, msg, true),
			Recoverable: true,
			State:       EditingTarget,
			Err:         err,
		})
	}

	o.transition(EditingSource, nil)
	marker := ""
	if req.KeepLink {
		markerData.Timestamp = wikitext.FindFirstTimestamp(source.loc.Code, o.engine)
		if markerData.Timestamp == "" {
			markerData.Timestamp = o.signature + "~"
		}
		marker = o.markers.SourceMarker(markerData)
	}
	sourceRes, err := o.editor.Edit(ctx, page.EditRequest{
		Title:          source.page.Name,
		Text:           SourceCode(source.page.Code, source.loc, marker),
		Summary:        page.BuildEditSummary(summary(msg.MovedTo, target.wikilink, req.SummaryEnding), req.Section.Headline),
		BaseRevisionID: source.page.RevisionID,
		StartTimestamp: source.page.QueryTimestamp,
	})
	if err != nil {
		return o.abort(&Failure{
			Message:      editFailureMessage(msg.EditingSource, err, msg, false),
			Recoverable:  false,
			State:        EditingSource,
			TargetEdited: true,
			Err:          err,
		})
	}

	o.transition(Done, nil)
	o.logger.Info("section moved",
		"headline", req.Section.Headline,
		"source", source.page.Name,
		"target", target.page.Name,
	)
	return &Result{
		SourcePage:       source.page.Name,
		TargetPage:       target.page.Name,
		SourceWikilink:   source.wikilink,
		TargetWikilink:   target.wikilink,
		SourceRevisionID: sourceRes.NewRevisionID,
		TargetRevisionID: targetRes.NewRevisionID,
		SectionCode:      sectionCode,
	}, nil
}

func (o *Orchestrator) loadSource(ctx context.Context, section *discussion.Section, msg Messages) (loadedSource, error) {
	p, err := o.provider.GetCode(ctx, section.SourcePage, true)
	if err != nil {
		f := loadFailure(err, msg)
		if cderrors.Is(err, cderrors.ErrMissing) {
			f.Message = msg.SourcePageDeleted
		}
		return loadedSource{}, f
	}

	loc, err := o.locator.Locate(section, p.Code)
	if err != nil {
		// The section can't be identified safely any more.
		return loadedSource{}, &Failure{Message: msg.LocateSection, Recoverable: false, Err: err}
	}

	return loadedSource{
		page:     p,
		loc:      loc,
		wikilink: page.SectionWikilink(p.Name, section.Headline),
	}, nil
}

func (o *Orchestrator) loadTarget(ctx context.Context, name, headline string, msg Messages) (loadedTarget, error) {
	p, err := o.provider.GetCode(ctx, name, true)
	switch {
	case cderrors.Is(err, cderrors.ErrMissing):
		// A new page is created by the edit.
		p = &page.Page{Name: name}
	case cderrors.Is(err, cderrors.ErrInvalidTitle):
		return loadedTarget{}, &Failure{Message: msg.InvalidPageName, Recoverable: false, Err: err}
	case err != nil:
		return loadedTarget{}, loadFailure(err, msg)
	}

	return loadedTarget{
		page:      p,
		placement: p.AnalyzeNewTopicPlacement(o.engine, o.onTop),
		wikilink:  page.SectionWikilink(p.Name, headline),
	}, nil
}

// loadFailure maps a page load error. All load errors other than an
// invalid title can be retried.
func loadFailure(err error, msg Messages) *Failure {
	f := &Failure{Recoverable: true, Err: err}
	cdErr, ok := cderrors.As(err)
	switch {
	case ok && cdErr.Type == cderrors.TypeAPI:
		f.Message = msg.API + " " + string(cdErr.Code)
	case ok && cdErr.Type == cderrors.TypeNetwork:
		f.Message = msg.Network
	default:
		f.Message = msg.Unknown
	}
	return f
}

func editFailureMessage(prefix string, err error, msg Messages, suggestRetry bool) string {
	cdErr, ok := cderrors.As(err)
	switch {
	case ok && cdErr.Type == cderrors.TypeNetwork:
		return prefix + " " + msg.Network
	case ok:
		text := prefix + " " + cdErr.Message
		if suggestRetry && cdErr.Code == cderrors.ErrEditConflict {
			text += " " + msg.EditConflictRetry
		}
		return text
	default:
		return prefix + " " + msg.Unknown
	}
}

func summary(verb, wikilink, ending string) string {
	s := verb + " [[" + wikilink + "]]"
	if ending = strings.TrimSpace(ending); ending != "" {
		s += ": " + ending
	}
	return s
}

func sameTitle(a, b string) bool {
	norm := func(s string) string {
		s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
		if s == "" {
			return s
		}
		// The first letter of a title is case-insensitive.
		r := []rune(s)
		return strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return norm(a) == norm(b)
}

package move

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GergesShamon/convenient-discussions/internal/config"
	"github.com/GergesShamon/convenient-discussions/internal/discussion"
	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/page"
	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
)

type fakeProvider struct {
	pages map[string]*page.Page
	errs  map[string]error
}

func (f *fakeProvider) GetCode(_ context.Context, name string, _ bool) (*page.Page, error) {
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	p, ok := f.pages[name]
	if !ok {
		return nil, cderrors.NewAPI(cderrors.ErrMissing, "", nil)
	}
	cp := *p
	return &cp, nil
}

type fakeEditor struct {
	mu    sync.Mutex
	edits []page.EditRequest
	errs  map[string]error
}

func (f *fakeEditor) Edit(_ context.Context, req page.EditRequest) (*page.EditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[req.Title]; err != nil {
		return nil, err
	}
	f.edits = append(f.edits, req)
	return &page.EditResult{NewRevisionID: int64(100 + len(f.edits))}, nil
}

func signed(text, author string, date time.Time) string {
	return fmt.Sprintf("%s [[User:%s|%s]] %s (UTC)\n", text, author, author, date.Format("15:04, 2 January 2006"))
}

var (
	zedDate   = time.Date(2023, 4, 1, 9, 0, 0, 0, time.UTC)
	aliceDate = time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	bobDate   = time.Date(2023, 5, 1, 11, 0, 0, 0, time.UTC)
	carolDate = time.Date(2023, 5, 2, 12, 0, 0, 0, time.UTC)
	danDate   = time.Date(2023, 5, 3, 8, 0, 0, 0, time.UTC)
)

var (
	introCode = "== Intro ==\n" + signed("Welcome to this page.", "Zed", zedDate) + "\n"
	xCode     = "== Talk about X ==\n" + signed("I think X matters.", "Alice", aliceDate) +
		":" + signed("Agreed.", "Bob", bobDate) + "\n"
	yCode      = "== Talk about Y ==\n" + signed("Y is also important.", "Carol", carolDate)
	sourceCode = introCode + xCode + yCode
	targetCode = "== Older topic ==\n" + signed("Something else.", "Dan", danDate)
)

func sectionX() *discussion.Section {
	m := discussion.NewModel("Talk:Source")
	intro := m.AddSection("Intro", 2, "")
	m.AddComment(intro, zedDate, "Zed", "Welcome to this page.")
	x := m.AddSection("Talk about X", 2, "")
	m.AddComment(x, aliceDate, "Alice", "I think X matters.")
	m.AddComment(x, bobDate, "Bob", "Agreed.")
	y := m.AddSection("Talk about Y", 2, "")
	m.AddComment(y, carolDate, "Carol", "Y is also important.")
	return x
}

type fixture struct {
	provider *fakeProvider
	editor   *fakeEditor
	orch     *Orchestrator
	changes  []StateChange
}

func newFixture(t *testing.T, marker string) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.MoveMarker = marker
	engine, err := timestamp.NewEngine(cfg.Timestamp)
	require.NoError(t, err)
	locator, err := discussion.NewLocator(cfg, engine, nil)
	require.NoError(t, err)

	f := &fixture{
		provider: &fakeProvider{
			pages: map[string]*page.Page{
				"Talk:Source": {Name: "Talk:Source", Code: sourceCode, RevisionID: 10, QueryTimestamp: "2023-06-01T00:00:00Z"},
				"Talk:Target": {Name: "Talk:Target", Code: targetCode, RevisionID: 20, QueryTimestamp: "2023-06-01T00:00:01Z"},
			},
			errs: map[string]error{},
		},
		editor: &fakeEditor{errs: map[string]error{}},
	}
	f.orch, err = New(cfg, f.provider, f.editor, locator, engine, nil)
	require.NoError(t, err)
	f.orch.Subscribe(func(c StateChange) { f.changes = append(f.changes, c) })
	return f
}

func (f *fixture) states() []State {
	out := make([]State, 0, len(f.changes))
	for _, c := range f.changes {
		out = append(out, c.To)
	}
	return out
}

func requireFailure(t *testing.T, err error) *Failure {
	t.Helper()
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	return f
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t, "none")

	res, err := f.orch.Run(context.Background(), Request{
		Section:       sectionX(),
		TargetPage:    "Talk:Target",
		SummaryEnding: "off-topic here",
	})
	require.NoError(t, err)
	require.Equal(t, []State{LoadingBoth, EditingTarget, EditingSource, Done}, f.states())
	require.Equal(t, Done, f.orch.State())

	require.Len(t, f.editor.edits, 2)
	target, source := f.editor.edits[0], f.editor.edits[1]

	require.Equal(t, "Talk:Target", target.Title)
	require.Equal(t, targetCode+"\n"+xCode, target.Text)
	require.Equal(t, int64(20), target.BaseRevisionID)
	require.Equal(t, "2023-06-01T00:00:01Z", target.StartTimestamp)
	require.Equal(t, "/* Talk about X */ moved from [[Talk:Source#Talk about X]]: off-topic here", target.Summary)

	require.Equal(t, "Talk:Source", source.Title)
	require.Equal(t, introCode+yCode, source.Text)
	require.Equal(t, int64(10), source.BaseRevisionID)
	require.Equal(t, "/* Talk about X */ moved to [[Talk:Target#Talk about X]]: off-topic here", source.Summary)

	require.Equal(t, "Talk:Target#Talk about X", res.TargetWikilink)
	require.Equal(t, int64(101), res.TargetRevisionID)
	require.Equal(t, int64(102), res.SourceRevisionID)
	require.Equal(t, xCode, res.SectionCode)
}

func TestRun_KeepLinkMarkers(t *testing.T) {
	f := newFixture(t, "moved-templates")

	_, err := f.orch.Run(context.Background(), Request{
		Section:    sectionX(),
		TargetPage: "Talk:Target",
		KeepLink:   true,
	})
	require.NoError(t, err)

	target, source := f.editor.edits[0].Text, f.editor.edits[1].Text
	require.Contains(t, target, "== Talk about X ==\n{{Moved from|[[Talk:Source#Talk about X]]|~~~~}}\nI think X matters.")
	require.True(t, strings.HasPrefix(source, introCode+"== Talk about X ==\n{{Moved to|[[Talk:Target#Talk about X]]|~~~~}} <small>10:00, 1 May 2023 (UTC)</small>\n"))
	require.True(t, strings.HasSuffix(source, yCode))
}

func TestRun_KeepLinkIgnoredWithoutStrategy(t *testing.T) {
	f := newFixture(t, "none")

	_, err := f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target", KeepLink: true})
	require.NoError(t, err)
	require.Equal(t, introCode+yCode, f.editor.edits[1].Text)
}

func TestRun_NewTopicsOnTop(t *testing.T) {
	f := newFixture(t, "none")
	top := "Header text.\n\n== Newest ==\n" + signed("New.", "Dan", danDate) + "\n== Oldest ==\n" + signed("Old.", "Zed", zedDate)
	f.provider.pages["Talk:Target"].Code = top

	_, err := f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
	require.NoError(t, err)
	require.Equal(t, "Header text.\n\n"+xCode+top[len("Header text.\n\n"):], f.editor.edits[0].Text)
}

func TestRun_MissingTargetIsCreated(t *testing.T) {
	f := newFixture(t, "none")
	delete(f.provider.pages, "Talk:Target")

	_, err := f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
	require.NoError(t, err)
	require.Equal(t, xCode, f.editor.edits[0].Text)
}

func TestRun_WrongPage(t *testing.T) {
	for _, target := range []string{"Talk:Source", "talk:Source", "Main Page", "Article"} {
		t.Run(target, func(t *testing.T) {
			f := newFixture(t, "none")
			_, err := f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: target})
			fail := requireFailure(t, err)
			require.Equal(t, English.WrongPage, fail.Message)
			require.False(t, fail.Recoverable)
			require.Equal(t, Aborted, f.orch.State())
			require.Empty(t, f.editor.edits)
		})
	}
}

func TestRun_LoadFailures(t *testing.T) {
	tests := []struct {
		name        string
		page        string
		err         error
		message     string
		recoverable bool
	}{
		{"source deleted", "Talk:Source", cderrors.NewAPI(cderrors.ErrMissing, "", nil), English.SourcePageDeleted, true},
		{"source api error", "Talk:Source", cderrors.NewAPI(cderrors.ErrorCode("readonly"), "", nil), "API error: readonly", true},
		{"source network", "Talk:Source", cderrors.NewNetwork(fmt.Errorf("timeout")), English.Network, true},
		{"target invalid", "Talk:Target", cderrors.NewAPI(cderrors.ErrInvalidTitle, "", nil), English.InvalidPageName, false},
		{"target network", "Talk:Target", cderrors.NewNetwork(fmt.Errorf("timeout")), English.Network, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "none")
			f.provider.errs[tt.page] = tt.err

			_, err := f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
			fail := requireFailure(t, err)
			require.Equal(t, tt.message, fail.Message)
			require.Equal(t, tt.recoverable, fail.Recoverable)
			require.Equal(t, LoadingBoth, fail.State)
			require.False(t, fail.TargetEdited)
			require.Equal(t, []State{LoadingBoth, Aborted}, f.states())
			require.Empty(t, f.editor.edits)
		})
	}
}

func TestRun_LocateFailureIsNotRecoverable(t *testing.T) {
	f := newFixture(t, "none")
	f.provider.pages["Talk:Source"].Code = introCode + yCode

	_, err := f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
	fail := requireFailure(t, err)
	require.Equal(t, English.LocateSection, fail.Message)
	require.False(t, fail.Recoverable)
	require.True(t, cderrors.Is(err, cderrors.ErrSectionNotFound))
}

func TestRun_TargetEditFailure(t *testing.T) {
	f := newFixture(t, "none")
	f.editor.errs["Talk:Target"] = cderrors.NewAPI(cderrors.ErrEditConflict, "Edit conflict.", nil)

	_, err := f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
	fail := requireFailure(t, err)
	require.Equal(t, "Error while editing the target page. Edit conflict. Just retry.", fail.Message)
	require.True(t, fail.Recoverable)
	require.False(t, fail.TargetEdited)
	require.Equal(t, EditingTarget, fail.State)
	require.Empty(t, f.editor.edits)

	// A recoverable failure allows a retry.
	delete(f.editor.errs, "Talk:Target")
	_, err = f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
	require.NoError(t, err)
	require.Equal(t, Done, f.orch.State())
}

func TestRun_SourceEditFailure(t *testing.T) {
	f := newFixture(t, "none")
	f.editor.errs["Talk:Source"] = cderrors.NewNetwork(fmt.Errorf("connection reset"))

	_, err := f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
	fail := requireFailure(t, err)
	require.Equal(t, English.EditingSource+" "+English.Network, fail.Message)
	require.False(t, fail.Recoverable)
	require.True(t, fail.TargetEdited)
	require.Equal(t, EditingSource, fail.State)
	require.Len(t, f.editor.edits, 1)
	require.Equal(t, []State{LoadingBoth, EditingTarget, EditingSource, Aborted}, f.states())

	_, err = f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
	require.True(t, cderrors.Is(err, cderrors.ErrInvalidRequest))
}

func TestRun_DoneCannotRerun(t *testing.T) {
	f := newFixture(t, "none")
	_, err := f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
	require.NoError(t, err)

	_, err = f.orch.Run(context.Background(), Request{Section: sectionX(), TargetPage: "Talk:Target"})
	require.True(t, cderrors.Is(err, cderrors.ErrInvalidRequest))
}

func TestNew_UnknownMarkerStrategy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MoveMarker = "no-such-strategy"
	_, err := New(cfg, &fakeProvider{}, &fakeEditor{}, nil, nil, nil)
	require.Error(t, err)
}

func TestRegisterMarkerStrategy(t *testing.T) {
	RegisterMarkerStrategy("test-archived", templateMarkers{})
	s, err := LookupMarkerStrategy("test-archived")
	require.NoError(t, err)
	begin, end := s.TargetMarkers(MarkerData{SourceWikilink: "Talk:A#B", Signature: "~~~~"})
	require.Equal(t, "{{Moved from|[[Talk:A#B]]|~~~~}}\n", begin)
	require.Empty(t, end)

	s, err = LookupMarkerStrategy("")
	require.NoError(t, err)
	require.Empty(t, s.SourceMarker(MarkerData{}))
}

func TestTargetCode(t *testing.T) {
	loc := &discussion.Location{
		Code:                      "== H ==\nBody.",
		RelativeContentStartIndex: len("== H ==\n"),
	}

	t.Run("box markers wrap content", func(t *testing.T) {
		begin, end := boxMarkers{}.TargetMarkers(MarkerData{SourceWikilink: "Talk:S#H", Signature: "~~~~"})
		section, code := TargetCode(loc, "Intro", page.Placement{FirstSectionStartIndex: -1}, begin, end)
		require.Equal(t, "== H ==\n{{Discussion top|Moved from [[Talk:S#H]]. ~~~~}}\nBody.\n{{Discussion bottom}}\n\n", section)
		require.Equal(t, "Intro\n"+section, code)
	})

	t.Run("single marker is inserted as is", func(t *testing.T) {
		section, _ := TargetCode(loc, "", page.Placement{FirstSectionStartIndex: -1}, "{{Moved}}", "")
		require.Equal(t, "== H ==\n{{Moved}}Body.\n\n", section)
	})

	t.Run("on top of a page without sections goes to the bottom", func(t *testing.T) {
		_, code := TargetCode(loc, "Intro", page.Placement{AreNewTopicsOnTop: true, FirstSectionStartIndex: -1}, "", "")
		require.Equal(t, "Intro\n\n== H ==\nBody.\n\n", code)
	})

	t.Run("empty page", func(t *testing.T) {
		section, code := TargetCode(loc, "", page.Placement{FirstSectionStartIndex: -1}, "", "")
		require.Equal(t, section, code)
	})
}

func TestSourceCode(t *testing.T) {
	src := "A\n== H ==\nBody.\n== Next ==\n"
	loc := &discussion.Location{
		StartIndex:                2,
		EndIndex:                  len("A\n== H ==\nBody.\n"),
		Code:                      "== H ==\nBody.\n",
		RelativeContentStartIndex: len("== H ==\n"),
	}

	require.Equal(t, "A\n== Next ==\n", SourceCode(src, loc, ""))
	require.Equal(t, "A\n== H ==\nMoved.\n== Next ==\n", SourceCode(src, loc, "Moved."))
}

func TestRecord(t *testing.T) {
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	r, err := NewRecord(Request{Section: sectionX(), TargetPage: "Talk:Target"}, now)
	require.NoError(t, err)
	require.Len(t, r.ID, 26)
	require.Equal(t, "Talk:Source", r.SourcePage)
	require.Equal(t, "Talk about X", r.Headline)
	require.Equal(t, Idle, r.State)

	r.Apply(StateChange{To: EditingSource, At: now.Add(time.Second)})
	require.Equal(t, EditingSource, r.State)
	require.Equal(t, now.Unix()+1, r.UpdatedAt)

	r.Apply(StateChange{To: Aborted, At: now.Add(2 * time.Second), Failure: &Failure{Message: "boom", TargetEdited: true}})
	require.Equal(t, "boom", r.Message)
	require.True(t, r.TargetEdited)
	require.False(t, r.Recoverable)
}

func TestParseState(t *testing.T) {
	for st := Idle; st <= Aborted; st++ {
		got, ok := ParseState(st.String())
		require.True(t, ok)
		require.Equal(t, st, got)
	}
	_, ok := ParseState("bogus")
	require.False(t, ok)
}

func TestState_JSON(t *testing.T) {
	type wrapper struct {
		State State `json:"state"`
	}
	data, err := json.Marshal(wrapper{State: EditingSource})
	require.NoError(t, err)
	require.JSONEq(t, `{"state":"editing-source"}`, string(data))

	var got wrapper
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, EditingSource, got.State)

	require.Error(t, json.Unmarshal([]byte(`{"state":"bogus"}`), &got))
}

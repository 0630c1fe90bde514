package ops

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GergesShamon/convenient-discussions/internal/config"
	"github.com/GergesShamon/convenient-discussions/internal/db"
	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/page"
)

type fakeWiki struct {
	mu    sync.Mutex
	pages map[string]*page.Page
	edits []page.EditRequest
	errs  map[string]error
}

func newFakeWiki() *fakeWiki {
	return &fakeWiki{
		pages: map[string]*page.Page{
			"Talk:Source": {Name: "Talk:Source", ID: 7, Code: sourceCode, RevisionID: 10, QueryTimestamp: "2023-06-01T00:00:00Z"},
			"Talk:Target": {Name: "Talk:Target", ID: 8, Code: targetCode, RevisionID: 20, QueryTimestamp: "2023-06-01T00:00:01Z"},
		},
		errs: map[string]error{},
	}
}

func (w *fakeWiki) GetCode(_ context.Context, name string, _ bool) (*page.Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pages[name]
	if !ok {
		return nil, errors.NewAPI(errors.ErrMissing, "", nil)
	}
	cp := *p
	return &cp, nil
}

func (w *fakeWiki) Edit(_ context.Context, req page.EditRequest) (*page.EditResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.errs[req.Title]; err != nil {
		return nil, err
	}
	w.edits = append(w.edits, req)
	rev := int64(100 + len(w.edits))
	if p, ok := w.pages[req.Title]; ok {
		p.Code = req.Text
		p.RevisionID = rev
	} else {
		w.pages[req.Title] = &page.Page{Name: req.Title, Code: req.Text, RevisionID: rev}
	}
	return &page.EditResult{NewRevisionID: rev}, nil
}

func signed(text, author string, date time.Time) string {
	return fmt.Sprintf("%s [[User:%s|%s]] %s (UTC)\n", text, author, author, date.Format("15:04, 2 January 2006"))
}

var (
	aliceDate = time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	bobDate   = time.Date(2023, 5, 1, 11, 0, 0, 0, time.UTC)
	carolDate = time.Date(2023, 5, 2, 12, 0, 0, 0, time.UTC)
	danDate   = time.Date(2023, 5, 3, 8, 0, 0, 0, time.UTC)
)

var (
	xCode = "== Talk about X ==\n" + signed("I think X matters.", "Alice", aliceDate) +
		":" + signed("Agreed.", "Bob", bobDate) + "\n"
	yCode      = "== Talk about Y ==\n" + signed("Y is also important.", "Carol", carolDate)
	sourceCode = xCode + yCode
	targetCode = "== Older topic ==\n" + signed("Something else.", "Dan", danDate)
)

func sectionXRef() SectionRef {
	return SectionRef{
		Page:     "Talk:Source",
		Headline: "Talk about X",
		Level:    2,
		ID:       0,
		OldestComment: &CommentRef{
			Author: "Alice",
			Date:   aliceDate.Format(time.RFC3339),
			Text:   "I think X matters.",
		},
	}
}

func setupDeps(t *testing.T) (*Deps, *fakeWiki) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.MoveMarker = "none"
	d, err := NewDeps(database, cfg, nil, nil)
	require.NoError(t, err)

	wiki := newFakeWiki()
	d.Provider = wiki
	d.Editor = wiki
	return d, wiki
}

func TestSectionRef_Validation(t *testing.T) {
	cases := []struct {
		name string
		ref  SectionRef
	}{
		{"no page", SectionRef{Headline: "X"}},
		{"no headline", SectionRef{Page: "Talk:A"}},
		{"bad level", SectionRef{Page: "Talk:A", Headline: "X", Level: 7}},
		{"negative id", SectionRef{Page: "Talk:A", Headline: "X", ID: -1}},
		{"bad date", SectionRef{Page: "Talk:A", Headline: "X", OldestComment: &CommentRef{Date: "yesterday"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.ref.Section()
			require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}

	s, err := SectionRef{Page: "Talk:A", Headline: "X"}.Section()
	require.NoError(t, err)
	require.Equal(t, 2, s.Level)
	require.Nil(t, s.OldestComment)
}

func TestLocate_OfflineCode(t *testing.T) {
	d, _ := setupDeps(t)
	d.Provider, d.Editor = nil, nil

	code := sourceCode
	out, err := Locate(context.Background(), d, LocateInput{Section: sectionXRef(), Code: &code, IncludeCode: true})
	require.NoError(t, err)
	require.Equal(t, 0, out.Location.StartIndex)
	require.Equal(t, xCode, out.Location.Code)
	require.True(t, out.Location.Signals.Headline)
	require.True(t, out.Location.Signals.OldestCommentIdentity)
	require.Zero(t, out.RevisionID)
}

func TestLocate_FetchesPage(t *testing.T) {
	d, _ := setupDeps(t)

	out, err := Locate(context.Background(), d, LocateInput{Section: sectionXRef()})
	require.NoError(t, err)
	require.Equal(t, int64(10), out.RevisionID)
	require.Empty(t, out.Location.Code)
	require.Equal(t, "Talk about X", out.Location.Headline)
}

func TestLocate_NotFound(t *testing.T) {
	d, _ := setupDeps(t)
	ref := sectionXRef()
	ref.Headline = "Nothing like this"
	ref.OldestComment = nil
	ref.ID = 5

	_, err := Locate(context.Background(), d, LocateInput{Section: ref})
	require.True(t, errors.Is(err, errors.ErrSectionNotFound), "got %v", err)
}

func TestLocate_NoWiki(t *testing.T) {
	d, _ := setupDeps(t)
	d.Provider, d.Editor = nil, nil

	_, err := Locate(context.Background(), d, LocateInput{Section: sectionXRef()})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestReply_DryRun(t *testing.T) {
	d, wiki := setupDeps(t)

	out, err := Reply(context.Background(), d, ReplyInput{
		Section:     sectionXRef(),
		Text:        "Me too.",
		Indentation: ":",
		DryRun:      true,
	})
	require.NoError(t, err)
	require.True(t, out.DryRun)
	require.Equal(t, ":: Me too. ~~~~\n", out.InsertedCode)
	require.Equal(t, "/* Talk about X */ reply", out.Summary)
	require.Contains(t, out.NewPageCode, ":"+signed("Agreed.", "Bob", bobDate)+":: Me too. ~~~~\n")
	require.Empty(t, wiki.edits)
}

func TestReply_LastSectionAtEndOfPage(t *testing.T) {
	d, wiki := setupDeps(t)
	wiki.pages["Talk:Source"].Code = strings.TrimRight(sourceCode, "\n")

	out, err := Reply(context.Background(), d, ReplyInput{
		Section: SectionRef{
			Page:     "Talk:Source",
			Headline: "Talk about Y",
			Level:    2,
			ID:       1,
			OldestComment: &CommentRef{
				Author: "Carol",
				Date:   carolDate.Format(time.RFC3339),
				Text:   "Y is also important.",
			},
		},
		Text:   "Me too.",
		DryRun: true,
	})
	require.NoError(t, err)
	require.Equal(t, xCode+yCode+": Me too. ~~~~\n", out.NewPageCode)
}

func TestReply_Saves(t *testing.T) {
	d, wiki := setupDeps(t)

	out, err := Reply(context.Background(), d, ReplyInput{
		Section: sectionXRef(),
		Text:    "First line.\nSecond line.",
		Summary: "answer",
		Minor:   true,
	})
	require.NoError(t, err)
	require.Equal(t, int64(101), out.NewRevisionID)
	require.Empty(t, out.NewPageCode)

	require.Len(t, wiki.edits, 1)
	edit := wiki.edits[0]
	require.Equal(t, "Talk:Source", edit.Title)
	require.Equal(t, int64(10), edit.BaseRevisionID)
	require.Equal(t, "2023-06-01T00:00:00Z", edit.StartTimestamp)
	require.True(t, edit.Minor)
	require.Equal(t, "/* Talk about X */ answer", edit.Summary)
	require.Contains(t, edit.Text, ": First line.\n: Second line. ~~~~\n")
	require.Contains(t, edit.Text, yCode)
}

func TestReply_Validation(t *testing.T) {
	d, _ := setupDeps(t)

	_, err := Reply(context.Background(), d, ReplyInput{Section: sectionXRef(), Text: "  "})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Reply(context.Background(), d, ReplyInput{Section: SectionRef{Page: "Talk:Source"}, Text: "hi"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestReply_EditConflict(t *testing.T) {
	d, wiki := setupDeps(t)
	wiki.errs["Talk:Source"] = errors.NewAPI(errors.ErrEditConflict, "Edit conflict.", nil)

	_, err := Reply(context.Background(), d, ReplyInput{Section: sectionXRef(), Text: "hi"})
	require.True(t, errors.Is(err, errors.ErrEditConflict))
}

func TestAddSubsection(t *testing.T) {
	d, wiki := setupDeps(t)

	out, err := AddSubsection(context.Background(), d, AddSubsectionInput{
		Section:  sectionXRef(),
		Headline: "Details",
		Text:     "More on X.",
	})
	require.NoError(t, err)
	require.Equal(t, "=== Details ===\nMore on X. ~~~~\n\n", out.InsertedCode)
	require.Equal(t, "/* Details */ new subsection", out.Summary)

	require.Len(t, wiki.edits, 1)
	require.Contains(t, wiki.edits[0].Text, xCode+"=== Details ===\nMore on X. ~~~~\n\n== Talk about Y ==")
}

func TestAddSubsection_RejectsMultilineHeadline(t *testing.T) {
	d, _ := setupDeps(t)

	_, err := AddSubsection(context.Background(), d, AddSubsectionInput{
		Section:  sectionXRef(),
		Headline: "a\nb",
		Text:     "x",
	})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestFormatComment(t *testing.T) {
	require.Equal(t, "Hello ~~~~\n", formatComment("Hello", "", "~~~~"))
	require.Equal(t, ":: a\n::* b ~~~~\n", formatComment("a\n* b", "::", "~~~~"))
	require.Equal(t, ": x\n", formatComment(" x \n", ":", ""))
}

func TestMove_JournalsStates(t *testing.T) {
	d, wiki := setupDeps(t)
	keep := false

	out, err := Move(context.Background(), d, MoveInput{
		Section:       sectionXRef(),
		TargetPage:    "Talk:Target",
		SummaryEnding: "off-topic",
		KeepLink:      &keep,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.ID)
	require.Equal(t, "done", out.State.String())
	require.Equal(t, int64(101), out.TargetRevisionID)
	require.Equal(t, int64(102), out.SourceRevisionID)
	require.Empty(t, out.Message)

	require.Equal(t, yCode, wiki.pages["Talk:Source"].Code)
	require.Equal(t, targetCode+"\n"+xCode, wiki.pages["Talk:Target"].Code)

	rec, err := db.GetMove(d.DB, out.ID)
	require.NoError(t, err)
	require.Equal(t, "done", rec.State.String())
	require.Equal(t, "Talk about X", rec.Headline)
}

func TestMove_FailureIsReported(t *testing.T) {
	d, wiki := setupDeps(t)
	wiki.errs["Talk:Source"] = errors.NewAPI(errors.ErrBlocked, "You are blocked.", nil)

	out, err := Move(context.Background(), d, MoveInput{Section: sectionXRef(), TargetPage: "Talk:Target"})
	require.NoError(t, err)
	require.Equal(t, "aborted", out.State.String())
	require.True(t, out.TargetEdited)
	require.False(t, out.Recoverable)
	require.NotEmpty(t, out.Message)

	rec, err := db.GetMove(d.DB, out.ID)
	require.NoError(t, err)
	require.Equal(t, "aborted", rec.State.String())
	require.True(t, rec.TargetEdited)
	require.Equal(t, out.Message, rec.Message)
}

func TestMove_Validation(t *testing.T) {
	d, _ := setupDeps(t)

	_, err := Move(context.Background(), d, MoveInput{Section: sectionXRef()})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	d.Config.MoveMarker = "no-such-marker"
	_, err = Move(context.Background(), d, MoveInput{Section: sectionXRef(), TargetPage: "Talk:Target"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestMoveHistory(t *testing.T) {
	d, _ := setupDeps(t)

	first, err := Move(context.Background(), d, MoveInput{Section: sectionXRef(), TargetPage: "Main Page"})
	require.NoError(t, err)
	require.Equal(t, "aborted", first.State.String())

	out, err := MoveHistory(d.DB, MoveHistoryInput{})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	require.Equal(t, DefaultListLimit, out.Pagination.Limit)
	require.False(t, out.Pagination.HasMore)

	one, err := MoveHistory(d.DB, MoveHistoryInput{ID: first.ID})
	require.NoError(t, err)
	require.Equal(t, first.ID, one.Items[0].ID)

	_, err = MoveHistory(d.DB, MoveHistoryInput{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	capped, err := MoveHistory(d.DB, MoveHistoryInput{Limit: 1000, Offset: -3})
	require.NoError(t, err)
	require.Equal(t, MaxListLimit, capped.Pagination.Limit)
	require.Equal(t, 0, capped.Pagination.Offset)
}

func TestAnchor(t *testing.T) {
	gen, err := Anchor(AnchorInput{Date: "2023-05-01T10:00:00Z", Author: "Alice Smith"})
	require.NoError(t, err)
	require.Equal(t, "202305011000_Alice_Smith", gen.Anchor)

	parsed, err := Anchor(AnchorInput{Anchor: gen.Anchor})
	require.NoError(t, err)
	require.Equal(t, "2023-05-01T10:00:00Z", parsed.Date)
	require.Equal(t, "Alice Smith", parsed.Author)

	_, err = Anchor(AnchorInput{Anchor: "not-an-anchor"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Anchor(AnchorInput{Author: "Alice"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestParseTimestamp(t *testing.T) {
	d, _ := setupDeps(t)
	now := time.Date(2023, 5, 1, 13, 0, 0, 0, time.UTC)

	out, err := ParseTimestamp(d.Engine, ParseTimestampInput{Text: signed("Hi.", "Bob", bobDate)}, now)
	require.NoError(t, err)
	require.Equal(t, "2023-05-01T11:00:00Z", out.Date)
	require.Equal(t, "11:00, 1 May 2023 (UTC)", out.Timestamp)
	require.Equal(t, "11:00, 1 May 2023 (UTC)", out.Formatted)
	require.Equal(t, "2 hours ago", out.Relative)

	_, err = ParseTimestamp(d.Engine, ParseTimestampInput{Text: "no date here"}, now)
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = ParseTimestamp(d.Engine, ParseTimestampInput{Text: " "}, now)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestRecordVisit(t *testing.T) {
	d, _ := setupDeps(t)
	ctx := context.Background()
	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)

	first, err := RecordVisit(ctx, d, RecordVisitInput{PageID: "7"}, base)
	require.NoError(t, err)
	require.True(t, first.FirstVisit)
	require.Equal(t, []int64{base.Unix()}, first.Visits)

	later := base.Add(2 * time.Hour)
	comments := []VisitComment{
		{Anchor: "old", Date: base.Add(-time.Hour).Format(time.RFC3339)},
		{Anchor: "fresh", Date: base.Add(time.Hour).Format(time.RFC3339)},
		{Anchor: "mine", Date: base.Add(time.Hour).Format(time.RFC3339), Own: true},
	}
	second, err := RecordVisit(ctx, d, RecordVisitInput{PageID: "7", Comments: comments}, later)
	require.NoError(t, err)
	require.False(t, second.FirstVisit)
	require.Equal(t, base.Unix(), second.PreviousVisit)
	require.Equal(t, 2, second.New)
	require.Equal(t, 1, second.Unseen)
	require.Equal(t, []CommentFlags{
		{Anchor: "old", New: false, Seen: true},
		{Anchor: "fresh", New: true, Seen: false},
		{Anchor: "mine", New: true, Seen: true},
	}, second.Comments)

	got, err := Visits(d.DB, VisitsInput{PageID: "7"})
	require.NoError(t, err)
	require.Equal(t, []int64{base.Unix(), later.Unix()}, got.Visits)

	empty, err := Visits(d.DB, VisitsInput{PageID: "9"})
	require.NoError(t, err)
	require.Empty(t, empty.Visits)

	_, err = Visits(d.DB, VisitsInput{PageID: "abc"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestRecordVisit_SyncWithoutWiki(t *testing.T) {
	d, _ := setupDeps(t)

	_, err := RecordVisit(context.Background(), d, RecordVisitInput{PageID: "7", Sync: true}, time.Now())
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestWatchLifecycle(t *testing.T) {
	d, _ := setupDeps(t)
	ctx := context.Background()

	out, err := Watch(ctx, d, WatchInput{PageID: "7", Headline: "Talk about X"})
	require.NoError(t, err)
	require.True(t, out.Changed)
	require.True(t, out.Watched)

	again, err := Watch(ctx, d, WatchInput{PageID: "7", Headline: "Talk about X"})
	require.NoError(t, err)
	require.False(t, again.Changed)

	_, err = Watch(ctx, d, WatchInput{PageID: "8", Headline: "Other"})
	require.NoError(t, err)

	all, err := Watched(d.DB, WatchedInput{})
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)

	renamed, err := RenameWatched(ctx, d, RenameWatchedInput{PageID: "7", OldHeadline: "Talk about X", NewHeadline: "X again"})
	require.NoError(t, err)
	require.Equal(t, []string{"X again"}, renamed.Pages["7"])

	_, err = RenameWatched(ctx, d, RenameWatchedInput{PageID: "7", OldHeadline: "Talk about X", NewHeadline: "Y"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	kept, err := RenameWatched(ctx, d, RenameWatchedInput{PageID: "7", OldHeadline: "X again", NewHeadline: "X third", OldStillPresent: true})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"X again", "X third"}, kept.Pages["7"])

	un, err := Unwatch(ctx, d, WatchInput{PageID: "8", Headline: "Other"})
	require.NoError(t, err)
	require.True(t, un.Changed)
	require.False(t, un.Watched)

	page8, err := Watched(d.DB, WatchedInput{PageID: "8"})
	require.NoError(t, err)
	require.Zero(t, page8.Total)
	require.NotNil(t, page8.Pages)
}

func TestWatch_Validation(t *testing.T) {
	d, _ := setupDeps(t)
	ctx := context.Background()

	_, err := Watch(ctx, d, WatchInput{PageID: "", Headline: "X"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = Watch(ctx, d, WatchInput{PageID: "7", Headline: " "})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = Watch(ctx, d, WatchInput{PageID: "7", Headline: "a\nb"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = Watch(ctx, d, WatchInput{PageID: "7", Headline: "X", Sync: true})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestSuggestUsers_NoWiki(t *testing.T) {
	d, _ := setupDeps(t)

	_, err := SuggestUsers(context.Background(), d, SuggestUsersInput{Prefix: "Al"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

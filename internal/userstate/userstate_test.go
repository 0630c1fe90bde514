package userstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GergesShamon/convenient-discussions/internal/discussion"
	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
)

func TestPackUnpackVisits(t *testing.T) {
	v := Visits{
		"100": {1700000000, 1700000600},
		"20":  {1690000000},
		"5":   nil,
	}

	packed := PackVisits(v)
	require.Equal(t, "20,1690000000\n100,1700000000,1700000600", packed)

	got := UnpackVisits(packed)
	require.Equal(t, Visits{"20": {1690000000}, "100": {1700000000, 1700000600}}, got)
}

func TestUnpackVisits_Tolerant(t *testing.T) {
	got := UnpackVisits("12, 1700000000,x,1700000100\ngarbage\n13,\n")
	require.Equal(t, Visits{"12": {1700000000, 1700000100}}, got)
	require.Empty(t, UnpackVisits(""))
}

func TestCleanUpVisits(t *testing.T) {
	v := Visits{
		"1": {1, 2, 3, 4, 5},
		"2": {6, 7, 8, 9, 10},
		"3": {0},
	}

	got := CleanUpVisits(v)
	// 11 visits: the boundary is the second smallest, so only 0 goes.
	require.Equal(t, Visits{"1": {1, 2, 3, 4, 5}, "2": {6, 7, 8, 9, 10}}, got)
	require.Len(t, v["3"], 1, "input must not be modified")

	require.Empty(t, CleanUpVisits(Visits{}))
	require.Equal(t, Visits{"1": {2, 3}}, CleanUpVisits(Visits{"1": {1, 2, 3}}))
}

func comment(date time.Time, anchor string, own bool) *discussion.Comment {
	return &discussion.Comment{Date: date, Anchor: anchor, IsOwn: own}
}

func TestProcessVisits(t *testing.T) {
	now := time.Date(2023, 5, 10, 12, 0, 30, 0, time.UTC)
	interval := 24 * time.Hour
	baseline := now.Add(-30 * time.Hour).Unix()
	lastVisit := now.Add(-2 * time.Hour).Unix()

	old := comment(now.Add(-48*time.Hour), "old", false)
	between := comment(now.Add(-5*time.Hour), "between", false)
	fresh := comment(now.Add(-time.Hour), "fresh", false)
	own := comment(now.Add(-time.Hour), "own", true)
	forced := comment(now.Add(-5*time.Hour), "forced", false)
	undated := comment(time.Time{}, "", false)

	comments := []*discussion.Comment{old, between, fresh, own, forced, undated}
	visits := []int64{now.Add(-40 * time.Hour).Unix(), baseline, lastVisit}

	res := ProcessVisits(visits, comments, now, interval, []string{"forced"})

	require.False(t, res.FirstVisit)
	require.Equal(t, lastVisit, res.PreviousVisit)
	require.Equal(t, []int64{baseline, lastVisit, now.Unix()}, res.Visits)

	require.False(t, old.IsNew)
	require.True(t, old.IsSeen)

	require.True(t, between.IsNew)
	require.True(t, between.IsSeen)

	require.True(t, fresh.IsNew)
	require.False(t, fresh.IsSeen)

	require.True(t, own.IsNew)
	require.True(t, own.IsSeen)

	require.True(t, forced.IsNew)
	require.False(t, forced.IsSeen)

	require.False(t, undated.IsNew)
	require.True(t, undated.IsSeen)

	require.Equal(t, 4, res.New)
	require.Equal(t, 2, res.Unseen)
	require.Len(t, visits, 3, "input must not be modified")
}

func TestProcessVisits_FirstVisit(t *testing.T) {
	now := time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)
	c := comment(now.Add(-time.Minute), "a", false)

	res := ProcessVisits(nil, []*discussion.Comment{c}, now, time.Hour, nil)
	require.True(t, res.FirstVisit)
	require.Equal(t, []int64{now.Unix()}, res.Visits)
	require.False(t, c.IsNew)
	require.False(t, c.IsSeen)
}

func TestProcessVisits_CommentInCurrentMinute(t *testing.T) {
	now := time.Date(2023, 5, 10, 12, 0, 40, 0, time.UTC)
	c := comment(time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC), "a", false)

	res := ProcessVisits([]int64{now.Add(-time.Minute).Unix()}, []*discussion.Comment{c}, now, time.Hour, nil)
	require.Equal(t, now.Unix()+60, res.Visits[len(res.Visits)-1])
}

func TestWatchedSections(t *testing.T) {
	w := WatchedSections{}
	require.True(t, w.Watch("10", "Proposal"))
	require.False(t, w.Watch("10", "Proposal"))
	require.True(t, w.Watch("10", "2019 review"))
	require.True(t, w.Watch("3", "Other"))
	require.False(t, w.Watch("3", ""))

	packed := PackWatchedSections(w)
	require.Equal(t, "3 Other\n 10 Proposal\n2019 review", packed)
	require.Equal(t, w, UnpackWatchedSections(packed))

	require.True(t, w.Unwatch("3", "Other"))
	require.False(t, w.Unwatch("3", "Other"))
	_, ok := w["3"]
	require.False(t, ok)
}

func TestWatchedSections_Rename(t *testing.T) {
	w := WatchedSections{"1": {"Old"}}

	w.Rename("1", "Old", "New", true)
	require.True(t, w.IsWatched("1", "Old"))
	require.True(t, w.IsWatched("1", "New"))

	w.Rename("1", "Old", "Newer", false)
	require.False(t, w.IsWatched("1", "Old"))
	require.True(t, w.IsWatched("1", "Newer"))

	w.Rename("1", "Unwatched", "X", false)
	require.False(t, w.IsWatched("1", "X"))
}

type fakeOptions struct {
	values map[string]string
	limit  int
	saves  int
}

func (f *fakeOptions) GetOption(_ context.Context, name string) (string, error) {
	return f.values[name], nil
}

func (f *fakeOptions) SetOptionInBackground(_ context.Context, name, value string) error {
	f.saves++
	if len(value) > f.limit {
		return cderrors.NewSizeLimit("options", f.limit, len(value))
	}
	f.values[name] = value
	return nil
}

func TestRemote_SaveVisitsShrinksUntilItFits(t *testing.T) {
	opts := &fakeOptions{values: map[string]string{}, limit: 60}
	r := NewRemote(opts, "visits", "watched", nil)

	v := Visits{}
	for i := int64(0); i < 10; i++ {
		v["1"] = append(v["1"], 1700000000+i)
	}

	stored, err := r.SaveVisits(context.Background(), v)
	require.NoError(t, err)
	require.Less(t, stored.Count(), 10)
	require.LessOrEqual(t, len(opts.values["visits"]), 60)
	require.Greater(t, opts.saves, 1)

	loaded, err := r.LoadVisits(context.Background())
	require.NoError(t, err)
	require.Equal(t, stored, loaded)
}

func TestRemote_SaveVisitsGivesUp(t *testing.T) {
	opts := &fakeOptions{values: map[string]string{}, limit: 5}
	r := NewRemote(opts, "visits", "watched", nil)

	// Equal times can't be told apart, so nothing can be dropped.
	_, err := r.SaveVisits(context.Background(), Visits{"1": {1700000000, 1700000000, 1700000000}})
	require.True(t, cderrors.Is(err, cderrors.ErrSizeLimit))
}

func TestRemote_WatchedSections(t *testing.T) {
	opts := &fakeOptions{values: map[string]string{}, limit: 1000}
	r := NewRemote(opts, "visits", "watched", nil)

	require.NoError(t, r.SaveWatchedSections(context.Background(), WatchedSections{"1": {"A"}}))
	got, err := r.LoadWatchedSections(context.Background())
	require.NoError(t, err)
	require.Equal(t, WatchedSections{"1": {"A"}}, got)
}

package page

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GergesShamon/convenient-discussions/internal/config"
	"github.com/GergesShamon/convenient-discussions/internal/timestamp"
)

func newEngine(t *testing.T) *timestamp.Engine {
	t.Helper()
	e, err := timestamp.NewEngine(config.DefaultConfig().Timestamp)
	require.NoError(t, err)
	return e
}

func TestAnalyzeNewTopicPlacement(t *testing.T) {
	engine := newEngine(t)
	header := "{{Talk header}}\n"

	newestFirst := header +
		"== Newer ==\nHi 10:00, 5 May 2023 (UTC)\n" +
		"=== Sub ===\nSub note 10:00, 6 May 2023 (UTC)\n" +
		"== Older ==\nHi 10:00, 1 May 2023 (UTC)\n"
	oldestFirst := header +
		"== Older ==\nHi 10:00, 1 May 2023 (UTC)\n" +
		"== Newer ==\nHi 10:00, 5 May 2023 (UTC)\n"

	tests := []struct {
		name     string
		code     string
		override *bool
		onTop    bool
		first    int
	}{
		{"newest first", newestFirst, nil, true, len(header)},
		{"oldest first", oldestFirst, nil, false, len(header)},
		{"single section", header + "== Only ==\nHi 10:00, 5 May 2023 (UTC)\n", nil, false, len(header)},
		{"no sections", "just text", nil, false, -1},
		{"override", oldestFirst, ptr(true), true, len(header)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Page{Name: "Talk:Test", Code: tt.code}
			got := p.AnalyzeNewTopicPlacement(engine, tt.override)
			require.Equal(t, tt.onTop, got.AreNewTopicsOnTop)
			require.Equal(t, tt.first, got.FirstSectionStartIndex)
		})
	}
}

func TestIsProbablyTalkPage(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Talk:Main Page", true},
		{"User talk:Alice", true},
		{"Wikipedia_talk:Manual of Style", true},
		{"Wikipedia:Village pump (technical)", true},
		{"Wikipedia:Manual of Style", false},
		{"Main Page", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsProbablyTalkPage(tt.name, []string{"Wikipedia:Village pump"}))
		})
	}
}

func TestSectionWikilink(t *testing.T) {
	require.Equal(t, "Talk:A#Use &#91;brackets&#93;", SectionWikilink("Talk:A", "Use [brackets]"))
}

func TestBuildEditSummary(t *testing.T) {
	require.Equal(t, "/* Topic */ Reply", BuildEditSummary("Reply", "Topic"))
	require.Equal(t, "Reply", BuildEditSummary("Reply", ""))

	long := BuildEditSummary(strings.Repeat("я", 600), "")
	require.Equal(t, 500, len([]rune(long)))
	require.True(t, strings.HasSuffix(long, "…"))
}

func ptr[T any](v T) *T { return &v }

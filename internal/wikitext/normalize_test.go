package wikitext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHideDistractingCode_KeepsLength(t *testing.T) {
	code := "Text <!-- == Fake ==\nhidden --> more\n<nowiki>== Also fake ==</nowiki>\n<pre>\nx\n</pre>\nПривет"
	got := HideDistractingCode(code)

	require.Equal(t, len(code), len(got))
	require.NotContains(t, got, "Fake")
	require.NotContains(t, got, "Also fake")
	require.Equal(t, strings.Count(code, "\n"), strings.Count(got, "\n"))
	require.True(t, strings.HasSuffix(got, "Привет"))
}

func TestHideDistractingCode_UnterminatedComment(t *testing.T) {
	code := "a <!-- never closed\n== H =="
	got := HideDistractingCode(code)
	require.Equal(t, "a "+strings.Repeat("\x01", len("<!-- never closed"))+"\n"+strings.Repeat("\x01", len("== H ==")), got)
}

func TestHideDistractingCode_ExtraTags(t *testing.T) {
	code := "<poem>== Verse ==</poem>"
	require.Equal(t, code, HideDistractingCode(code))
	require.Equal(t, strings.Repeat("\x01", len(code)), HideDistractingCode(code, "poem"))
}

func TestRemoveWikiMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"link with label", "See [[Main Page|the main page]] now", "See the main page now"},
		{"plain link", "[[Foo]] bar", "Foo bar"},
		{"bold italic", "'''bold''' and ''italic''", "bold and italic"},
		{"template", "Hi {{ping|Bob}} there", "Hi  there"},
		{"nested template", "a {{outer|{{inner}}}} b", "a  b"},
		{"comment and tag", "x<!-- c --> <small>y</small>", "x y"},
		{"external link", "[https://example.org Example site]", "Example site"},
		{"list markers", "::* reply", "reply"},
		{"masked bytes", "Head\x01\x01line", "Headline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, RemoveWikiMarkup(tt.in))
		})
	}
}

func TestRemoveWikiMarkup_Idempotent(t *testing.T) {
	inputs := []string{
		"'<b></b>'bold'<i></i>' [[A|[[B]]]]",
		"== Heading ==\n: reply [[User:Alice|Alice]] {{u|x}}",
		"''''' five '''''",
	}
	for _, in := range inputs {
		once := RemoveWikiMarkup(in)
		require.Equal(t, once, RemoveWikiMarkup(once), "input %q", in)
	}
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "Talk about X", NormalizeCode("  Talk_about \n X "))
	require.Equal(t, NormalizeCode("a__b"), NormalizeCode(NormalizeCode("a__b")))
}

func TestEndWithTwoNewlines(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"\n", "\n"},
		{"text", "text\n\n"},
		{"text\n", "text\n\n"},
		{"text\n\n", "text\n\n"},
		{"text\n\n\n", "text\n\n\n"},
		{"text  ", "text  \n\n"},
	}

	for _, tt := range tests {
		got := EndWithTwoNewlines(tt.in)
		require.Equal(t, tt.want, got, "input %q", tt.in)
		require.Equal(t, got, EndWithTwoNewlines(got), "not idempotent for %q", tt.in)
	}
}

func TestCalculateWordOverlap(t *testing.T) {
	require.Equal(t, 1.0, CalculateWordOverlap("Hello world", "hello, WORLD!"))
	require.Equal(t, 0.0, CalculateWordOverlap("alpha beta", "gamma delta"))
	require.Equal(t, 0.0, CalculateWordOverlap("", "anything"))
	require.Equal(t, 0.0, CalculateWordOverlap("...", "anything"))
	require.InDelta(t, 1.0/3.0, CalculateWordOverlap("one two", "two three"), 1e-9)
	require.Equal(t, 1.0, CalculateWordOverlap("Обсуждение 2024", "обсуждение 2024 обсуждение"))
}

func TestEncodeWikilink(t *testing.T) {
	require.Equal(t, "A &#91;b&#93; &#123;&#123;c&#125;&#125; &#124; d", EncodeWikilink("A [b]  {{c}} | d"))
	require.Equal(t, "&lt;span&gt;x", EncodeWikilink("<span>x"))
}

func TestScanHeadings(t *testing.T) {
	code := "intro\n== A ==\ntext\n=== B ===  \n=C==\n====\n=\n== unterminated =="
	got := ScanHeadings(code)

	require.Len(t, got, 4)
	require.Equal(t, Heading{Start: 6, ContentStart: 14, Level: 2, Text: " A "}, got[0])
	require.Equal(t, 3, got[1].Level)
	require.Equal(t, 1, got[2].Level)
	require.Equal(t, "C=", got[2].Text)
	require.Equal(t, 2, got[3].Level)
	require.Equal(t, "", got[3].Text)
}

func TestFindSectionEnd(t *testing.T) {
	code := "== A ==\ntext\n=== A1 ===\nsub\n== B ==\nmore\n"

	require.Equal(t, strings.Index(code, "== B =="), FindSectionEnd(code, 8, 2))
	require.Equal(t, strings.Index(code, "=== A1 ==="), FindSectionEnd(code, 8, 6))
	require.Equal(t, len(code), FindSectionEnd(code, strings.Index(code, "more"), 2))
}

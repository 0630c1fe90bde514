package discussion

import (
	"fmt"
	"strings"
	"unicode"

	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/wikitext"
)

// Action is a kind of insertion into a located section.
type Action string

const (
	// ActionReplyInChunk inserts at the end of the section's first chunk.
	ActionReplyInChunk Action = "reply-in-chunk"
	// ActionAddSubsection inserts at the end of the section's content.
	ActionAddSubsection Action = "add-subsection"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionReplyInChunk, ActionAddSubsection:
		return a, nil
	}
	return "", cderrors.NewInvalidRequest(fmt.Sprintf("unknown action %q", s))
}

// ModifyResult is the outcome of Modify.
type ModifyResult struct {
	NewPageCode string
	// InsertedAt is the offset of the new content in NewPageCode.
	InsertedAt          int
	CodeBeforeInsertion string
}

// Modify returns pageCode with content inserted into the section at loc.
// content is inserted as is, on a line of its own; the caller formats its
// other line breaks. loc must
// have been computed for this exact pageCode.
func Modify(pageCode string, loc *Location, action Action, content string) (*ModifyResult, error) {
	if err := checkLocation(pageCode, loc); err != nil {
		return nil, err
	}

	var before, after string
	switch action {
	case ActionReplyInChunk:
		before = pageCode[:loc.FirstChunkContentEndIndex]
		after = pageCode[loc.FirstChunkContentEndIndex:]
		// The last section of a saved page has no trailing line break.
		if before != "" && !strings.HasSuffix(before, "\n") {
			before += "\n"
		}
	case ActionAddSubsection:
		before = wikitext.EndWithTwoNewlines(pageCode[:loc.ContentEndIndex])
		after = strings.TrimRightFunc(pageCode[loc.ContentEndIndex:], unicode.IsSpace)
	default:
		return nil, cderrors.NewInvalidRequest(fmt.Sprintf("unknown action %q", action))
	}

	return &ModifyResult{
		NewPageCode:         before + content + after,
		InsertedAt:          len(before),
		CodeBeforeInsertion: before,
	}, nil
}

func checkLocation(pageCode string, loc *Location) error {
	if loc == nil {
		return cderrors.NewInvalidRequest("section is not located")
	}
	ordered := 0 <= loc.StartIndex &&
		loc.StartIndex <= loc.ContentStartIndex &&
		loc.ContentStartIndex <= loc.FirstChunkContentEndIndex &&
		loc.FirstChunkContentEndIndex <= loc.FirstChunkEndIndex &&
		loc.FirstChunkEndIndex <= loc.EndIndex &&
		loc.ContentStartIndex <= loc.ContentEndIndex &&
		loc.ContentEndIndex <= loc.EndIndex &&
		loc.EndIndex <= len(pageCode)
	if !ordered || (loc.Code != "" && pageCode[loc.StartIndex:loc.EndIndex] != loc.Code) {
		return cderrors.NewInternal(fmt.Errorf(
			"location %d-%d doesn't fit page code of length %d", loc.StartIndex, loc.EndIndex, len(pageCode)))
	}
	return nil
}

// Indentation modes.
const (
	IndentationMimic = "mimic"
	IndentationUnify = "unify"
)

// ReplyIndentation picks the list marker for a reply at the end of the first
// chunk. A placeholder "#" or "*" left in the chunk wins. In mimic mode the
// first marker of the last comment's indentation is reused. Otherwise
// defaultChar is used.
func ReplyIndentation(loc *Location, lastCommentIndentation, mode, defaultChar string) string {
	if loc != nil && loc.ReplyPlaceholder != "" {
		return loc.ReplyPlaceholder
	}
	if mode == IndentationMimic && lastCommentIndentation != "" {
		return lastCommentIndentation[:1]
	}
	return defaultChar
}

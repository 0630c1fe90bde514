package ops

import (
	"context"

	"github.com/GergesShamon/convenient-discussions/internal/discussion"
)

// LocateInput contains parameters for the Locate operation.
type LocateInput struct {
	Section     SectionRef
	IncludeCode bool
	// Code, when set, is located instead of the page's current source.
	Code *string
}

// LocationOutput is a located section.
type LocationOutput struct {
	StartIndex                int     `json:"start_index"`
	EndIndex                  int     `json:"end_index"`
	ContentStartIndex         int     `json:"content_start_index"`
	ContentEndIndex           int     `json:"content_end_index"`
	FirstChunkEndIndex        int     `json:"first_chunk_end_index"`
	FirstChunkContentEndIndex int     `json:"first_chunk_content_end_index"`
	Headline                  string  `json:"headline"`
	Level                     int     `json:"level"`
	SectionIndex              int     `json:"section_index"`
	ReplyPlaceholder          string  `json:"reply_placeholder,omitempty"`
	Score                     float64 `json:"score"`
	Signals                   Signals `json:"signals"`
	Code                      string  `json:"code,omitempty"`
}

// Signals is the per-signal score breakdown.
type Signals struct {
	Headline              bool    `json:"headline"`
	OldestCommentIdentity bool    `json:"oldest_comment_identity"`
	OldestCommentOverlap  float64 `json:"oldest_comment_overlap"`
	SectionIndex          bool    `json:"section_index"`
	PrecedingHeadlines    bool    `json:"preceding_headlines"`
}

// LocateOutput contains the result of the Locate operation.
type LocateOutput struct {
	Page       string         `json:"page"`
	RevisionID int64          `json:"revision_id,omitempty"`
	Location   LocationOutput `json:"location"`
}

// Locate finds a section in its page's source.
func Locate(ctx context.Context, d *Deps, input LocateInput) (*LocateOutput, error) {
	section, err := input.Section.Section()
	if err != nil {
		return nil, err
	}

	out := &LocateOutput{Page: section.SourcePage}
	var code string
	if input.Code != nil {
		code = *input.Code
	} else {
		if err := d.requireWiki(); err != nil {
			return nil, err
		}
		p, err := d.Provider.GetCode(ctx, section.SourcePage, true)
		if err != nil {
			return nil, err
		}
		code = p.Code
		out.Page = p.Name
		out.RevisionID = p.RevisionID
	}

	loc, err := d.Locator.Locate(section, code)
	if err != nil {
		return nil, err
	}
	out.Location = toLocationOutput(loc, input.IncludeCode)
	return out, nil
}

func toLocationOutput(loc *discussion.Location, includeCode bool) LocationOutput {
	out := LocationOutput{
		StartIndex:                loc.StartIndex,
		EndIndex:                  loc.EndIndex,
		ContentStartIndex:         loc.ContentStartIndex,
		ContentEndIndex:           loc.ContentEndIndex,
		FirstChunkEndIndex:        loc.FirstChunkEndIndex,
		FirstChunkContentEndIndex: loc.FirstChunkContentEndIndex,
		Headline:                  loc.Headline,
		Level:                     loc.Level,
		SectionIndex:              loc.SectionIndex,
		ReplyPlaceholder:          loc.ReplyPlaceholder,
		Score:                     loc.Score,
		Signals: Signals{
			Headline:              loc.Signals.Headline,
			OldestCommentIdentity: loc.Signals.OldestCommentIdentity,
			OldestCommentOverlap:  loc.Signals.OldestCommentOverlap,
			SectionIndex:          loc.Signals.SectionIndex,
			PrecedingHeadlines:    loc.Signals.PrecedingHeadlines,
		},
	}
	if includeCode {
		out.Code = loc.Code
	}
	return out
}

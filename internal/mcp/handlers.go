package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps *ops.Deps
	now  func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *ops.Deps) *Handlers {
	return &Handlers{deps: deps, now: time.Now}
}

// Request types for each tool

// LocateRequest represents the arguments for section_locate.
type LocateRequest struct {
	Section     ops.SectionRef `json:"section"`
	IncludeCode bool           `json:"include_code,omitempty"`
	Code        *string        `json:"code,omitempty"`
}

// ReplyRequest represents the arguments for section_reply.
type ReplyRequest struct {
	Section     ops.SectionRef `json:"section"`
	Text        string         `json:"text"`
	Indentation string         `json:"indentation,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Minor       bool           `json:"minor,omitempty"`
	DryRun      bool           `json:"dry_run,omitempty"`
}

// AddSubsectionRequest represents the arguments for section_add_subsection.
type AddSubsectionRequest struct {
	Section  ops.SectionRef `json:"section"`
	Headline string         `json:"headline"`
	Text     string         `json:"text"`
	Summary  string         `json:"summary,omitempty"`
	Minor    bool           `json:"minor,omitempty"`
	DryRun   bool           `json:"dry_run,omitempty"`
}

// MoveRequest represents the arguments for section_move.
type MoveRequest struct {
	Section       ops.SectionRef `json:"section"`
	TargetPage    string         `json:"target_page"`
	SummaryEnding string         `json:"summary_ending,omitempty"`
	KeepLink      *bool          `json:"keep_link,omitempty"`
}

// MoveHistoryRequest represents the arguments for move_history.
type MoveHistoryRequest struct {
	ID     string `json:"id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// AnchorRequest represents the arguments for anchor_generate and anchor_parse.
type AnchorRequest struct {
	Anchor string `json:"anchor,omitempty"`
	Date   string `json:"date,omitempty"`
	Author string `json:"author,omitempty"`
}

// TimestampParseRequest represents the arguments for timestamp_parse.
type TimestampParseRequest struct {
	Text          string `json:"text"`
	OffsetMinutes *int   `json:"offset_minutes,omitempty"`
}

// VisitsRecordRequest represents the arguments for visits_record.
type VisitsRecordRequest struct {
	PageID        string             `json:"page_id"`
	Comments      []ops.VisitComment `json:"comments,omitempty"`
	UnseenAnchors []string           `json:"unseen_anchors,omitempty"`
	Sync          bool               `json:"sync,omitempty"`
}

// PageRequest represents the arguments for tools addressing a page.
type PageRequest struct {
	PageID string `json:"page_id,omitempty"`
}

// WatchRequest represents the arguments for watch_add and watch_remove.
type WatchRequest struct {
	PageID   string `json:"page_id"`
	Headline string `json:"headline"`
	Sync     bool   `json:"sync,omitempty"`
}

// WatchRenameRequest represents the arguments for watch_rename.
type WatchRenameRequest struct {
	PageID          string `json:"page_id"`
	OldHeadline     string `json:"old_headline"`
	NewHeadline     string `json:"new_headline"`
	OldStillPresent bool   `json:"old_still_present,omitempty"`
	Sync            bool   `json:"sync,omitempty"`
}

// SuggestRequest represents the arguments for users_suggest.
type SuggestRequest struct {
	Prefix string `json:"prefix"`
}

// ImportOutput reports how many entries an import brought in.
type ImportOutput struct {
	Imported int `json:"imported"`
}

// Handler implementations

// HandleLocate handles the section_locate tool call.
func (h *Handlers) HandleLocate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LocateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Locate(ctx, h.deps, ops.LocateInput{
		Section:     input.Section,
		IncludeCode: input.IncludeCode,
		Code:        input.Code,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReply handles the section_reply tool call.
func (h *Handlers) HandleReply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReplyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Reply(ctx, h.deps, ops.ReplyInput{
		Section:     input.Section,
		Text:        input.Text,
		Indentation: input.Indentation,
		Summary:     input.Summary,
		Minor:       input.Minor,
		DryRun:      input.DryRun,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAddSubsection handles the section_add_subsection tool call.
func (h *Handlers) HandleAddSubsection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddSubsectionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AddSubsection(ctx, h.deps, ops.AddSubsectionInput{
		Section:  input.Section,
		Headline: input.Headline,
		Text:     input.Text,
		Summary:  input.Summary,
		Minor:    input.Minor,
		DryRun:   input.DryRun,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleMove handles the section_move tool call.
func (h *Handlers) HandleMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Move(ctx, h.deps, ops.MoveInput{
		Section:       input.Section,
		TargetPage:    input.TargetPage,
		SummaryEnding: input.SummaryEnding,
		KeepLink:      input.KeepLink,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleMoveHistory handles the move_history tool call.
func (h *Handlers) HandleMoveHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MoveHistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.MoveHistory(h.deps.DB, ops.MoveHistoryInput{
		ID:     input.ID,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAnchorGenerate handles the anchor_generate tool call.
func (h *Handlers) HandleAnchorGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnchorRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Anchor(ops.AnchorInput{Date: input.Date, Author: input.Author})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAnchorParse handles the anchor_parse tool call.
func (h *Handlers) HandleAnchorParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnchorRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Anchor == "" {
		return errorResult(errors.NewInvalidRequest("anchor is required")), nil
	}

	result, err := ops.Anchor(ops.AnchorInput{Anchor: input.Anchor})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTimestampParse handles the timestamp_parse tool call.
func (h *Handlers) HandleTimestampParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TimestampParseRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ParseTimestamp(h.deps.Engine, ops.ParseTimestampInput{
		Text:          input.Text,
		OffsetMinutes: input.OffsetMinutes,
	}, h.now())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVisitsRecord handles the visits_record tool call.
func (h *Handlers) HandleVisitsRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VisitsRecordRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RecordVisit(ctx, h.deps, ops.RecordVisitInput{
		PageID:        input.PageID,
		Comments:      input.Comments,
		UnseenAnchors: input.UnseenAnchors,
		Sync:          input.Sync,
	}, h.now())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVisitsGet handles the visits_get tool call.
func (h *Handlers) HandleVisitsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Visits(h.deps.DB, ops.VisitsInput{PageID: input.PageID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVisitsImport handles the visits_import tool call.
func (h *Handlers) HandleVisitsImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := ops.ImportVisits(ctx, h.deps)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(ImportOutput{Imported: n})
}

// HandleWatchAdd handles the watch_add tool call.
func (h *Handlers) HandleWatchAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WatchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Watch(ctx, h.deps, ops.WatchInput{
		PageID:   input.PageID,
		Headline: input.Headline,
		Sync:     input.Sync,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleWatchRemove handles the watch_remove tool call.
func (h *Handlers) HandleWatchRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WatchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Unwatch(ctx, h.deps, ops.WatchInput{
		PageID:   input.PageID,
		Headline: input.Headline,
		Sync:     input.Sync,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleWatchList handles the watch_list tool call.
func (h *Handlers) HandleWatchList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Watched(h.deps.DB, ops.WatchedInput{PageID: input.PageID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleWatchRename handles the watch_rename tool call.
func (h *Handlers) HandleWatchRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WatchRenameRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RenameWatched(ctx, h.deps, ops.RenameWatchedInput{
		PageID:          input.PageID,
		OldHeadline:     input.OldHeadline,
		NewHeadline:     input.NewHeadline,
		OldStillPresent: input.OldStillPresent,
		Sync:            input.Sync,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleWatchImport handles the watch_import tool call.
func (h *Handlers) HandleWatchImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := ops.ImportWatched(ctx, h.deps)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(ImportOutput{Imported: n})
}

// HandleUsersSuggest handles the users_suggest tool call.
func (h *Handlers) HandleUsersSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SuggestUsers(ctx, h.deps, ops.SuggestUsersInput{Prefix: input.Prefix})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cdErr, ok := errors.As(err); ok {
		msg := cdErr.Message
		if err != error(cdErr) {
			// Keep the wrapping context.
			msg = err.Error()
		}
		errorObj := map[string]any{
			"type":    cdErr.Type,
			"code":    cdErr.Code,
			"message": msg,
			"status":  cdErr.Status,
		}
		if cdErr.Code != errors.ErrInternal && cdErr.Details != nil {
			errorObj["details"] = cdErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"type":    errors.TypeInternal,
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

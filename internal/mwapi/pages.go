package mwapi

import (
	"context"
	"net/url"
	"strconv"

	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/page"
)

type revisionsResponse struct {
	CurTimestamp string `json:"curtimestamp"`
	Query        struct {
		Pages []struct {
			PageID        int64  `json:"pageid"`
			Title         string `json:"title"`
			Missing       bool   `json:"missing"`
			Invalid       bool   `json:"invalid"`
			InvalidReason string `json:"invalidreason"`
			Revisions     []struct {
				RevID int64 `json:"revid"`
				Slots struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// GetCode fetches the latest revision of a page. bypassCache sends the
// request as POST so that no cached response is used.
func (c *Client) GetCode(ctx context.Context, name string, bypassCache bool) (*page.Page, error) {
	params := url.Values{
		"action":       {"query"},
		"titles":       {name},
		"prop":         {"revisions"},
		"rvslots":      {"main"},
		"rvprop":       {"ids|content"},
		"redirects":    {"1"},
		"curtimestamp": {"1"},
	}

	var resp revisionsResponse
	var err error
	if bypassCache {
		err = c.post(ctx, params, &resp)
	} else {
		err = c.get(ctx, params, &resp)
	}
	if err != nil {
		return nil, err
	}

	if len(resp.Query.Pages) == 0 {
		return nil, cderrors.NewAPI(cderrors.ErrNoSuccess, "no page in response", map[string]any{"title": name})
	}
	p := resp.Query.Pages[0]
	switch {
	case p.Invalid:
		return nil, cderrors.NewAPI(cderrors.ErrInvalidTitle, p.InvalidReason, map[string]any{"title": name})
	case p.Missing:
		return nil, cderrors.NewAPI(cderrors.ErrMissing, "page doesn't exist", map[string]any{"title": name})
	case len(p.Revisions) == 0:
		return nil, cderrors.NewAPI(cderrors.ErrNoSuccess, "no revisions in response", map[string]any{"title": name})
	}

	rev := p.Revisions[0]
	c.logger.Debug("fetched page code", "title", p.Title, "revid", rev.RevID)
	return &page.Page{
		Name:           p.Title,
		ID:             p.PageID,
		Code:           rev.Slots.Main.Content,
		RevisionID:     rev.RevID,
		QueryTimestamp: resp.CurTimestamp,
	}, nil
}

type editResponse struct {
	Edit struct {
		Result   string `json:"result"`
		Code     string `json:"code"`
		Info     string `json:"info"`
		NewRevID int64  `json:"newrevid"`
		NoChange bool   `json:"nochange"`
	} `json:"edit"`
}

// Edit replaces the text of a page. An expired CSRF token is refreshed once.
func (c *Client) Edit(ctx context.Context, req page.EditRequest) (*page.EditResult, error) {
	if req.Title == "" {
		return nil, cderrors.NewInvalidRequest("title is required")
	}

	var resp editResponse
	err := c.withToken(ctx, func(token string) error {
		params := url.Values{
			"action":  {"edit"},
			"title":   {req.Title},
			"text":    {req.Text},
			"summary": {req.Summary},
			"token":   {token},
		}
		if req.BaseRevisionID != 0 {
			params.Set("baserevid", strconv.FormatInt(req.BaseRevisionID, 10))
		}
		if req.StartTimestamp != "" {
			params.Set("starttimestamp", req.StartTimestamp)
		}
		if req.Minor {
			params.Set("minor", "1")
		}
		return c.post(ctx, params, &resp)
	})
	if err != nil {
		return nil, err
	}

	if resp.Edit.Result != "Success" {
		code := resp.Edit.Code
		if code == "" {
			return nil, cderrors.NewAPI(cderrors.ErrNoSuccess, resp.Edit.Info, map[string]any{"result": resp.Edit.Result})
		}
		return nil, newAPIError(code, resp.Edit.Info)
	}

	c.logger.Info("page edited", "title", req.Title, "newrevid", resp.Edit.NewRevID, "nochange", resp.Edit.NoChange)
	return &page.EditResult{NewRevisionID: resp.Edit.NewRevID, NoChange: resp.Edit.NoChange}, nil
}

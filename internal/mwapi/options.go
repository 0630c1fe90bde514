package mwapi

import (
	"context"
	"net/url"
	"time"

	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
)

const backgroundTimeout = 30 * time.Second

type userInfoResponse struct {
	Query struct {
		UserInfo struct {
			ID      int64          `json:"id"`
			Name    string         `json:"name"`
			Anon    bool           `json:"anon"`
			Options map[string]any `json:"options"`
		} `json:"userinfo"`
	} `json:"query"`
}

// GetOption reads a user option of the logged-in user. A missing option
// yields an empty string.
func (c *Client) GetOption(ctx context.Context, name string) (string, error) {
	var resp userInfoResponse
	if err := c.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"userinfo"},
		"uiprop": {"options"},
	}, &resp); err != nil {
		return "", err
	}
	if resp.Query.UserInfo.Anon {
		return "", cderrors.NewAPI(cderrors.ErrNoSuccess, "not logged in", nil)
	}
	v, _ := resp.Query.UserInfo.Options[name].(string)
	return v, nil
}

// SetOption stores a user option. Values over the configured byte limit are
// rejected before any request is made.
func (c *Client) SetOption(ctx context.Context, name, value string) error {
	if c.optionsSizeLimit > 0 && len(value) > c.optionsSizeLimit {
		return cderrors.NewSizeLimit("options", c.optionsSizeLimit, len(value))
	}

	var resp struct {
		Options string `json:"options"`
	}
	err := c.withToken(ctx, func(token string) error {
		return c.post(ctx, url.Values{
			"action":      {"options"},
			"optionname":  {name},
			"optionvalue": {value},
			"token":       {token},
		}, &resp)
	})
	if err != nil {
		return err
	}
	if resp.Options != "success" {
		return cderrors.NewAPI(cderrors.ErrNoSuccess, "options were not saved", map[string]any{"option": name})
	}
	return nil
}

// SetOptionInBackground stores a user option on behalf of a request that
// may already be finished. The call outlives ctx cancellation and a
// badtoken answer that survives the retry is logged, not returned.
func (c *Client) SetOptionInBackground(ctx context.Context, name, value string) error {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
	defer cancel()

	err := c.SetOption(bg, name, value)
	if isBadToken(err) {
		c.logger.Warn("background option save dropped", "option", name, "error", err)
		return nil
	}
	return err
}

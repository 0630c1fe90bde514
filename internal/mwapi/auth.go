package mwapi

import (
	"context"
	"net/url"

	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
)

type tokensResponse struct {
	Query struct {
		Tokens struct {
			CSRFToken  string `json:"csrftoken"`
			LoginToken string `json:"logintoken"`
		} `json:"tokens"`
	} `json:"query"`
}

// Login signs in with bot password credentials. The session cookie is kept
// in the client's jar.
func (c *Client) Login(ctx context.Context, user, password string) error {
	if user == "" || password == "" {
		return cderrors.NewInvalidRequest("bot user and password are required")
	}

	var tokens tokensResponse
	if err := c.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"login"},
	}, &tokens); err != nil {
		return err
	}

	var resp struct {
		Login struct {
			Result string `json:"result"`
			Reason string `json:"reason"`
		} `json:"login"`
	}
	if err := c.post(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {user},
		"lgpassword": {password},
		"lgtoken":    {tokens.Query.Tokens.LoginToken},
	}, &resp); err != nil {
		return err
	}
	if resp.Login.Result != "Success" {
		return cderrors.NewAPI(cderrors.ErrNoSuccess, resp.Login.Reason, map[string]any{"result": resp.Login.Result})
	}

	c.mu.Lock()
	c.csrfToken = ""
	c.mu.Unlock()

	c.logger.Info("logged in", "user", user)
	return nil
}

// token returns the cached CSRF token, fetching it when absent or when
// refresh is set.
func (c *Client) token(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	cached := c.csrfToken
	c.mu.Unlock()
	if cached != "" && !refresh {
		return cached, nil
	}

	var resp tokensResponse
	if err := c.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"csrf"},
	}, &resp); err != nil {
		return "", err
	}
	tok := resp.Query.Tokens.CSRFToken
	if tok == "" {
		return "", cderrors.NewAPI(cderrors.ErrNoSuccess, "no csrf token in response", nil)
	}

	c.mu.Lock()
	c.csrfToken = tok
	c.mu.Unlock()
	return tok, nil
}

// withToken runs fn with a CSRF token and retries once with a fresh token if
// the API answers badtoken.
func (c *Client) withToken(ctx context.Context, fn func(token string) error) error {
	tok, err := c.token(ctx, false)
	if err != nil {
		return err
	}
	err = fn(tok)
	if !isBadToken(err) {
		return err
	}

	c.logger.Debug("csrf token expired, refreshing")
	tok, err = c.token(ctx, true)
	if err != nil {
		return err
	}
	return fn(tok)
}

func isBadToken(err error) bool {
	cdErr, ok := cderrors.As(err)
	if !ok || cdErr.Type != cderrors.TypeAPI {
		return false
	}
	raw, _ := cdErr.Details["raw_code"].(string)
	return raw == "badtoken"
}

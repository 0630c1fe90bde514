// Package mwapi is a client for the MediaWiki action API. It implements the
// page provider and editor interfaces and the user option storage used for
// visits and watched sections.
package mwapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/config"
	cderrors "github.com/GergesShamon/convenient-discussions/internal/errors"
)

const defaultTimeout = 60 * time.Second

// Client talks to one wiki's api.php.
type Client struct {
	endpoint         string
	userAgent        string
	optionsSizeLimit int
	http             *http.Client
	logger           *slog.Logger

	mu        sync.Mutex
	csrfToken string
}

// New creates a client for cfg.APIURL with its own cookie jar, so a login
// persists across requests.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, cderrors.NewInvalidRequest("api_url is not configured")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return nil, cderrors.NewInvalidRequest(fmt.Sprintf("invalid api_url: %v", err))
	}
	if logger == nil {
		logger = slog.Default()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		endpoint:         cfg.APIURL,
		userAgent:        cfg.UserAgent,
		optionsSizeLimit: cfg.OptionsSizeLimit,
		http: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
		logger: logger.With("component", "cd.mwapi"),
	}, nil
}

// apiError is the "error" member of a failed response.
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type envelope struct {
	Error *apiError `json:"error"`
}

// get performs a GET request and decodes the response into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, params, out)
}

// post performs a POST request and decodes the response into out. POST
// responses are never served from a cache.
func (c *Client) post(ctx context.Context, params url.Values, out any) error {
	return c.do(ctx, http.MethodPost, params, out)
}

func (c *Client) do(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, c.endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.endpoint, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return cderrors.NewInternal(err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Api-User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return cderrors.NewNetwork(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return cderrors.NewNetwork(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cderrors.NewNetwork(fmt.Errorf("api request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	// opensearch answers with a bare array and carries no error member.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return cderrors.NewAPI(cderrors.ErrAPI, "malformed api response", map[string]any{"parse_error": err.Error()})
		}
		if env.Error != nil {
			return newAPIError(env.Error.Code, env.Error.Info)
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return cderrors.NewAPI(cderrors.ErrAPI, "malformed api response", map[string]any{"parse_error": err.Error()})
		}
	}
	return nil
}

// newAPIError maps a MediaWiki error code onto the error taxonomy. The raw
// code is kept in Details.
func newAPIError(rawCode, info string) *cderrors.CDError {
	return cderrors.NewAPI(mapErrorCode(rawCode), info, map[string]any{"raw_code": rawCode})
}

func mapErrorCode(raw string) cderrors.ErrorCode {
	switch {
	case raw == "missingtitle":
		return cderrors.ErrMissing
	case raw == "invalidtitle":
		return cderrors.ErrInvalidTitle
	case raw == "editconflict":
		return cderrors.ErrEditConflict
	case raw == "blocked" || raw == "autoblocked" || strings.HasPrefix(raw, "blocked"):
		return cderrors.ErrBlocked
	case raw == "spamblacklist" || raw == "spamdetected":
		return cderrors.ErrSpamBlacklist
	case strings.HasPrefix(raw, "titleblacklist"):
		return cderrors.ErrTitleBlacklist
	case strings.HasPrefix(raw, "abusefilter"):
		return cderrors.ErrAbuseFilter
	default:
		return cderrors.ErrorCode(raw)
	}
}

package mwapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrSuperseded is returned by Suggester.Suggest when a newer call started
// before this one finished.
var ErrSuperseded = errors.New("superseded by a newer request")

const suggestLimit = 10

// Suggester completes user names. Only the latest call produces a result;
// earlier calls in flight return ErrSuperseded.
type Suggester struct {
	client    *Client
	namespace string
	delay     time.Duration

	mu      sync.Mutex
	current uint64
}

// NewSuggester creates a suggester. userNamespace is the localized prefix
// stripped from results, e.g. "User". delay debounces rapid calls.
func NewSuggester(client *Client, userNamespace string, delay time.Duration) *Suggester {
	if userNamespace == "" {
		userNamespace = "User"
	}
	return &Suggester{client: client, namespace: userNamespace, delay: delay}
}

func (s *Suggester) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
	return s.current
}

func (s *Suggester) isCurrent(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == id
}

// Suggest returns user names starting with prefix.
func (s *Suggester) Suggest(ctx context.Context, prefix string) ([]string, error) {
	id := s.begin()

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []string{}, nil
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if !s.isCurrent(id) {
		return nil, ErrSuperseded
	}

	names, err := s.openSearch(ctx, prefix)
	if err == nil && len(names) == 0 {
		names, err = s.allUsers(ctx, prefix)
	}
	if err != nil {
		return nil, err
	}
	if !s.isCurrent(id) {
		return nil, ErrSuperseded
	}
	return names, nil
}

func (s *Suggester) openSearch(ctx context.Context, prefix string) ([]string, error) {
	var raw []json.RawMessage
	if err := s.client.get(ctx, url.Values{
		"action":    {"opensearch"},
		"search":    {s.namespace + ":" + prefix},
		"namespace": {"2"},
		"redirects": {"resolve"},
		"limit":     {strconv.Itoa(suggestLimit)},
	}, &raw); err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, nil
	}

	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, nil
	}

	names := make([]string, 0, len(titles))
	for _, t := range titles {
		name := strings.TrimPrefix(t, s.namespace+":")
		// Subpages are not user names.
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *Suggester) allUsers(ctx context.Context, prefix string) ([]string, error) {
	var resp struct {
		Query struct {
			AllUsers []struct {
				Name string `json:"name"`
			} `json:"allusers"`
		} `json:"query"`
	}
	if err := s.client.get(ctx, url.Values{
		"action":   {"query"},
		"list":     {"allusers"},
		"auprefix": {prefix},
		"aulimit":  {strconv.Itoa(suggestLimit)},
	}, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Query.AllUsers))
	for _, u := range resp.Query.AllUsers {
		names = append(names, u.Name)
	}
	return names, nil
}

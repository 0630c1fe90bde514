package ops

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/mwapi"
)

// SuggestUsersInput contains parameters for the SuggestUsers operation.
type SuggestUsersInput struct {
	Prefix string
}

// SuggestUsersOutput contains the result of the SuggestUsers operation.
type SuggestUsersOutput struct {
	Prefix     string   `json:"prefix"`
	Users      []string `json:"users"`
	Superseded bool     `json:"superseded,omitempty"`
}

// SuggestUsers completes a user name prefix. A request overtaken by a newer
// one returns no users and Superseded set.
func SuggestUsers(ctx context.Context, d *Deps, input SuggestUsersInput) (*SuggestUsersOutput, error) {
	if d.Suggester == nil {
		return nil, errors.NewInvalidRequest("api_url is not configured")
	}
	prefix := strings.TrimSpace(input.Prefix)
	if prefix == "" {
		return nil, errors.NewInvalidRequest("prefix is required")
	}

	users, err := d.Suggester.Suggest(ctx, prefix)
	if stderrors.Is(err, mwapi.ErrSuperseded) {
		return &SuggestUsersOutput{Prefix: prefix, Users: []string{}, Superseded: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []string{}
	}
	return &SuggestUsersOutput{Prefix: prefix, Users: users}, nil
}

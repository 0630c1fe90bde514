package move

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record is the persisted trace of one move.
type Record struct {
	ID           string `json:"id"`
	SourcePage   string `json:"source_page"`
	TargetPage   string `json:"target_page"`
	Headline     string `json:"headline"`
	State        State  `json:"state"`
	Message      string `json:"message,omitempty"`
	Recoverable  bool   `json:"recoverable"`
	TargetEdited bool   `json:"target_edited"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// NewRecord starts a record for req with a fresh ULID.
func NewRecord(req Request, now time.Time) (*Record, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return nil, err
	}

	r := &Record{
		ID:         id.String(),
		TargetPage: req.TargetPage,
		State:      Idle,
		CreatedAt:  now.Unix(),
		UpdatedAt:  now.Unix(),
	}
	if req.Section != nil {
		r.SourcePage = req.Section.SourcePage
		r.Headline = req.Section.Headline
	}
	return r, nil
}

// Apply updates the record from a state change.
func (r *Record) Apply(c StateChange) {
	r.State = c.To
	r.UpdatedAt = c.At.Unix()
	if c.Failure != nil {
		r.Message = c.Failure.Message
		r.Recoverable = c.Failure.Recoverable
		r.TargetEdited = c.Failure.TargetEdited
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, bool) {
	for st := Idle; st <= Aborted; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return Idle, false
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	st, ok := ParseState(string(b))
	if !ok {
		return fmt.Errorf("unknown move state %q", b)
	}
	*s = st
	return nil
}

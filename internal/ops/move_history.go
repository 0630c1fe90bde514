package ops

import (
	"database/sql"
	"strings"

	"github.com/GergesShamon/convenient-discussions/internal/db"
	"github.com/GergesShamon/convenient-discussions/internal/move"
)

// MoveHistoryInput contains parameters for the MoveHistory operation.
type MoveHistoryInput struct {
	ID     string // when set, only this move is returned
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// MoveHistoryOutput contains the result of the MoveHistory operation.
type MoveHistoryOutput struct {
	Items      []*move.Record `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Sort       string         `json:"sort"`
}

// MoveHistory lists journaled moves, newest first.
func MoveHistory(database *sql.DB, input MoveHistoryInput) (*MoveHistoryOutput, error) {
	if id := strings.TrimSpace(input.ID); id != "" {
		r, err := db.GetMove(database, id)
		if err != nil {
			return nil, err
		}
		return &MoveHistoryOutput{
			Items:      []*move.Record{r},
			Pagination: Pagination{Limit: 1, Total: 1},
			Sort:       "created_at_desc",
		}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	records, total, err := db.ListMoves(database, limit, offset)
	if err != nil {
		return nil, err
	}

	return &MoveHistoryOutput{
		Items: records,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(records) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

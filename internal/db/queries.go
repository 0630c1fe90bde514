package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/move"
	"github.com/GergesShamon/convenient-discussions/internal/userstate"
)

// GetVisits returns a page's visit times, oldest first.
func GetVisits(db *sql.DB, pageID string) ([]int64, error) {
	rows, err := db.Query(`
		SELECT visit_time FROM visits
		WHERE page_id = ?
		ORDER BY visit_time ASC
	`, pageID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var times []int64
	for rows.Next() {
		var t int64
		if err := rows.Scan(&t); err != nil {
			return nil, errors.NewInternal(err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return times, nil
}

// ReplaceVisits sets a page's visit times in one transaction.
func ReplaceVisits(db *sql.DB, pageID string, times []int64) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM visits WHERE page_id = ?`, pageID); err != nil {
		return errors.NewInternal(err)
	}
	for _, t := range times {
		if _, err := tx.Exec(`INSERT INTO visits (page_id, visit_time) VALUES (?, ?)`, pageID, t); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// AllVisits returns the visits of every page.
func AllVisits(db *sql.DB) (userstate.Visits, error) {
	rows, err := db.Query(`SELECT page_id, visit_time FROM visits ORDER BY page_id, visit_time ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	v := userstate.Visits{}
	for rows.Next() {
		var (
			pageID string
			t      int64
		)
		if err := rows.Scan(&pageID, &t); err != nil {
			return nil, errors.NewInternal(err)
		}
		v[pageID] = append(v[pageID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return v, nil
}

// ReplaceAllVisits overwrites every page's visits, e.g. after a remote
// store dropped the oldest ones.
func ReplaceAllVisits(db *sql.DB, v userstate.Visits) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM visits`); err != nil {
		return errors.NewInternal(err)
	}
	for pageID, times := range v {
		for _, t := range times {
			if _, err := tx.Exec(`INSERT INTO visits (page_id, visit_time) VALUES (?, ?)`, pageID, t); err != nil {
				return errors.NewInternal(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// WatchSection watches a headline on a page. It reports whether the
// headline was not watched before.
func WatchSection(db *sql.DB, pageID, headline string) (bool, error) {
	result, err := db.Exec(`
		INSERT OR IGNORE INTO watched_sections (page_id, headline, created_at)
		VALUES (?, ?, ?)
	`, pageID, headline, time.Now().Unix())
	if err != nil {
		return false, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// UnwatchSection stops watching a headline. It reports whether the
// headline was watched.
func UnwatchSection(db *sql.DB, pageID, headline string) (bool, error) {
	result, err := db.Exec(`DELETE FROM watched_sections WHERE page_id = ? AND headline = ?`, pageID, headline)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// WatchedSections returns watched headlines in the order they were
// watched. An empty pageID returns all pages.
func WatchedSections(db *sql.DB, pageID string) (userstate.WatchedSections, error) {
	query := `SELECT page_id, headline FROM watched_sections`
	args := []any{}
	if pageID != "" {
		query += ` WHERE page_id = ?`
		args = append(args, pageID)
	}
	query += ` ORDER BY page_id, created_at, rowid`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	w := userstate.WatchedSections{}
	for rows.Next() {
		var id, headline string
		if err := rows.Scan(&id, &headline); err != nil {
			return nil, errors.NewInternal(err)
		}
		w[id] = append(w[id], headline)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return w, nil
}

// InsertMove stores a new move record.
func InsertMove(db *sql.DB, r *move.Record) error {
	_, err := db.Exec(`
		INSERT INTO moves (
			id, source_page, target_page, headline, state, message,
			recoverable, target_edited, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.SourcePage, r.TargetPage, r.Headline, r.State.String(), toNullString(r.Message),
		r.Recoverable, r.TargetEdited, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// UpdateMove stores the mutable fields of a move record.
func UpdateMove(db *sql.DB, r *move.Record) error {
	result, err := db.Exec(`
		UPDATE moves
		SET state = ?, message = ?, recoverable = ?, target_edited = ?, updated_at = ?
		WHERE id = ?
	`, r.State.String(), toNullString(r.Message), r.Recoverable, r.TargetEdited, r.UpdatedAt, r.ID)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(r.ID)
	}
	return nil
}

const moveColumns = `id, source_page, target_page, headline, state, message,
	recoverable, target_edited, created_at, updated_at`

// GetMove retrieves a move record by its ULID.
func GetMove(db *sql.DB, id string) (*move.Record, error) {
	row := db.QueryRow(`SELECT `+moveColumns+` FROM moves WHERE id = ?`, id)
	r, err := scanMove(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListMoves returns move records, newest first, and the total count.
func ListMoves(db *sql.DB, limit, offset int) ([]*move.Record, int, error) {
	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM moves`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.Query(`
		SELECT `+moveColumns+` FROM moves
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	records := []*move.Record{}
	for rows.Next() {
		r, err := scanMove(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return records, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMove(row scanner) (*move.Record, error) {
	var (
		r       move.Record
		state   string
		message sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.SourcePage, &r.TargetPage, &r.Headline, &state, &message,
		&r.Recoverable, &r.TargetEdited, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st, ok := move.ParseState(state)
	if !ok {
		return nil, fmt.Errorf("move %s has unknown state %q", r.ID, state)
	}
	r.State = st
	r.Message = message.String
	return &r, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

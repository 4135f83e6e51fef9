package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Request is one unit of work for the persistence worker.
type Request struct {
	Data      any    `json:"data"`      // Operation-specific data payload
	Operation string `json:"operation"` // Operation type
}

// Operation constants for Request. All are fire-and-forget writes.
const (
	OpCreateSession    = "create_session"
	OpInsertTurn       = "insert_turn"
	OpInsertTransition = "insert_transition"
	OpEndSession       = "end_session"
)

// DatabaseOperations provides the queries and writes over one database.
type DatabaseOperations struct {
	db *sql.DB
}

// NewDatabaseOperations creates a new database operations handler.
func NewDatabaseOperations(db *sql.DB) *DatabaseOperations {
	return &DatabaseOperations{db: db}
}

// CreateSession inserts a session record.
func (ops *DatabaseOperations) CreateSession(s *Session) error {
	started := s.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	_, err := ops.db.Exec(`
		INSERT INTO sessions (session_id, started_at, status, pages_json)
		VALUES (?, ?, ?, ?)
	`, s.SessionID, started, SessionStatusActive, s.PagesJSON)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// EndSession records the outcome of a session.
func (ops *DatabaseOperations) EndSession(req *EndSessionRequest) error {
	result, err := ops.db.Exec(`
		UPDATE sessions
		SET status = ?, error = ?, final_code = ?, steps = ?, ended_at = ?
		WHERE session_id = ?
	`, req.Status, req.Error, req.FinalCode, req.Steps, time.Now().UTC(), req.SessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// InsertTurn appends a turn. Re-inserting the same sequence number replaces it.
func (ops *DatabaseOperations) InsertTurn(t *Turn) error {
	_, err := ops.db.Exec(`
		INSERT OR REPLACE INTO turns
			(session_id, seq, kind, author, content, operation, call_id, arguments_json, is_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.SessionID, t.Seq, t.Kind, t.Author, t.Content, t.Operation, t.CallID, t.ArgumentsJSON, t.IsError)
	if err != nil {
		return fmt.Errorf("failed to insert turn %d: %w", t.Seq, err)
	}
	return nil
}

// InsertTransition appends a transition.
func (ops *DatabaseOperations) InsertTransition(t *Transition) error {
	_, err := ops.db.Exec(`
		INSERT OR REPLACE INTO transitions
			(session_id, step, from_state, to_state, sequential_op_count, cycles_since_progress, pages_remaining, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.SessionID, t.Step, t.FromState, t.ToState, t.SequentialOpCount, t.CyclesSinceProgress, t.PagesRemaining, t.At)
	if err != nil {
		return fmt.Errorf("failed to insert transition %d: %w", t.Step, err)
	}
	return nil
}

// GetSession returns one session.
func (ops *DatabaseOperations) GetSession(sessionID string) (*Session, error) {
	row := ops.db.QueryRow(`
		SELECT session_id, started_at, ended_at, status, pages_json, error, final_code, steps
		FROM sessions WHERE session_id = ?
	`, sessionID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return s, nil
}

// ListSessions returns the most recent sessions first. limit <= 0 returns all.
func (ops *DatabaseOperations) ListSessions(limit int) ([]*Session, error) {
	query := `
		SELECT session_id, started_at, ended_at, status, pages_json, error, final_code, steps
		FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := ops.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, nil
}

// GetTurns returns a session's turns in order.
func (ops *DatabaseOperations) GetTurns(sessionID string) ([]*Turn, error) {
	rows, err := ops.db.Query(`
		SELECT session_id, seq, kind, author, content, operation, call_id, arguments_json, is_error
		FROM turns WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Turn
	for rows.Next() {
		t := &Turn{}
		if err := rows.Scan(&t.SessionID, &t.Seq, &t.Kind, &t.Author, &t.Content,
			&t.Operation, &t.CallID, &t.ArgumentsJSON, &t.IsError); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}
	return out, nil
}

// GetTransitions returns a session's transitions in order.
func (ops *DatabaseOperations) GetTransitions(sessionID string) ([]*Transition, error) {
	rows, err := ops.db.Query(`
		SELECT session_id, step, from_state, to_state, sequential_op_count, cycles_since_progress, pages_remaining, at
		FROM transitions WHERE session_id = ? ORDER BY step
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Transition
	for rows.Next() {
		t := &Transition{}
		if err := rows.Scan(&t.SessionID, &t.Step, &t.FromState, &t.ToState,
			&t.SequentialOpCount, &t.CyclesSinceProgress, &t.PagesRemaining, &t.At); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}
	return out, nil
}

// StateCounts returns how often each state was entered in a session.
func (ops *DatabaseOperations) StateCounts(sessionID string) (map[string]int, error) {
	rows, err := ops.db.Query(`
		SELECT to_state, COUNT(*) FROM transitions WHERE session_id = ? GROUP BY to_state
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&s.SessionID, &s.StartedAt, &ended, &s.Status, &s.PagesJSON,
		&s.Error, &s.FinalCode, &s.Steps); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return s, nil
}

package persistence

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session status constants.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed" // reached Done
	SessionStatusFailed    = "failed"    // ended with a fatal error
	SessionStatusCancelled = "cancelled" // context cancelled by the caller
)

// Session is one generation session.
//
//nolint:govet // struct alignment optimization not critical for this type.
type Session struct {
	SessionID string     `json:"session_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    string     `json:"status"`
	PagesJSON string     `json:"pages_json"`
	Error     string     `json:"error,omitempty"`
	FinalCode string     `json:"final_code,omitempty"`
	Steps     int        `json:"steps"`
}

// Turn is one persisted conversation entry.
//
//nolint:govet // struct alignment optimization not critical for this type.
type Turn struct {
	SessionID     string `json:"session_id"`
	Seq           int    `json:"seq"`
	Kind          string `json:"kind"`
	Author        string `json:"author"`
	Content       string `json:"content"`
	Operation     string `json:"operation,omitempty"`
	CallID        string `json:"call_id,omitempty"`
	ArgumentsJSON string `json:"arguments_json,omitempty"`
	IsError       bool   `json:"is_error"`
}

// Transition is one persisted state machine move.
//
//nolint:govet // struct alignment optimization not critical for this type.
type Transition struct {
	SessionID           string    `json:"session_id"`
	Step                int       `json:"step"`
	FromState           string    `json:"from_state"`
	ToState             string    `json:"to_state"`
	SequentialOpCount   int       `json:"sequential_op_count"`
	CyclesSinceProgress int       `json:"cycles_since_progress"`
	PagesRemaining      int       `json:"pages_remaining"`
	At                  time.Time `json:"at"`
}

// EndSessionRequest closes a session record.
type EndSessionRequest struct {
	SessionID string
	Status    string
	Error     string
	FinalCode string
	Steps     int
}

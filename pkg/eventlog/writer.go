// Package eventlog writes session progress to daily rotated JSONL files.
package eventlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pagegen/pkg/conversation"
	"pagegen/pkg/logx"
	"pagegen/pkg/session"
	"pagegen/pkg/workflow"
)

// EventType names one kind of log record.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventTurn           EventType = "turn"
	EventTransition     EventType = "transition"
	EventSessionEnded   EventType = "session_ended"
)

// Event is one JSONL record.
//
//nolint:govet // fieldalignment: logical grouping preferred
type Event struct {
	Type       EventType            `json:"type"`
	SessionID  string               `json:"session_id"`
	Timestamp  time.Time            `json:"timestamp"`
	Pages      json.RawMessage      `json:"pages,omitempty"`
	Index      int                  `json:"index,omitempty"`
	Turn       *TurnRecord          `json:"turn,omitempty"`
	Transition *workflow.Transition `json:"transition,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// TurnRecord is the logged form of a conversation turn.
//
//nolint:govet // fieldalignment: logical grouping preferred
type TurnRecord struct {
	Kind      string                      `json:"kind"`
	Role      string                      `json:"role"`
	Author    string                      `json:"author"`
	Content   string                      `json:"content,omitempty"`
	Call      *conversation.OperationCall `json:"call,omitempty"`
	CallID    string                      `json:"call_id,omitempty"`
	Operation string                      `json:"operation,omitempty"`
	IsError   bool                        `json:"is_error,omitempty"`
}

func recordOf(t conversation.Turn) *TurnRecord {
	return &TurnRecord{
		Kind:      t.Kind.String(),
		Role:      string(t.Role()),
		Author:    string(t.Author),
		Content:   t.Content,
		Call:      t.Call,
		CallID:    t.CallID,
		Operation: t.Operation,
		IsError:   t.IsError,
	}
}

// Writer appends session events to events-YYYY-MM-DD.jsonl in its directory,
// opening a new file when the date changes. It is a workflow observer; write
// failures are logged, never returned to the session.
type Writer struct {
	workflow.BaseObserver

	logDir      string
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
	now         func() time.Time
	logger      *logx.Logger
}

var _ workflow.Observer = (*Writer)(nil)

// NewWriter creates the directory if needed and opens today's file.
func NewWriter(logDir string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	w := &Writer{
		logDir: logDir,
		now:    time.Now,
		logger: logx.NewLogger("eventlog"),
	}
	if err := w.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}
	return w, nil
}

// Write appends one event, stamping it when the timestamp is zero.
func (w *Writer) Write(ev *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return fmt.Errorf("event log closed")
	}
	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = w.now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.currentFile.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

func (w *Writer) rotateIfNeeded() error {
	date := w.now().Format("2006-01-02")
	if w.currentFile != nil && w.currentDate == date {
		return nil
	}
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
	}

	path := filepath.Join(w.logDir, fileName(date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // path is built from the configured directory
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	w.currentFile = file
	w.currentDate = date
	return nil
}

func fileName(date string) string {
	return fmt.Sprintf("events-%s.jsonl", date)
}

// CurrentLogFile returns the path of the active file, or "" once closed.
func (w *Writer) CurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentFile == nil {
		return ""
	}
	return filepath.Join(w.logDir, fileName(w.currentDate))
}

// Close closes the active file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	if err != nil {
		return fmt.Errorf("failed to close event log file: %w", err)
	}
	return nil
}

func (w *Writer) record(ev *Event) {
	if err := w.Write(ev); err != nil {
		w.logger.Warn("Dropped %s event for %s: %v", ev.Type, ev.SessionID, err)
	}
}

// SessionStarted implements workflow.Observer.
func (w *Writer) SessionStarted(_ context.Context, st *session.State) {
	w.record(&Event{Type: EventSessionStarted, SessionID: st.ID, Pages: json.RawMessage(st.Pages.JSON())})
}

// TurnAppended implements workflow.Observer.
func (w *Writer) TurnAppended(_ context.Context, st *session.State, index int, turn conversation.Turn) {
	w.record(&Event{Type: EventTurn, SessionID: st.ID, Index: index, Turn: recordOf(turn)})
}

// Transitioned implements workflow.Observer.
func (w *Writer) Transitioned(_ context.Context, st *session.State, t workflow.Transition) {
	w.record(&Event{Type: EventTransition, SessionID: st.ID, Timestamp: t.Timestamp, Transition: &t})
}

// SessionEnded implements workflow.Observer.
func (w *Writer) SessionEnded(_ context.Context, st *session.State, err error) {
	ev := &Event{Type: EventSessionEnded, SessionID: st.ID}
	if err != nil {
		ev.Error = err.Error()
	}
	w.record(ev)
}

// ReadEvents parses every record of one log file. Blank lines are skipped.
func ReadEvents(path string) ([]*Event, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller supplies the path
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var events []*Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		ev := &Event{}
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, fmt.Errorf("failed to parse event on line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log file: %w", err)
	}
	return events, nil
}

// ListLogFiles returns every event log file in logDir, oldest first.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "events-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pagegen/pkg/conversation"
	"pagegen/pkg/logx"
	"pagegen/pkg/session"
	"pagegen/pkg/workflow"
)

const defaultQueueSize = 256

// Store records session transcripts. Writes from the session goroutines are
// queued and applied in order by a single worker, so observing a session
// never waits on the database longer than it takes to enqueue.
type Store struct {
	db     *sql.DB
	ops    *DatabaseOperations
	logger *logx.Logger

	mu       sync.RWMutex
	closed   bool
	requests chan *Request
	done     chan struct{}

	stepsMu sync.Mutex
	steps   map[string]int
}

var _ workflow.Observer = (*Store)(nil)

// NewStore opens the database at path and starts the worker.
func NewStore(path string) (*Store, error) {
	db, err := InitializeDatabase(path)
	if err != nil {
		return nil, err
	}
	return NewStoreWithDB(db), nil
}

// NewStoreWithDB starts a worker over an initialized database. The store
// takes ownership of db.
func NewStoreWithDB(db *sql.DB) *Store {
	s := &Store{
		db:       db,
		ops:      NewDatabaseOperations(db),
		logger:   logx.NewLogger("persistence"),
		requests: make(chan *Request, defaultQueueSize),
		done:     make(chan struct{}),
		steps:    make(map[string]int),
	}
	go s.run()
	return s
}

// Ops returns the query interface. Reads observe every write enqueued
// before the last Flush or Close.
func (s *Store) Ops() *DatabaseOperations {
	return s.ops
}

func (s *Store) run() {
	defer close(s.done)
	s.logger.Debug("Starting persistence worker")
	for req := range s.requests {
		s.process(req)
	}
	s.logger.Debug("Persistence worker finished draining queue")
}

func (s *Store) process(req *Request) {
	var err error
	switch req.Operation {
	case OpCreateSession:
		if v, ok := req.Data.(*Session); ok {
			err = s.ops.CreateSession(v)
		}
	case OpInsertTurn:
		if v, ok := req.Data.(*Turn); ok {
			err = s.ops.InsertTurn(v)
		}
	case OpInsertTransition:
		if v, ok := req.Data.(*Transition); ok {
			err = s.ops.InsertTransition(v)
		}
	case OpEndSession:
		if v, ok := req.Data.(*EndSessionRequest); ok {
			err = s.ops.EndSession(v)
		}
	case opFlush:
		if ch, ok := req.Data.(chan struct{}); ok {
			close(ch)
		}
	default:
		err = fmt.Errorf("unknown persistence operation %q", req.Operation)
	}
	if err != nil {
		s.logger.Error("Failed to apply %s: %v", req.Operation, err)
	}
}

// opFlush is an internal barrier request.
const opFlush = "flush"

// ErrStoreClosed is returned by Flush after Close.
var ErrStoreClosed = errors.New("transcript store closed")

func (s *Store) enqueue(req *Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("Dropping %s: store closed", req.Operation)
		return
	}
	s.requests <- req
}

// Flush waits until every request enqueued so far has been applied.
func (s *Store) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.requests <- &Request{Operation: opFlush, Data: ch}
	s.mu.RUnlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush transcript store: %w", ctx.Err())
	}
}

// Close drains the queue and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.requests)
	s.mu.Unlock()

	<-s.done
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SessionStarted implements workflow.Observer.
func (s *Store) SessionStarted(_ context.Context, st *session.State) {
	s.enqueue(&Request{Operation: OpCreateSession, Data: &Session{
		SessionID: st.ID,
		PagesJSON: st.Pages.JSON(),
	}})
}

// TurnAppended implements workflow.Observer.
func (s *Store) TurnAppended(_ context.Context, st *session.State, index int, turn conversation.Turn) {
	rec := &Turn{
		SessionID: st.ID,
		Seq:       index,
		Kind:      turn.Kind.String(),
		Author:    string(turn.Author),
		Content:   turn.Content,
		CallID:    turn.CallID,
		Operation: turn.Operation,
		IsError:   turn.IsError,
	}
	if turn.IsRequest() {
		rec.CallID = turn.Call.ID
		rec.Operation = turn.Call.Name
		if args, err := json.Marshal(turn.Call.Arguments); err == nil {
			rec.ArgumentsJSON = string(args)
		}
	}
	s.enqueue(&Request{Operation: OpInsertTurn, Data: rec})
}

// Transitioned implements workflow.Observer.
func (s *Store) Transitioned(_ context.Context, _ *session.State, t workflow.Transition) {
	s.stepsMu.Lock()
	s.steps[t.SessionID] = t.Step
	s.stepsMu.Unlock()

	s.enqueue(&Request{Operation: OpInsertTransition, Data: &Transition{
		SessionID:           t.SessionID,
		Step:                t.Step,
		FromState:           t.From.String(),
		ToState:             t.To.String(),
		SequentialOpCount:   t.Counters.SequentialOpCount,
		CyclesSinceProgress: t.Counters.CyclesSinceProgress,
		PagesRemaining:      t.Counters.PagesRemaining,
		At:                  t.Timestamp,
	}})
}

// SessionEnded implements workflow.Observer.
func (s *Store) SessionEnded(_ context.Context, st *session.State, err error) {
	s.stepsMu.Lock()
	steps := s.steps[st.ID]
	delete(s.steps, st.ID)
	s.stepsMu.Unlock()

	req := &EndSessionRequest{
		SessionID: st.ID,
		Status:    SessionStatusCompleted,
		FinalCode: st.Code.Render(),
		Steps:     steps,
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		req.Status = SessionStatusCancelled
		req.Error = err.Error()
	default:
		req.Status = SessionStatusFailed
		req.Error = err.Error()
	}
	s.enqueue(&Request{Operation: OpEndSession, Data: req})
}

package workflow

import (
	"context"
	"time"

	"pagegen/pkg/conversation"
	"pagegen/pkg/session"
)

// Counters is a snapshot of the session counters taken after a step.
type Counters struct {
	SequentialOpCount   int `json:"sequential_op_count"`
	CyclesSinceProgress int `json:"cycles_since_progress"`
	PagesRemaining      int `json:"pages_remaining"`
}

func snapshot(st *session.State) Counters {
	return Counters{
		SequentialOpCount:   st.SequentialOpCount,
		CyclesSinceProgress: st.CyclesSinceProgress,
		PagesRemaining:      st.Pages.Remaining(),
	}
}

// Transition records one move of the state machine.
//
//nolint:govet // fieldalignment: logical grouping preferred
type Transition struct {
	SessionID string    `json:"session_id"`
	Step      int       `json:"step"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	Counters  Counters  `json:"counters"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer is told about session progress. Observers run on the session
// goroutine and must not block; failures are theirs to log.
type Observer interface {
	SessionStarted(ctx context.Context, st *session.State)
	TurnAppended(ctx context.Context, st *session.State, index int, turn conversation.Turn)
	Transitioned(ctx context.Context, st *session.State, t Transition)
	SessionEnded(ctx context.Context, st *session.State, err error)
}

// BaseObserver implements Observer with no-ops, for embedding.
type BaseObserver struct{}

func (BaseObserver) SessionStarted(context.Context, *session.State) {}

func (BaseObserver) TurnAppended(context.Context, *session.State, int, conversation.Turn) {}

func (BaseObserver) Transitioned(context.Context, *session.State, Transition) {}

func (BaseObserver) SessionEnded(context.Context, *session.State, error) {}

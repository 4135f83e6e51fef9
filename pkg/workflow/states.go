package workflow

import (
	"errors"
	"slices"
)

// State is one node of the session state machine.
type State string

const (
	StatePlan          State = "PLAN"
	StatePlanOps       State = "PLAN_OPS"
	StateEdit          State = "EDIT"
	StateEditOps       State = "EDIT_OPS"
	StateReview        State = "REVIEW"
	StateReviewOps     State = "REVIEW_OPS"
	StateForceComplete State = "FORCE_COMPLETE"
	StateResetOpCount  State = "RESET_OP_COUNT"
	StateDone          State = "DONE"
)

func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether the session ends in s.
func (s State) IsTerminal() bool {
	return s == StateDone
}

var (
	// ErrInvalidTransition indicates a move the transition table does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStepLimit aborts a session that exceeded its step budget.
	ErrStepLimit = errors.New("workflow step limit exceeded")
)

// TransitionTable lists the states reachable from each state.
type TransitionTable map[State][]State

// ValidTransitions is the session state machine.
//
//nolint:gochecknoglobals // fixed state machine
var ValidTransitions = TransitionTable{
	StatePlan:          {StatePlanOps, StateForceComplete, StateEdit},
	StatePlanOps:       {StatePlan},
	StateEdit:          {StateResetOpCount, StateEditOps, StateDone, StateReview},
	StateEditOps:       {StateEdit},
	StateResetOpCount:  {StateReview},
	StateReview:        {StateReviewOps, StatePlan},
	StateReviewOps:     {StateReview},
	StateForceComplete: {StatePlan, StateDone},
	StateDone:          {},
}

// IsValidTransition reports whether the table allows from → to.
func (t TransitionTable) IsValidTransition(from, to State) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// States returns every state in the table in a stable order.
func (t TransitionTable) States() []State {
	out := make([]State, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

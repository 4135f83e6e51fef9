// Package workflow sequences the planner, editor and reviewer over one
// session until every page is complete.
package workflow

import (
	"context"
	"fmt"
	"time"

	"pagegen/pkg/conversation"
	"pagegen/pkg/logx"
	"pagegen/pkg/render"
	"pagegen/pkg/session"
	"pagegen/pkg/tools"
)

// skippedReason answers a request that tripped the sequential operation limit.
const skippedReason = "too many operations in a row, summarize your progress first"

// Runner is one reasoning role.
type Runner interface {
	// Run performs one reasoning step and returns the turn it appended.
	Run(ctx context.Context, st *session.State) (conversation.Turn, error)
	// Tools lists the capability names the role may request.
	Tools() []string
}

// Limits bound a session.
type Limits struct {
	// CycleLimit is the number of editor summaries without progress before
	// the active page is forced complete.
	CycleLimit int
	// OpCallLimit is the number of sequential editor operations before the
	// counter is reset and the reviewer steps in.
	OpCallLimit int
	// MaxSteps aborts a runaway session. Zero means unlimited.
	MaxSteps int
	// ErrorLogSize bounds the per-session error log.
	ErrorLogSize int
}

// Roles groups the three nodes a session needs.
type Roles struct {
	Planner  Runner
	Editor   Runner
	Reviewer Runner
}

// Engine drives sessions. An Engine holds no session state and may run many
// sessions concurrently, each on its own goroutine.
type Engine struct {
	roles     Roles
	limits    Limits
	table     TransitionTable
	observers []Observer
	logger    *logx.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithObservers adds session observers.
func WithObservers(o ...Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o...) }
}

// WithLogger sets the engine logger.
func WithLogger(l *logx.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock used to timestamp transitions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over roles.
func NewEngine(roles Roles, limits Limits, opts ...Option) (*Engine, error) {
	if roles.Planner == nil || roles.Editor == nil || roles.Reviewer == nil {
		return nil, fmt.Errorf("workflow: planner, editor and reviewer are required")
	}
	e := &Engine{
		roles:  roles,
		limits: limits,
		table:  ValidTransitions,
		logger: logx.NewLogger("workflow"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// StartSession seeds a session from pages and runs it to completion against
// sink. It returns nil once every page is complete, or the fatal error that
// ended the session.
func (e *Engine) StartSession(ctx context.Context, inputs []session.PageInput, sink render.Sink) error {
	_, err := e.RunSession(ctx, inputs, sink)
	return err
}

// RunSession is StartSession returning the final session state.
func (e *Engine) RunSession(ctx context.Context, inputs []session.PageInput, sink render.Sink) (*session.State, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("workflow: at least one page is required")
	}
	st, err := session.New(inputs)
	if err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}
	if e.limits.ErrorLogSize > 0 {
		st.Errors = session.NewErrorLog(e.limits.ErrorLogSize)
	}
	return st, e.Run(ctx, st, sink)
}

// dispatchers holds one dispatcher per role, bound to a session.
type dispatchers struct {
	planner  *tools.Dispatcher
	editor   *tools.Dispatcher
	reviewer *tools.Dispatcher
}

// Run drives st from Plan to Done.
func (e *Engine) Run(ctx context.Context, st *session.State, sink render.Sink) (err error) {
	ctx = logx.WithSession(ctx, st.ID)
	sc := tools.SessionContext{State: st, Sink: sink}
	short := st.ID
	if len(short) > 8 {
		short = short[:8]
	}
	logger := e.logger.With(short)
	d := &dispatchers{
		planner:  tools.NewDispatcher(tools.NewProvider(sc, e.roles.Planner.Tools()), logger),
		editor:   tools.NewDispatcher(tools.NewProvider(sc, e.roles.Editor.Tools()), logger),
		reviewer: tools.NewDispatcher(tools.NewProvider(sc, e.roles.Reviewer.Tools()), logger),
	}

	logger.Info("🚀 Starting session with %d page(s)", st.Pages.Remaining())
	e.notify(func(o Observer) { o.SessionStarted(ctx, st) })
	defer func() {
		if err != nil {
			logger.Error("❌ Session failed: %v", err)
		} else {
			logger.Info("✅ Session complete")
		}
		e.notify(func(o Observer) { o.SessionEnded(ctx, st, err) })
	}()

	current := StatePlan
	for step := 1; !current.IsTerminal(); step++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("session %s cancelled in %s: %w", st.ID, current, ctxErr)
		}
		if e.limits.MaxSteps > 0 && step > e.limits.MaxSteps {
			return fmt.Errorf("%w: %d steps without finishing", ErrStepLimit, e.limits.MaxSteps)
		}

		before := st.Conversation.Len()
		next, stepErr := e.step(ctx, current, st, d)
		if stepErr != nil {
			return fmt.Errorf("%s: %w", current, stepErr)
		}
		e.publishTurns(ctx, st, before)

		if !e.table.IsValidTransition(current, next) {
			return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
		}
		tr := Transition{
			SessionID: st.ID,
			Step:      step,
			From:      current,
			To:        next,
			Counters:  snapshot(st),
			Timestamp: e.now(),
		}
		logx.Debug(ctx, "workflow", "🔄 %s → %s (ops=%d cycles=%d)",
			current, next, st.SequentialOpCount, st.CyclesSinceProgress)
		e.notify(func(o Observer) { o.Transitioned(ctx, st, tr) })
		current = next
	}
	return nil
}

// step runs the work of one state and returns the next state. The decision
// depends only on the turn just appended and the session counters.
//
//nolint:cyclop // one case per state reads best as a single switch
func (e *Engine) step(ctx context.Context, current State, st *session.State, d *dispatchers) (State, error) {
	switch current {
	case StatePlan:
		turn, err := e.roles.Planner.Run(ctx, st)
		if err != nil {
			return "", err
		}
		switch {
		case turn.IsRequest():
			return StatePlanOps, nil
		case st.CyclesSinceProgress > e.limits.CycleLimit:
			return StateForceComplete, nil
		default:
			return StateEdit, nil
		}

	case StateEdit:
		turn, err := e.roles.Editor.Run(ctx, st)
		if err != nil {
			return "", err
		}
		switch {
		case st.SequentialOpCount > e.limits.OpCallLimit:
			return StateResetOpCount, nil
		case turn.IsRequest():
			return StateEditOps, nil
		case st.Pages.AllComplete():
			return StateDone, nil
		default:
			return StateReview, nil
		}

	case StateReview:
		turn, err := e.roles.Reviewer.Run(ctx, st)
		if err != nil {
			return "", err
		}
		if turn.IsRequest() {
			return StateReviewOps, nil
		}
		return StatePlan, nil

	case StatePlanOps:
		return StatePlan, e.dispatch(ctx, st, d.planner)
	case StateEditOps:
		return StateEdit, e.dispatch(ctx, st, d.editor)
	case StateReviewOps:
		return StateReview, e.dispatch(ctx, st, d.reviewer)

	case StateResetOpCount:
		if call, ok := st.Conversation.PendingRequest(); ok {
			st.Conversation.Append(tools.Skipped(call, skippedReason))
		}
		e.logger.Warn("⚠️ Editor requested %d operations in a row, handing over to the reviewer", st.SequentialOpCount)
		st.SequentialOpCount = 0
		return StateReview, nil

	case StateForceComplete:
		active := st.ActivePagePath
		more, err := st.Advance()
		if err != nil {
			return "", err
		}
		e.logger.Warn("⏩ No progress after %d cycles, forcing %s complete", e.limits.CycleLimit, active)
		if !more {
			return StateDone, nil
		}
		return StatePlan, nil

	default:
		return "", fmt.Errorf("%w: no handler for state %s", ErrInvalidTransition, current)
	}
}

// dispatch executes the trailing request and appends its result.
func (e *Engine) dispatch(ctx context.Context, st *session.State, d *tools.Dispatcher) error {
	call, ok := st.Conversation.PendingRequest()
	if !ok {
		return fmt.Errorf("%w: no pending operation to dispatch", session.ErrInconsistentState)
	}
	result, err := d.Dispatch(ctx, call)
	if err != nil {
		return err //nolint:wrapcheck // dispatcher errors already carry the operation name
	}
	st.Conversation.Append(result)
	return nil
}

func (e *Engine) publishTurns(ctx context.Context, st *session.State, from int) {
	if len(e.observers) == 0 {
		return
	}
	turns := st.Conversation.Turns()
	for i := from; i < len(turns); i++ {
		turn := turns[i]
		index := i
		e.notify(func(o Observer) { o.TurnAppended(ctx, st, index, turn) })
	}
}

func (e *Engine) notify(fn func(Observer)) {
	for _, o := range e.observers {
		fn(o)
	}
}

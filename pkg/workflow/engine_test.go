package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
	"pagegen/pkg/agent/middleware/resilience/retry"
	"pagegen/pkg/agent/middleware/validation"
	"pagegen/pkg/conversation"
	"pagegen/pkg/roles"
	"pagegen/pkg/session"
	"pagegen/pkg/testkit"
	"pagegen/pkg/tools"
)

// recorder captures everything the engine reports.
type recorder struct {
	BaseObserver
	started     int
	ended       int
	endErr      error
	turns       []conversation.Turn
	transitions []Transition
}

func (r *recorder) SessionStarted(context.Context, *session.State) { r.started++ }

func (r *recorder) TurnAppended(_ context.Context, _ *session.State, _ int, t conversation.Turn) {
	r.turns = append(r.turns, t)
}

func (r *recorder) Transitioned(_ context.Context, _ *session.State, t Transition) {
	r.transitions = append(r.transitions, t)
}

func (r *recorder) SessionEnded(_ context.Context, _ *session.State, err error) {
	r.ended++
	r.endErr = err
}

func (r *recorder) path() []State {
	out := []State{StatePlan}
	for _, t := range r.transitions {
		out = append(out, t.To)
	}
	return out
}

type harness struct {
	planner, editor, reviewer *testkit.ScriptedClient
	sleeper                   *testkit.Sleeper
	sink                      *testkit.RecordingSink
	rec                       *recorder
	engine                    *Engine
}

func newHarness(t *testing.T, limits Limits, planner, editor, reviewer *testkit.ScriptedClient) *harness {
	t.Helper()
	h := &harness{
		planner:  planner,
		editor:   editor,
		reviewer: reviewer,
		sleeper:  &testkit.Sleeper{},
		sink:     &testkit.RecordingSink{},
		rec:      &recorder{},
	}
	policy := retry.NewPolicy(retry.Config{MaxAttempts: 5, Unit: time.Second}, nil, h.sleeper.Sleep)
	node := func(role roles.Role, c *testkit.ScriptedClient) *roles.Node {
		chained := llm.Chain(c, validation.NewResponseValidator(nil).Middleware())
		n, err := roles.NewNode(role, retry.NewCaller(chained, policy, nil), nil, roles.Options{})
		require.NoError(t, err)
		return n
	}
	engine, err := NewEngine(Roles{
		Planner:  node(roles.RolePlanner, planner),
		Editor:   node(roles.RoleEditor, editor),
		Reviewer: node(roles.RoleReviewer, reviewer),
	}, limits, WithObservers(h.rec))
	require.NoError(t, err)
	h.engine = engine
	return h
}

func markComplete(id, name string) testkit.Step {
	return testkit.Call(id, tools.ToolMarkPageComplete, map[string]any{"name": name})
}

func TestHomeAboutReachesDone(t *testing.T) {
	h := newHarness(t, Limits{CycleLimit: 10, OpCallLimit: 25},
		testkit.NewScriptedClient(testkit.Text("build the home page"), testkit.Text("now the about page")),
		testkit.NewScriptedClient(
			markComplete("c1", "Home"),
			testkit.Text("home is done"),
			testkit.Call("c2", tools.ToolNavigate, map[string]any{"path": "/About"}),
			markComplete("c3", "About"),
			testkit.Text("about is done"),
		),
		testkit.NewScriptedClient(testkit.Text("about still missing")),
	)

	st, err := h.engine.RunSession(context.Background(), testkit.Pages("Home", "About"), h.sink)
	require.NoError(t, err)
	assert.True(t, st.Pages.AllComplete())
	assert.Equal(t, "/About", st.ActivePagePath)

	assert.Equal(t, []State{
		StatePlan, StateEdit, StateEditOps, StateEdit, StateReview,
		StatePlan, StateEdit, StateEditOps, StateEdit, StateEditOps, StateEdit, StateDone,
	}, h.rec.path())
	assert.Equal(t, 1, h.rec.started)
	assert.Equal(t, 1, h.rec.ended)
	assert.NoError(t, h.rec.endErr)
	assert.Len(t, h.rec.turns, st.Conversation.Len())
	assert.Equal(t, "now the about page", st.CurrentPlan)
}

func TestStartSessionRequiresPages(t *testing.T) {
	h := newHarness(t, Limits{}, testkit.NewScriptedClient(), testkit.NewScriptedClient(), testkit.NewScriptedClient())
	require.Error(t, h.engine.StartSession(context.Background(), nil, h.sink))
}

func TestForceCompleteLastPageEndsSession(t *testing.T) {
	h := newHarness(t, Limits{CycleLimit: 1, OpCallLimit: 25},
		testkit.NewScriptedClient().WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "keep going"}, nil
		}),
		testkit.NewScriptedClient().WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "no changes"}, nil
		}),
		testkit.NewScriptedClient().WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "still wrong"}, nil
		}),
	)
	st, err := session.New(testkit.Pages("Home", "About"))
	require.NoError(t, err)
	require.NoError(t, st.Pages.MarkComplete("Home"))
	st.Navigate("/About")

	require.NoError(t, h.engine.Run(context.Background(), st, h.sink))
	assert.True(t, st.Pages.AllComplete())
	assert.Zero(t, st.CyclesSinceProgress)

	p := h.rec.path()
	assert.Equal(t, StateForceComplete, p[len(p)-2])
	assert.Equal(t, StateDone, p[len(p)-1])
}

func TestForceCompleteMovesToNextPage(t *testing.T) {
	var editorCalls atomic.Int32
	h := newHarness(t, Limits{CycleLimit: 0, OpCallLimit: 25, MaxSteps: 200},
		testkit.NewScriptedClient().WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "plan"}, nil
		}),
		testkit.NewScriptedClient().WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			editorCalls.Add(1)
			return llm.CompletionResponse{Content: "tried"}, nil
		}),
		testkit.NewScriptedClient().WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "review"}, nil
		}),
	)

	st, err := h.engine.RunSession(context.Background(), testkit.Pages("Home", "About", "Contact"), h.sink)
	require.NoError(t, err)
	assert.True(t, st.Pages.AllComplete())
	assert.Equal(t, "/Contact", st.ActivePagePath)
	for _, p := range st.Pages.Pages() {
		assert.NotEmpty(t, p.Path, "forced pages had their path assigned")
	}

	forced := 0
	for _, tr := range h.rec.transitions {
		if tr.To == StateForceComplete {
			forced++
		}
	}
	assert.Equal(t, 3, forced)
	assert.Equal(t, int32(3), editorCalls.Load())
}

func TestOpCountIsCapped(t *testing.T) {
	var n atomic.Int32
	h := newHarness(t, Limits{CycleLimit: 10, OpCallLimit: 3, MaxSteps: 40},
		testkit.NewScriptedClient().WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "plan"}, nil
		}),
		testkit.NewScriptedClient().WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			id := fmt.Sprintf("click-%d", n.Add(1))
			return testkit.CallResponse(id, tools.ToolClick, map[string]any{"selector": "#btn"}), nil
		}),
		testkit.NewScriptedClient().WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "review"}, nil
		}),
	)

	st, err := h.engine.RunSession(context.Background(), testkit.Pages("Home"), h.sink)
	require.ErrorIs(t, err, ErrStepLimit)

	resets := 0
	for _, tr := range h.rec.transitions {
		assert.LessOrEqual(t, tr.Counters.SequentialOpCount, 4)
		if tr.From == StateResetOpCount {
			resets++
			assert.Zero(t, tr.Counters.SequentialOpCount)
			assert.Equal(t, StateReview, tr.To)
		}
	}
	assert.Positive(t, resets)

	// The request that trips the limit is answered as skipped instead of executed.
	var skipped, executed int
	for _, turn := range st.Conversation.Turns() {
		switch {
		case turn.IsResult() && turn.IsError:
			skipped++
		case turn.IsResult():
			executed++
		}
	}
	assert.Equal(t, resets, skipped)
	assert.Len(t, h.sink.Clicks(), executed)
	assert.Equal(t, int(n.Load()), executed+skipped)
}

func TestReviewerOperationsAreDispatched(t *testing.T) {
	h := newHarness(t, Limits{CycleLimit: 10, OpCallLimit: 25},
		testkit.NewScriptedClient(testkit.Text("plan"), testkit.Text("plan")),
		testkit.NewScriptedClient(testkit.Text("edited"), markComplete("c9", "Home"), testkit.Text("done")),
		testkit.NewScriptedClient(
			testkit.Call("r1", tools.ToolNavigate, map[string]any{"path": "/"}),
			testkit.Text("looks close"),
		),
	)
	st, err := h.engine.RunSession(context.Background(), testkit.Pages("Home"), h.sink)
	require.NoError(t, err)
	assert.Contains(t, h.rec.path(), StateReviewOps)

	var answered bool
	for _, turn := range st.Conversation.Turns() {
		if turn.IsResult() && turn.CallID == "r1" {
			answered = !turn.IsError
		}
	}
	assert.True(t, answered)
}

func TestServiceUnavailableIsFatal(t *testing.T) {
	fail := testkit.Fail(llmerrors.NewError(llmerrors.ErrorTypeTransient, "503 overloaded"))
	h := newHarness(t, Limits{CycleLimit: 10, OpCallLimit: 25},
		testkit.NewScriptedClient(fail, fail, fail, fail, fail),
		testkit.NewScriptedClient(),
		testkit.NewScriptedClient(),
	)
	err := h.engine.StartSession(context.Background(), testkit.Pages("Home"), h.sink)
	require.Error(t, err)
	assert.True(t, llmerrors.IsServiceUnavailable(err))
	assert.Equal(t, 26*time.Second, h.sleeper.Total())
	require.Equal(t, 1, h.rec.ended)
	assert.Equal(t, err, h.rec.endErr)
}

func TestUnknownActivePathIsFatal(t *testing.T) {
	h := newHarness(t, Limits{CycleLimit: 10, OpCallLimit: 25},
		testkit.NewScriptedClient(
			testkit.Call("p1", tools.ToolNavigate, map[string]any{"path": "/missing"}),
		),
		testkit.NewScriptedClient(),
		testkit.NewScriptedClient(),
	)
	err := h.engine.StartSession(context.Background(), testkit.Pages("Home"), h.sink)
	var notFound *session.PageNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "/missing", notFound.Path)
}

func TestCancelledContextStopsSession(t *testing.T) {
	h := newHarness(t, Limits{}, testkit.NewScriptedClient(), testkit.NewScriptedClient(), testkit.NewScriptedClient())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.engine.StartSession(ctx, testkit.Pages("Home"), h.sink)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.planner.Calls())
}

func TestRunAcceptsShortSessionID(t *testing.T) {
	h := newHarness(t, Limits{}, testkit.NewScriptedClient(), testkit.NewScriptedClient(), testkit.NewScriptedClient())
	st, err := session.New(testkit.Pages("Home"))
	require.NoError(t, err)
	st.ID = "s1"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var runErr error
	require.NotPanics(t, func() { runErr = h.engine.Run(ctx, st, h.sink) })
	require.ErrorIs(t, runErr, context.Canceled)
	assert.Equal(t, 1, h.rec.ended)
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, ValidTransitions.IsValidTransition(StatePlan, StateEdit))
	assert.True(t, ValidTransitions.IsValidTransition(StateForceComplete, StateDone))
	assert.False(t, ValidTransitions.IsValidTransition(StatePlan, StateDone))
	assert.False(t, ValidTransitions.IsValidTransition(StateDone, StatePlan))
	assert.Len(t, ValidTransitions.States(), 9)
	for _, s := range ValidTransitions.States() {
		assert.Equal(t, s == StateDone, s.IsTerminal())
	}
}

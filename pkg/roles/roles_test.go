package roles

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
	"pagegen/pkg/agent/middleware/resilience/retry"
	"pagegen/pkg/agent/middleware/validation"
	"pagegen/pkg/contextwindow"
	"pagegen/pkg/conversation"
	"pagegen/pkg/session"
	"pagegen/pkg/testkit"
	"pagegen/pkg/tools"
)

func newNode(t *testing.T, role Role, client *testkit.ScriptedClient, opts Options) (*Node, *testkit.Sleeper) {
	t.Helper()
	sleeper := &testkit.Sleeper{}
	chained := llm.Chain(client, validation.NewResponseValidator(nil).Middleware())
	policy := retry.NewPolicy(retry.Config{MaxAttempts: 5, Unit: time.Second}, nil, sleeper.Sleep)
	node, err := NewNode(role, retry.NewCaller(chained, policy, nil), nil, opts)
	require.NoError(t, err)
	return node, sleeper
}

func newState(t *testing.T) *session.State {
	t.Helper()
	st, err := session.New(testkit.Pages("Home", "About"))
	require.NoError(t, err)
	return st
}

func TestNewNodeRejectsUnknownRole(t *testing.T) {
	_, err := NewNode(Role("critic"), retry.NewCaller(testkit.NewScriptedClient(), nil, nil), nil, Options{})
	require.Error(t, err)
}

func TestPlannerTextBecomesCurrentPlan(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Text("add a header"))
	node, _ := newNode(t, RolePlanner, client, Options{})
	st := newState(t)

	turn, err := node.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, conversation.KindText, turn.Kind)
	assert.Equal(t, conversation.AuthorPlanner, turn.Author)
	assert.Equal(t, "add a header", st.CurrentPlan)
	assert.Equal(t, 1, st.Conversation.Len())
	assert.Zero(t, st.CyclesSinceProgress)

	req := client.Requests()[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, tools.ToolNavigate, req.Tools[0].Name)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "planner")

	last := req.Messages[len(req.Messages)-1]
	require.Len(t, last.Images, 1, "planner ends with the reference sketch")
	assert.Equal(t, []byte("sketch:Home"), last.Images[0].Data)
}

func TestPlannerSeesRecentErrors(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Text("plan"))
	node, _ := newNode(t, RolePlanner, client, Options{})
	st := newState(t)
	st.Errors.Append("createFunction: duplicate function name Header")

	_, err := node.Run(context.Background(), st)
	require.NoError(t, err)

	var found bool
	for _, m := range client.Requests()[0].Messages {
		if strings.HasPrefix(m.Content, "Recent errors:") {
			found = strings.Contains(m.Content, "duplicate function name Header")
		}
	}
	assert.True(t, found)
	assert.Zero(t, st.Errors.Len(), "successful call clears the error log")
}

func TestPlannerRequestLeavesPlanUntouched(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Call("", tools.ToolNavigate, map[string]any{"path": "/About"}))
	node, _ := newNode(t, RolePlanner, client, Options{})
	st := newState(t)
	st.CurrentPlan = "previous"

	turn, err := node.Run(context.Background(), st)
	require.NoError(t, err)
	require.True(t, turn.IsRequest())
	assert.NotEmpty(t, turn.Call.ID, "missing call ids are generated")
	assert.Equal(t, "previous", st.CurrentPlan)
}

func TestEditorCounters(t *testing.T) {
	client := testkit.NewScriptedClient(
		testkit.Call("c1", tools.ToolClick, map[string]any{"selector": "#go"}),
		testkit.Call("c2", tools.ToolClick, map[string]any{"selector": "#go"}),
		testkit.Text("done with this step"),
	)
	node, _ := newNode(t, RoleEditor, client, Options{})
	st := newState(t)
	ctx := context.Background()

	_, err := node.Run(ctx, st)
	require.NoError(t, err)
	st.Conversation.Append(conversation.NewResult("c1", tools.ToolClick, "Click success!", false))
	_, err = node.Run(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 2, st.SequentialOpCount)
	st.Conversation.Append(conversation.NewResult("c2", tools.ToolClick, "Click success!", false))

	_, err = node.Run(ctx, st)
	require.NoError(t, err)
	assert.Zero(t, st.SequentialOpCount)
	assert.Equal(t, 1, st.CyclesSinceProgress)
}

func TestEditorPromptComposition(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Text("ok"))
	node, _ := newNode(t, RoleEditor, client, Options{NudgeThreshold: 2, EditorCanDelete: true})
	st := newState(t)
	st.CurrentPlan = "add a footer"
	st.SequentialOpCount = 3

	_, err := node.Run(context.Background(), st)
	require.NoError(t, err)
	req := client.Requests()[0]

	require.GreaterOrEqual(t, len(req.Messages), 6)
	assert.Len(t, req.Messages[1].Images, 1, "editor leads with the reference sketch")
	assert.Contains(t, req.Messages[2].Content, "function App")
	assert.Contains(t, req.Messages[3].Content, "Page structure")

	n := len(req.Messages)
	assert.Contains(t, req.Messages[n-2].Content, "add a footer")
	assert.Contains(t, req.Messages[n-1].Content, "3 operation(s)")
	assert.Contains(t, req.Messages[n-1].Content, "finish the current change")

	names := make([]string, 0, len(req.Tools))
	for _, d := range req.Tools {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, tools.ToolDeleteFunction)
	assert.Contains(t, req.Messages[0].Content, "deleteFunction")
}

func TestOpCountNote(t *testing.T) {
	assert.NotContains(t, opCountNote(2, 2), "finish")
	assert.Contains(t, opCountNote(3, 2), "finish")
	assert.NotContains(t, opCountNote(50, 0), "finish")
}

func TestReviewerComposition(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Text("header is missing"))
	node, _ := newNode(t, RoleReviewer, client, Options{})
	st := newState(t)
	st.Conversation.Append(conversation.NewText(conversation.AuthorEditor, "added the nav bar"))

	turn, err := node.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, conversation.AuthorReviewer, turn.Author)

	req := client.Requests()[0]
	assert.Equal(t, "[editor] added the nav bar", req.Messages[1].Content)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	assert.Contains(t, req.Messages[len(req.Messages)-1].Content, "Current code")
}

func TestWindowShrinksPerAttempt(t *testing.T) {
	client := testkit.NewScriptedClient(
		testkit.Fail(llmerrors.NewError(llmerrors.ErrorTypeTransient, "overloaded")),
		testkit.Text("plan"),
	)
	opts := Options{Window: contextwindow.Options{MaxTurns: 6, MinTurns: 2, RetryShrink: 4}}
	node, sleeper := newNode(t, RolePlanner, client, opts)
	st := newState(t)
	for i := 0; i < 10; i++ {
		st.Conversation.Append(conversation.NewText(conversation.AuthorPlanner, "note"))
	}

	_, err := node.Run(context.Background(), st)
	require.NoError(t, err)
	reqs := client.Requests()
	require.Len(t, reqs, 2)
	// preamble + window + code + pages + sketch, plus the logged failure on retry
	assert.Len(t, reqs[0].Messages, 1+6+3)
	assert.Len(t, reqs[1].Messages, 1+2+4)
	// The first retry follows immediately.
	assert.Empty(t, sleeper.Delays())
}

func TestMalformedResponseIsRetried(t *testing.T) {
	client := testkit.NewScriptedClient(
		testkit.Call("c1", tools.ToolCreateFunction, map[string]any{"name": "X"}),
		testkit.Text(""),
		testkit.Text("plan"),
	)
	node, sleeper := newNode(t, RolePlanner, client, Options{})
	st := newState(t)

	turn, err := node.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "plan", turn.Content)
	assert.Equal(t, 3, client.Calls())
	assert.Equal(t, []time.Duration{3 * time.Second}, sleeper.Delays())
}

func TestExhaustionIsServiceUnavailable(t *testing.T) {
	fail := testkit.Fail(llmerrors.NewError(llmerrors.ErrorTypeTransient, "503"))
	client := testkit.NewScriptedClient(fail, fail, fail, fail, fail)
	node, sleeper := newNode(t, RoleReviewer, client, Options{})
	st := newState(t)

	_, err := node.Run(context.Background(), st)
	require.Error(t, err)
	assert.True(t, llmerrors.IsServiceUnavailable(err))
	assert.Equal(t, 5, client.Calls())
	assert.Equal(t, 26*time.Second, sleeper.Total())
	assert.Zero(t, st.Conversation.Len())
	assert.Equal(t, 5, st.Errors.Len())
}

func TestMissingReferenceIsFatal(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Text("never"))
	node, _ := newNode(t, RolePlanner, client, Options{})
	st := newState(t)
	st.Navigate("/nowhere")

	_, err := node.Run(context.Background(), st)
	var notFound *session.PageNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "/nowhere", notFound.Path)
	assert.Zero(t, client.Calls())
}

func TestWindowMessagesMapping(t *testing.T) {
	window := []conversation.Turn{
		conversation.NewText(conversation.AuthorSystem, "start"),
		conversation.NewRequest(conversation.AuthorEditor, "", conversation.OperationCall{
			ID: "c1", Name: tools.ToolNavigate, Arguments: map[string]any{"path": "/"},
		}),
		conversation.NewResult("c1", tools.ToolNavigate, "ok", false),
		conversation.NewText(conversation.AuthorEditor, "done"),
	}
	msgs := windowMessages(conversation.AuthorEditor, window)
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "start", msgs[0].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "c1", msgs[1].ToolCalls[0].ID)
	assert.Equal(t, llm.RoleUser, msgs[2].Role)
	require.Len(t, msgs[2].ToolResults, 1)
	assert.Equal(t, "c1", msgs[2].ToolResults[0].ToolCallID)
	assert.Equal(t, llm.RoleAssistant, msgs[3].Role)
}

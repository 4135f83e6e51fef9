package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/pkg/conversation"
	"pagegen/pkg/pages"
	"pagegen/pkg/render"
	"pagegen/pkg/session"
)

type fakeSink struct {
	err     error
	pushes  []string
	clicks  []string
	reject  string
	noClick bool
}

func (f *fakeSink) PushCode(_ context.Context, src string) (render.Verdict, error) {
	if f.err != nil {
		return render.Verdict{}, f.err
	}
	f.pushes = append(f.pushes, src)
	if f.reject != "" {
		return render.Rejected(f.reject), nil
	}
	return render.Accepted(), nil
}

func (f *fakeSink) Click(_ context.Context, selector string) (render.Verdict, error) {
	f.clicks = append(f.clicks, selector)
	if f.noClick {
		return render.Rejected("element not found"), nil
	}
	return render.Accepted(), nil
}

func newTestDispatcher(t *testing.T, sink *fakeSink, allowed []string) (*Dispatcher, *session.State) {
	t.Helper()
	st, err := session.New([]session.PageInput{
		{Name: "Home", Reference: pages.NewImage([]byte("home"), "image/png")},
		{Name: "About", Reference: pages.NewImage([]byte("about"), "image/png")},
	})
	require.NoError(t, err)
	provider := NewProvider(SessionContext{State: st, Sink: sink}, allowed)
	return NewDispatcher(provider, nil), st
}

func call(name string, args map[string]any) *conversation.OperationCall {
	return &conversation.OperationCall{ID: "call-" + name, Name: name, Arguments: args}
}

func TestCreateFunctionDuplicateLeavesModelUnchanged(t *testing.T) {
	sink := &fakeSink{}
	d, st := newTestDispatcher(t, sink, EditingTools)
	before := st.Code.Clone()

	turn, err := d.Dispatch(context.Background(), call(ToolCreateFunction, map[string]any{"name": "App", "body": "return null;"}))
	require.NoError(t, err)

	assert.True(t, turn.IsError)
	assert.Equal(t, "call-createFunction", turn.CallID)
	assert.Contains(t, turn.Content, "duplicate function name")
	assert.Equal(t, before, st.Code)
	assert.Empty(t, sink.pushes)
	assert.Equal(t, 1, st.Errors.Len())
}

func TestCreateFunctionPublishes(t *testing.T) {
	sink := &fakeSink{}
	d, st := newTestDispatcher(t, sink, EditingTools)

	turn, err := d.Dispatch(context.Background(), call(ToolCreateFunction, map[string]any{
		"name": "Header", "parameters": "title: string", "body": "return <h1>{title}</h1>;",
	}))
	require.NoError(t, err)

	assert.False(t, turn.IsError)
	assert.True(t, strings.HasPrefix(turn.Content, msgFunctionAdded), turn.Content)
	require.Len(t, sink.pushes, 1)
	assert.Contains(t, sink.pushes[0], "function Header(title: string)")
	assert.True(t, st.Code.Has("Header"))
}

func TestPublishRejectionIsResultText(t *testing.T) {
	sink := &fakeSink{reject: "Unexpected token"}
	d, st := newTestDispatcher(t, sink, EditingTools)

	turn, err := d.Dispatch(context.Background(), call(ToolUpdateFunction, map[string]any{"name": "App", "body": "return <div>;"}))
	require.NoError(t, err)

	assert.True(t, turn.IsError)
	assert.Equal(t, "Error when compiling: Unexpected token", turn.Content)
	assert.Equal(t, "Error when compiling: Unexpected token", st.Errors.Last(1))
}

func TestUpdateFunction(t *testing.T) {
	sink := &fakeSink{}
	d, st := newTestDispatcher(t, sink, EditingTools)

	turn, err := d.Dispatch(context.Background(), call(ToolUpdateFunction, map[string]any{"name": "App", "returnType": "JSX.Element"}))
	require.NoError(t, err)
	assert.False(t, turn.IsError)
	fn, _ := st.Code.Get("App")
	assert.Equal(t, "JSX.Element", fn.ReturnType)
	assert.Contains(t, fn.Body, "Hello React")

	turn, err = d.Dispatch(context.Background(), call(ToolUpdateFunction, map[string]any{"name": "Nope", "body": "x"}))
	require.NoError(t, err)
	assert.True(t, turn.IsError)
	assert.Contains(t, turn.Content, "function not found")
}

func TestDeleteFunctionRequiresAllowList(t *testing.T) {
	sink := &fakeSink{}
	d, st := newTestDispatcher(t, sink, EditingTools)

	turn, err := d.Dispatch(context.Background(), call(ToolDeleteFunction, map[string]any{"name": "App"}))
	require.NoError(t, err)
	assert.True(t, turn.IsError)
	assert.True(t, st.Code.Has("App"))

	d, st = newTestDispatcher(t, sink, EditingToolsWithDelete(true))
	turn, err = d.Dispatch(context.Background(), call(ToolDeleteFunction, map[string]any{"name": "App"}))
	require.NoError(t, err)
	assert.False(t, turn.IsError)
	assert.True(t, strings.HasPrefix(turn.Content, "Function App deleted."), turn.Content)
	assert.False(t, st.Code.Has("App"))

	turn, err = d.Dispatch(context.Background(), call(ToolDeleteFunction, map[string]any{"name": "App"}))
	require.NoError(t, err)
	assert.True(t, turn.IsError)
}

func TestNavigateAssignsPath(t *testing.T) {
	d, st := newTestDispatcher(t, &fakeSink{}, PlanningTools)

	turn, err := d.Dispatch(context.Background(), call(ToolNavigate, map[string]any{"path": "/About"}))
	require.NoError(t, err)
	assert.Equal(t, "/About", turn.Content)
	assert.Equal(t, "/About", st.ActivePagePath)
	about, _ := st.Pages.Get("About")
	assert.Equal(t, "/About", about.Path)

	// No validation at this layer.
	_, err = d.Dispatch(context.Background(), call(ToolNavigate, map[string]any{"path": "/ghost"}))
	require.NoError(t, err)
	assert.Equal(t, "/ghost", st.ActivePagePath)

	turn, err = d.Dispatch(context.Background(), call(ToolNavigate, map[string]any{"path": "Home"}))
	require.NoError(t, err)
	assert.Equal(t, "/", turn.Content)
	assert.Equal(t, "/", st.ActivePagePath)
}

func TestMarkPageTools(t *testing.T) {
	d, st := newTestDispatcher(t, &fakeSink{}, EditingTools)

	turn, err := d.Dispatch(context.Background(), call(ToolMarkPageComplete, map[string]any{"name": "Home"}))
	require.NoError(t, err)
	assert.False(t, turn.IsError)
	assert.Contains(t, turn.Content, `"complete":true`)

	turn, err = d.Dispatch(context.Background(), call(ToolMarkPageIncomplete, map[string]any{"name": "Home"}))
	require.NoError(t, err)
	assert.False(t, turn.IsError)
	home, _ := st.Pages.Get("Home")
	assert.False(t, home.Completed)
	assert.Empty(t, home.Path)

	turn, err = d.Dispatch(context.Background(), call(ToolMarkPageComplete, map[string]any{"name": "Contact"}))
	require.NoError(t, err)
	assert.True(t, turn.IsError)
	assert.Contains(t, turn.Content, "page not found")
}

func TestClick(t *testing.T) {
	sink := &fakeSink{}
	d, _ := newTestDispatcher(t, sink, EditingTools)

	turn, err := d.Dispatch(context.Background(), call(ToolClick, map[string]any{"selector": "#nav"}))
	require.NoError(t, err)
	assert.Equal(t, msgClickSuccess, turn.Content)

	sink.noClick = true
	turn, err = d.Dispatch(context.Background(), call(ToolClick, map[string]any{"selector": "#nav"}))
	require.NoError(t, err)
	assert.True(t, turn.IsError)
	assert.Equal(t, "Click failed: element not found", turn.Content)
}

func TestDispatchRejectsUnofferedAndMalformed(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeSink{}, PlanningTools)

	turn, err := d.Dispatch(context.Background(), call(ToolCreateFunction, map[string]any{"name": "X"}))
	require.NoError(t, err)
	assert.True(t, turn.IsError)
	assert.Contains(t, turn.Content, "not allowed")

	turn, err = d.Dispatch(context.Background(), call(ToolNavigate, map[string]any{"path": 42}))
	require.NoError(t, err)
	assert.True(t, turn.IsError)
	assert.Contains(t, turn.Content, "must be a string")
}

func TestDispatchPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &fakeSink{err: ctx.Err()}
	d, _ := newTestDispatcher(t, sink, EditingTools)

	_, err := d.Dispatch(ctx, call(ToolUpdateFunction, map[string]any{"name": "App", "body": "x"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	sink.err = render.ErrSinkClosed
	_, err = d.Dispatch(context.Background(), call(ToolUpdateFunction, map[string]any{"name": "App", "body": "y"}))
	assert.True(t, errors.Is(err, render.ErrSinkClosed))
}

func TestProviderListOrder(t *testing.T) {
	p := NewProvider(SessionContext{}, EditingToolsWithDelete(true))
	defs := p.List()
	require.Len(t, defs, 7)
	assert.Equal(t, ToolNavigate, defs[0].Name)
	assert.Equal(t, ToolDeleteFunction, defs[6].Name)
	assert.False(t, NewProvider(SessionContext{}, ReviewTools).Allows(ToolClick))
}

func TestValidateArgs(t *testing.T) {
	def := createFunctionDefinition()
	assert.NoError(t, ValidateArgs(&def, map[string]any{"name": "A", "body": "b"}))
	assert.Error(t, ValidateArgs(&def, map[string]any{"name": "A"}))
	assert.Error(t, ValidateArgs(&def, map[string]any{"name": 1, "body": "b"}))

	enumDef := ToolDefinition{Name: "t", InputSchema: InputSchema{Properties: map[string]Property{
		"mode": {Type: "string", Enum: []string{"a", "b"}},
		"n":    {Type: "number"},
		"ok":   {Type: "boolean"},
	}}}
	assert.NoError(t, ValidateArgs(&enumDef, map[string]any{"mode": "a", "n": 1.5, "ok": true}))
	assert.Error(t, ValidateArgs(&enumDef, map[string]any{"mode": "c"}))
	assert.Error(t, ValidateArgs(&enumDef, map[string]any{"n": "1"}))
	assert.Error(t, ValidateArgs(&enumDef, map[string]any{"ok": "yes"}))
}

func TestSchemaRendering(t *testing.T) {
	def, ok := Definition(ToolCreateFunction)
	require.True(t, ok)

	schema := def.InputSchema.Schema()
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "name")
	assert.Equal(t, def.InputSchema.Required, schema["required"])

	nested := Property{Type: "array", Items: &Property{Type: "string", Enum: []string{"a"}}}
	items, ok := nested.Schema()["items"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, items["enum"])
}

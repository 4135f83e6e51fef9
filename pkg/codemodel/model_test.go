package codemodel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSeedRender(t *testing.T) {
	m := Seed()
	want := "function App() {\n  return (\n    <div>\n      <h1>Hello React</h1>\n    </div>\n  );\n}\n\n" +
		"ReactDOM.render(<App />, document.getElementById('root'));"
	assert.Equal(t, want, m.Render())
}

func TestRenderWithReturnType(t *testing.T) {
	fn := Function{Name: "greet", Parameters: "name: string", ReturnType: "string", Body: "return name;"}
	assert.Equal(t, "function greet(name: string): string {\n  return name;\n}", fn.Render())
}

func TestCreateDuplicateLeavesModelUnchanged(t *testing.T) {
	m := Seed()
	before := m.Clone()

	err := m.Create(Function{Name: "App", Body: "return null;"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateFunctionName))
	assert.Equal(t, before, m)
}

func TestCreateAppends(t *testing.T) {
	m := Seed()
	require.NoError(t, m.Create(Function{Name: "Header", Body: "return <h1/>;"}))
	require.Len(t, m.Functions, 2)
	assert.Equal(t, "Header", m.Functions[1].Name)
	assert.Error(t, m.Create(Function{}))
}

func TestUpdatePartial(t *testing.T) {
	m := Seed()
	require.NoError(t, m.Update(FunctionPatch{Name: "App", Parameters: strPtr("props: any")}))

	fn, ok := m.Get("App")
	require.True(t, ok)
	assert.Equal(t, "props: any", fn.Parameters)
	assert.Equal(t, Seed().Functions[0].Body, fn.Body)

	err := m.Update(FunctionPatch{Name: "Missing", Body: strPtr("x")})
	assert.True(t, errors.Is(err, ErrFunctionNotFound))
}

func TestDelete(t *testing.T) {
	m := Seed()
	require.NoError(t, m.Create(Function{Name: "Footer"}))
	require.NoError(t, m.Delete("App"))
	assert.False(t, m.Has("App"))
	assert.True(t, m.Has("Footer"))
	assert.True(t, errors.Is(m.Delete("App"), ErrFunctionNotFound))
}

func TestCloneIsIndependent(t *testing.T) {
	m := Seed()
	c := m.Clone()
	c.Functions[0].Body = "changed"
	assert.NotEqual(t, "changed", m.Functions[0].Body)
}

func TestDiff(t *testing.T) {
	before := Seed()
	after := before.Clone()
	require.NoError(t, after.Create(Function{Name: "Nav", Body: "return <nav/>;"}))

	stats := Diff(before, after)
	assert.Positive(t, stats.Added)
	assert.False(t, stats.Empty())
	assert.True(t, Diff(before, before.Clone()).Empty())
}

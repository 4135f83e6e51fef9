// Package codemodel is the structured form of the generated program: an
// ordered list of named functions plus top-level boilerplate.
package codemodel

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrDuplicateFunctionName is returned when creating a function whose name is taken.
	ErrDuplicateFunctionName = errors.New("duplicate function name")
	// ErrFunctionNotFound is returned when updating or deleting an unknown function.
	ErrFunctionNotFound = errors.New("function not found")
)

// Function is one named function definition.
type Function struct {
	Name       string `json:"name"`
	Parameters string `json:"parameters"`
	ReturnType string `json:"returnType,omitempty"`
	Body       string `json:"body"`
}

// FunctionPatch carries the fields of an update; nil fields are left as they are.
type FunctionPatch struct {
	Parameters *string
	ReturnType *string
	Body       *string
	Name       string
}

// Model is the generated program.
type Model struct {
	Functions []Function `json:"functions"`
	MainCode  string     `json:"mainCode"`
}

// Seed returns the placeholder program every session starts from.
func Seed() *Model {
	return &Model{
		Functions: []Function{{
			Name: "App",
			Body: "return (\n    <div>\n      <h1>Hello React</h1>\n    </div>\n  );",
		}},
		MainCode: "ReactDOM.render(<App />, document.getElementById('root'));",
	}
}

// Clone returns a deep copy.
func (m *Model) Clone() *Model {
	return &Model{Functions: slices.Clone(m.Functions), MainCode: m.MainCode}
}

func (m *Model) index(name string) int {
	return slices.IndexFunc(m.Functions, func(f Function) bool { return f.Name == name })
}

// Has reports whether a function with name exists.
func (m *Model) Has(name string) bool {
	return m.index(name) >= 0
}

// Get returns the function named name.
func (m *Model) Get(name string) (Function, bool) {
	if i := m.index(name); i >= 0 {
		return m.Functions[i], true
	}
	return Function{}, false
}

// Create appends fn. The model is unchanged on error.
func (m *Model) Create(fn Function) error {
	if fn.Name == "" {
		return fmt.Errorf("function name is required")
	}
	if m.Has(fn.Name) {
		return fmt.Errorf("%w: %s", ErrDuplicateFunctionName, fn.Name)
	}
	m.Functions = append(m.Functions, fn)
	return nil
}

// Update replaces the supplied fields of the named function.
func (m *Model) Update(p FunctionPatch) error {
	i := m.index(p.Name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, p.Name)
	}
	fn := &m.Functions[i]
	if p.Parameters != nil {
		fn.Parameters = *p.Parameters
	}
	if p.ReturnType != nil {
		fn.ReturnType = *p.ReturnType
	}
	if p.Body != nil {
		fn.Body = *p.Body
	}
	return nil
}

// Delete removes the named function.
func (m *Model) Delete(name string) error {
	i := m.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	m.Functions = slices.Delete(m.Functions, i, i+1)
	return nil
}

// Render produces the program source sent to the rendering surface.
func (m *Model) Render() string {
	parts := make([]string, 0, len(m.Functions))
	for i := range m.Functions {
		parts = append(parts, m.Functions[i].Render())
	}
	return strings.Join(parts, "\n\n") + "\n\n" + m.MainCode
}

// Render produces the source of a single function.
func (f *Function) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s(%s)", f.Name, f.Parameters)
	if f.ReturnType != "" {
		fmt.Fprintf(&sb, ": %s", f.ReturnType)
	}
	fmt.Fprintf(&sb, " {\n  %s\n}", f.Body)
	return sb.String()
}

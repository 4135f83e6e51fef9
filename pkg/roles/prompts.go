package roles

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"pagegen/pkg/pages"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// PromptTemplate names one embedded role preamble.
type PromptTemplate string

const (
	// PlannerPrompt is the planner preamble.
	PlannerPrompt PromptTemplate = "prompts/planner.tmpl"
	// EditorPrompt is the editor preamble.
	EditorPrompt PromptTemplate = "prompts/editor.tmpl"
	// ReviewerPrompt is the reviewer preamble.
	ReviewerPrompt PromptTemplate = "prompts/reviewer.tmpl"
)

// PromptData is available to every preamble.
type PromptData struct {
	Pages      []pages.Page
	ActivePath string
	CanDelete  bool
}

// Renderer renders the embedded role preambles.
type Renderer struct {
	templates map[PromptTemplate]*template.Template
}

// NewRenderer parses all preambles.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[PromptTemplate]*template.Template)}
	for _, name := range []PromptTemplate{PlannerPrompt, EditorPrompt, ReviewerPrompt} {
		content, err := promptFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render renders the named preamble with data.
func (r *Renderer) Render(name PromptTemplate, data *PromptData) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

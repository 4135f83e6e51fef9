package tools

import (
	"context"
	"fmt"

	"pagegen/pkg/utils"
)

// NavigateTool moves the session's active target to a route.
type NavigateTool struct {
	sc SessionContext
}

func navigateDefinition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolNavigate,
		Description: "Navigate to a page route so it becomes the page being worked on. Use \"/\" for the first page.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Route of the page, for example \"/\" or \"/About\""},
			},
			Required: []string{"path"},
		},
	}
}

func (t *NavigateTool) Name() string { return ToolNavigate }

func (t *NavigateTool) Definition() ToolDefinition { return navigateDefinition() }

// Exec sets the active path. The path is not validated here; an unknown
// route fails the next role that needs its reference sketch.
func (t *NavigateTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := utils.GetMapField[string](args, "path")
	if err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	t.sc.State.Navigate(path)
	return &ExecResult{Content: t.sc.State.ActivePagePath}, nil
}

func init() { //nolint:gochecknoinits // tool registration
	Register(navigateDefinition(), func(sc SessionContext) (Tool, error) {
		return &NavigateTool{sc: sc}, nil
	})
}

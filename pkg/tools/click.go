package tools

import (
	"context"
	"fmt"

	"pagegen/pkg/utils"
)

// ClickTool clicks an element on the live rendering surface.
type ClickTool struct {
	sc SessionContext
}

func clickDefinition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolClick,
		Description: "Click an element of the rendered page, for example to follow a link or open a menu.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"selector": {Type: "string", Description: "CSS selector of the element to click"},
			},
			Required: []string{"selector"},
		},
	}
}

func (t *ClickTool) Name() string { return ToolClick }

func (t *ClickTool) Definition() ToolDefinition { return clickDefinition() }

// Exec forwards the click to the sink and reports its verdict.
func (t *ClickTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	selector, err := utils.GetMapField[string](args, "selector")
	if err != nil {
		return nil, fmt.Errorf("click: %w", err)
	}
	verdict, err := t.sc.Sink.Click(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSurface, err)
	}
	if !verdict.OK {
		return &ExecResult{Content: "Click failed: " + verdict.Message, IsError: true}, nil
	}
	return &ExecResult{Content: msgClickSuccess}, nil
}

func init() { //nolint:gochecknoinits // tool registration
	Register(clickDefinition(), func(sc SessionContext) (Tool, error) {
		return &ClickTool{sc: sc}, nil
	})
}

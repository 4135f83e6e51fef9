package tools

import (
	"context"
	"fmt"

	"pagegen/pkg/utils"
)

func pageNameSchema(desc string) InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"name": {Type: "string", Description: desc},
		},
		Required: []string{"name"},
	}
}

// MarkPageTool toggles a page's completed flag.
type MarkPageTool struct {
	sc       SessionContext
	complete bool
}

func markPageCompleteDefinition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolMarkPageComplete,
		Description: "Mark a page as complete once it matches its sketch. Returns the updated page structure.",
		InputSchema: pageNameSchema("Name of the page to mark complete"),
	}
}

func markPageIncompleteDefinition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolMarkPageIncomplete,
		Description: "Mark a page as incomplete so it is worked on again. Returns the updated page structure.",
		InputSchema: pageNameSchema("Name of the page to mark incomplete"),
	}
}

func (t *MarkPageTool) Name() string {
	if t.complete {
		return ToolMarkPageComplete
	}
	return ToolMarkPageIncomplete
}

func (t *MarkPageTool) Definition() ToolDefinition {
	if t.complete {
		return markPageCompleteDefinition()
	}
	return markPageIncompleteDefinition()
}

// Exec updates the page and returns the structure as JSON.
func (t *MarkPageTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	name, err := utils.GetMapField[string](args, "name")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name(), err)
	}
	if t.complete {
		err = t.sc.State.Pages.MarkComplete(name)
	} else {
		err = t.sc.State.Pages.MarkIncomplete(name)
	}
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries the page name
	}
	return &ExecResult{Content: t.sc.State.Pages.JSON()}, nil
}

func init() { //nolint:gochecknoinits // tool registration
	Register(markPageCompleteDefinition(), func(sc SessionContext) (Tool, error) {
		return &MarkPageTool{sc: sc, complete: true}, nil
	})
	Register(markPageIncompleteDefinition(), func(sc SessionContext) (Tool, error) {
		return &MarkPageTool{sc: sc}, nil
	})
}

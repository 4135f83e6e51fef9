package tools

import (
	"context"
	"errors"
	"fmt"

	"pagegen/pkg/codemodel"
	"pagegen/pkg/utils"
)

// ErrSurface wraps transport failures talking to the rendering surface.
var ErrSurface = errors.New("rendering surface unavailable")

func functionSchema(bodyRequired bool) InputSchema {
	required := []string{"name"}
	if bodyRequired {
		required = append(required, "body")
	}
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"name": {
				Type:        "string",
				Description: "Name of the function. Use PascalCase for React components.",
			},
			"parameters": {
				Type:        "string",
				Description: `Parameter list without parentheses, for example "name: string, count: number". Leave empty for none.`,
			},
			"returnType": {
				Type:        "string",
				Description: `Return type without the leading colon, for example "string".`,
			},
			"body": {
				Type:        "string",
				Description: "Statements inside the function braces. The braces are added automatically.",
			},
		},
		Required: required,
	}
}

// publish renders the code model to the sink and turns the verdict into result text.
func publish(ctx context.Context, sc SessionContext, before *codemodel.Model, okMsg string) (*ExecResult, error) {
	verdict, err := sc.Sink.PushCode(ctx, sc.State.Code.Render())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSurface, err)
	}
	if !verdict.OK {
		msg := "Error when compiling: " + verdict.Message
		sc.State.Errors.Append(msg)
		return &ExecResult{Content: msg, IsError: true}, nil
	}
	if stats := codemodel.Diff(before, sc.State.Code); !stats.Empty() {
		okMsg = fmt.Sprintf("%s (%s)", okMsg, stats)
	}
	return &ExecResult{Content: okMsg}, nil
}

// CreateFunctionTool appends a new function to the code model.
type CreateFunctionTool struct {
	sc SessionContext
}

func createFunctionDefinition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCreateFunction,
		Description: "Add a new function to the program. Never reuse the name of an existing function.",
		InputSchema: functionSchema(true),
	}
}

func (t *CreateFunctionTool) Name() string { return ToolCreateFunction }

func (t *CreateFunctionTool) Definition() ToolDefinition { return createFunctionDefinition() }

// Exec creates the function and republishes. A duplicate name leaves the model untouched.
func (t *CreateFunctionTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	name, err := utils.GetMapField[string](args, "name")
	if err != nil {
		return nil, fmt.Errorf("createFunction: %w", err)
	}
	fn := codemodel.Function{
		Name:       name,
		Parameters: utils.GetMapFieldOr(args, "parameters", ""),
		ReturnType: utils.GetMapFieldOr(args, "returnType", ""),
		Body:       utils.GetMapFieldOr(args, "body", ""),
	}

	before := t.sc.State.Code.Clone()
	if err := t.sc.State.Code.Create(fn); err != nil {
		return nil, fmt.Errorf("createFunction: %w", err)
	}
	return publish(ctx, t.sc, before, msgFunctionAdded)
}

// UpdateFunctionTool replaces the supplied fields of an existing function.
type UpdateFunctionTool struct {
	sc SessionContext
}

func updateFunctionDefinition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolUpdateFunction,
		Description: "Replace parts of an existing function. Only the fields you pass are changed.",
		InputSchema: functionSchema(false),
	}
}

func (t *UpdateFunctionTool) Name() string { return ToolUpdateFunction }

func (t *UpdateFunctionTool) Definition() ToolDefinition { return updateFunctionDefinition() }

func (t *UpdateFunctionTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	name, err := utils.GetMapField[string](args, "name")
	if err != nil {
		return nil, fmt.Errorf("updateFunction: %w", err)
	}
	patch := codemodel.FunctionPatch{Name: name}
	if patch.Parameters, err = utils.OptionalString(args, "parameters"); err != nil {
		return nil, fmt.Errorf("updateFunction: %w", err)
	}
	if patch.ReturnType, err = utils.OptionalString(args, "returnType"); err != nil {
		return nil, fmt.Errorf("updateFunction: %w", err)
	}
	if patch.Body, err = utils.OptionalString(args, "body"); err != nil {
		return nil, fmt.Errorf("updateFunction: %w", err)
	}

	before := t.sc.State.Code.Clone()
	if err := t.sc.State.Code.Update(patch); err != nil {
		return nil, fmt.Errorf("updateFunction: %w", err)
	}
	return publish(ctx, t.sc, before, msgCodeUpdated)
}

// DeleteFunctionTool removes a function by name.
type DeleteFunctionTool struct {
	sc SessionContext
}

func deleteFunctionDefinition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolDeleteFunction,
		Description: "Permanently remove a function declaration and its implementation.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"name": {Type: "string", Description: "Name of the function to delete"},
			},
			Required: []string{"name"},
		},
	}
}

func (t *DeleteFunctionTool) Name() string { return ToolDeleteFunction }

func (t *DeleteFunctionTool) Definition() ToolDefinition { return deleteFunctionDefinition() }

func (t *DeleteFunctionTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	name, err := utils.GetMapField[string](args, "name")
	if err != nil {
		return nil, fmt.Errorf("deleteFunction: %w", err)
	}
	before := t.sc.State.Code.Clone()
	if err := t.sc.State.Code.Delete(name); err != nil {
		return nil, fmt.Errorf("deleteFunction: %w", err)
	}
	return publish(ctx, t.sc, before, fmt.Sprintf("Function %s deleted.", name))
}

func init() { //nolint:gochecknoinits // tool registration
	Register(createFunctionDefinition(), func(sc SessionContext) (Tool, error) {
		return &CreateFunctionTool{sc: sc}, nil
	})
	Register(updateFunctionDefinition(), func(sc SessionContext) (Tool, error) {
		return &UpdateFunctionTool{sc: sc}, nil
	})
	Register(deleteFunctionDefinition(), func(sc SessionContext) (Tool, error) {
		return &DeleteFunctionTool{sc: sc}, nil
	})
}

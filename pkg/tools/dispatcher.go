package tools

import (
	"context"
	"errors"
	"fmt"

	"pagegen/pkg/conversation"
	"pagegen/pkg/logx"
	"pagegen/pkg/render"
)

// Dispatcher executes requested operations for one session and turns every
// outcome into a result turn.
type Dispatcher struct {
	provider *ToolProvider
	logger   *logx.Logger
}

// NewDispatcher creates a dispatcher over the provider's tools.
func NewDispatcher(provider *ToolProvider, logger *logx.Logger) *Dispatcher {
	if logger == nil {
		logger = logx.NewLogger("dispatch")
	}
	return &Dispatcher{provider: provider, logger: logger}
}

// Dispatch runs call and returns its result turn. Capability failures are
// reported in the turn. The only errors returned are cancellation of ctx and
// a closed rendering surface, neither of which a role can recover from.
func (d *Dispatcher) Dispatch(ctx context.Context, call *conversation.OperationCall) (conversation.Turn, error) {
	logx.Debug(ctx, "dispatch", "Executing %s(%v)", call.Name, call.Arguments)

	res, err := d.execute(ctx, call)
	if err != nil {
		if ctxErr := ctx.Err(); (ctxErr != nil && errors.Is(err, ctxErr)) || errors.Is(err, render.ErrSinkClosed) {
			return conversation.Turn{}, fmt.Errorf("dispatch %s: %w", call.Name, err)
		}
		d.logger.Warn("⚠️ Operation %s failed: %v", call.Name, err)
		d.provider.sc.State.Errors.Append(err.Error())
		return conversation.NewResult(call.ID, call.Name, err.Error(), true), nil
	}
	if res.IsError {
		d.logger.Info("Operation %s rejected: %s", call.Name, res.Content)
	}
	return conversation.NewResult(call.ID, call.Name, res.Content, res.IsError), nil
}

func (d *Dispatcher) execute(ctx context.Context, call *conversation.OperationCall) (*ExecResult, error) {
	tool, err := d.provider.Get(call.Name)
	if err != nil {
		return nil, err
	}
	def := tool.Definition()
	if err := ValidateArgs(&def, call.Arguments); err != nil {
		return nil, err
	}
	res, err := tool.Exec(ctx, call.Arguments)
	if err != nil {
		return nil, err //nolint:wrapcheck // tool errors already carry their name
	}
	return res, nil
}

// Skipped is the result reported for a request that was not executed.
func Skipped(call *conversation.OperationCall, reason string) conversation.Turn {
	return conversation.NewResult(call.ID, call.Name, fmt.Sprintf("Operation %s was not executed: %s", call.Name, reason), true)
}

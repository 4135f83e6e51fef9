// Package validation rejects reasoning-service responses that break the turn
// protocol so the retry layer can ask again.
package validation

import (
	"context"
	"fmt"
	"strings"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
	"pagegen/pkg/logx"
	"pagegen/pkg/tools"
)

// ResponseValidator checks that a response is exactly one turn: plain text,
// or one call to an offered capability with arguments matching its schema.
type ResponseValidator struct {
	logger *logx.Logger
}

// NewResponseValidator creates a validator.
func NewResponseValidator(logger *logx.Logger) *ResponseValidator {
	if logger == nil {
		logger = logx.NewLogger("response-validator")
	}
	return &ResponseValidator{logger: logger}
}

// Middleware returns the validating middleware. Violations are returned as
// ErrorTypeEmptyResponse or ErrorTypeMalformedResponse, both retryable.
func (v *ResponseValidator) Middleware() llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				resp, err := next.Complete(ctx, req)
				if err != nil {
					return resp, err //nolint:wrapcheck // Middleware passes errors through unchanged
				}
				if vErr := v.Validate(&req, &resp); vErr != nil {
					v.logger.Warn("⚠️ Invalid response from %s: %v", next.GetModelName(), vErr)
					if snippet := strings.TrimSpace(resp.Content); snippet != "" {
						v.logger.Debug("📝 Response content: %s", llmerrors.SanitizePrompt(snippet, 400))
					}
					return llm.CompletionResponse{}, vErr
				}
				return resp, nil
			},
			next.GetModelName,
		)
	}
}

// Validate returns nil for a well-formed response.
func (v *ResponseValidator) Validate(req *llm.CompletionRequest, resp *llm.CompletionResponse) error {
	switch len(resp.ToolCalls) {
	case 0:
		if strings.TrimSpace(resp.Content) == "" {
			return llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "response has no content and no operation")
		}
		return nil
	case 1:
	default:
		return llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse,
			fmt.Sprintf("response requested %d operations, exactly one is allowed", len(resp.ToolCalls)))
	}

	call := resp.ToolCalls[0]
	def := findTool(req.Tools, call.Name)
	if def == nil {
		return llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse,
			fmt.Sprintf("operation %q was not offered", call.Name))
	}
	if err := tools.ValidateArgs(def, call.Parameters); err != nil {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeMalformedResponse, err, err.Error())
	}
	return nil
}

func findTool(defs []tools.ToolDefinition, name string) *tools.ToolDefinition {
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i]
		}
	}
	return nil
}

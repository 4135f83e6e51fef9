package metrics

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
	"pagegen/pkg/logx"
	"pagegen/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor extracts token usage from a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// NewUsageExtractor counts tokens with counter. Images are not counted.
func NewUsageExtractor(counter *utils.TokenCounter) UsageExtractor {
	return func(req llm.CompletionRequest, resp llm.CompletionResponse) (int, int) {
		return counter.CountTokens(PromptText(req)), counter.CountTokens(completionText(resp))
	}
}

// PromptText flattens the textual parts of a request for token counting.
func PromptText(req llm.CompletionRequest) string {
	var sb strings.Builder
	for i := range req.Messages {
		msg := &req.Messages[i]
		sb.WriteString(msg.Content)
		sb.WriteByte('\n')
		for j := range msg.ToolCalls {
			sb.WriteString(msg.ToolCalls[j].Name)
			if args, err := json.Marshal(msg.ToolCalls[j].Parameters); err == nil {
				sb.Write(args)
			}
			sb.WriteByte('\n')
		}
		for j := range msg.ToolResults {
			sb.WriteString(msg.ToolResults[j].Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func completionText(resp llm.CompletionResponse) string {
	text := resp.Content
	for i := range resp.ToolCalls {
		if args, err := json.Marshal(resp.ToolCalls[i].Parameters); err == nil {
			text += "\n" + resp.ToolCalls[i].Name + string(args)
		}
	}
	return text
}

// Middleware records latency, token usage and outcome of every request.
// Session and role labels come from the request context.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if recorder == nil {
		recorder = Nop()
	}
	if usageExtractor == nil {
		usageExtractor = NewUsageExtractor(nil)
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				errorType := ""
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				} else {
					errorType = getErrorType(err)
				}

				sessionID := logx.SessionFrom(ctx)
				role := logx.RoleFrom(ctx)
				recorder.ObserveRequest(model, sessionID, role, promptTokens, completionTokens, err == nil, errorType, duration)

				if logger != nil {
					status := statusSuccess
					if err != nil {
						status = statusError
					}
					logger.Info("🎯 LLM Request: model=%s session=%s role=%s tokens=%d+%d=%d status=%s duration=%dms",
						model, sessionID, role, promptTokens, completionTokens, promptTokens+completionTokens,
						status, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}

// getErrorType labels errors by their classification.
func getErrorType(err error) string {
	return llmerrors.Classify(err).Type.String()
}

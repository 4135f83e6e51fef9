package ratelimit

import (
	"context"
	"time"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/middleware/metrics"
	"pagegen/pkg/logx"
)

// Middleware acquires prompt plus max output tokens from limiter before
// each request and holds a concurrency slot for its duration.
func Middleware(limiter Limiter, estimator TokenEstimator, recorder metrics.Recorder) llm.Middleware {
	if estimator == nil {
		estimator = NewDefaultTokenEstimator(nil)
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				model := next.GetModelName()
				totalTokens := estimator.EstimatePrompt(req) + req.MaxTokens

				start := time.Now()
				release, err := limiter.Acquire(ctx, totalTokens, logx.SessionFrom(ctx))
				recorder.ObserveQueueWait(model, time.Since(start))
				if err != nil {
					recorder.IncThrottle(model, "rate_limit")
					return llm.CompletionResponse{}, err //nolint:wrapcheck // Middleware should pass through errors unchanged
				}
				defer release()

				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}

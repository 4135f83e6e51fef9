package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
	"pagegen/pkg/logx"
)

// ErrorLog receives failure messages. A successful call clears it.
type ErrorLog interface {
	Append(msg string)
	Clear()
}

// RequestBuilder builds the request for a 0-based attempt, so the context
// can shrink as failures accumulate.
type RequestBuilder func(attempt int) llm.CompletionRequest

// Observer is notified after every failed attempt.
type Observer func(attempt int, err error, nextDelay time.Duration)

// Caller wraps a client with the retry policy.
type Caller struct {
	client   llm.LLMClient
	policy   *Policy
	logger   *logx.Logger
	observer Observer
}

// NewCaller creates a caller. A nil policy uses DefaultConfig.
func NewCaller(client llm.LLMClient, policy *Policy, logger *logx.Logger) *Caller {
	if policy == nil {
		policy = NewPolicy(DefaultConfig, nil, nil)
	}
	if logger == nil {
		logger = logx.NewLogger("retry")
	}
	return &Caller{client: client, policy: policy, logger: logger}
}

// WithObserver sets the failure observer.
func (c *Caller) WithObserver(o Observer) *Caller {
	c.observer = o
	return c
}

// Call runs build/Complete until success or the budget is spent. Exhausting
// the budget on retryable failures returns an ErrorTypeServiceUnavailable
// error; non-retryable failures are returned as soon as they occur.
func (c *Caller) Call(ctx context.Context, errs ErrorLog, build RequestBuilder) (llm.CompletionResponse, error) {
	var lastErr error
	maxAttempts := c.policy.Config.MaxAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if delay := c.policy.CalculateDelay(attempt); delay > 0 {
			if err := c.policy.Sleep(ctx, delay); err != nil {
				return llm.CompletionResponse{}, err
			}
		}

		resp, err := c.client.Complete(ctx, build(attempt-1))
		if err == nil {
			if errs != nil {
				errs.Clear()
			}
			if attempt > 1 {
				c.logger.Info("✅ Reasoning call succeeded on attempt %d", attempt)
			}
			return resp, nil
		}

		lastErr = err
		if errs != nil {
			errs.Append(err.Error())
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return llm.CompletionResponse{}, fmt.Errorf("reasoning call cancelled: %w", err)
		}
		if !c.policy.ShouldRetry(err) {
			c.logger.Error("❌ Reasoning call failed with non-retryable error: %v", err)
			return llm.CompletionResponse{}, err
		}

		next := time.Duration(0)
		if attempt < maxAttempts {
			next = c.policy.CalculateDelay(attempt + 1)
		}
		c.logger.Warn("🔄 Reasoning call attempt %d/%d failed (%s), next delay %s",
			attempt, maxAttempts, llmerrors.Classify(err).Type, next)
		if c.observer != nil {
			c.observer(attempt, err, next)
		}
	}

	return llm.CompletionResponse{}, llmerrors.NewServiceUnavailableError(lastErr, maxAttempts)
}

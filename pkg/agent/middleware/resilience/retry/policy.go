// Package retry bounds reasoning-service calls with a fixed attempt budget
// and quadratic backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pagegen/pkg/agent/llmerrors"
)

// Config defines configuration for retry behavior.
type Config struct {
	MaxAttempts int           `json:"max_attempts"` // Maximum number of attempts (including initial)
	Unit        time.Duration `json:"unit"`         // Backoff unit; delay before attempt n+1 is (n²-1)·Unit
}

// DefaultConfig is five attempts with a one second unit: 0s, 3s, 8s, 15s.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	MaxAttempts: 5,
	Unit:        time.Second,
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// ShouldRetry retries every error class except auth, bad prompt, exhausted
// budget and cancellation of the caller's context.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return llmerrors.Classify(err).IsRetryable()
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the real-time Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Policy encapsulates retry configuration and logic.
//
//nolint:govet // Simple struct, logical grouping preferred
type Policy struct {
	Config     Config
	Classifier Classifier
	Sleep      Sleeper
}

// NewPolicy creates a policy. Nil classifier and sleeper fall back to the defaults.
func NewPolicy(config Config, classifier Classifier, sleep Sleeper) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	if sleep == nil {
		sleep = ContextSleep
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig.MaxAttempts
	}
	return &Policy{Config: config, Classifier: classifier, Sleep: sleep}
}

// CalculateDelay returns the wait before the given 1-based attempt. After n
// failures the wait is (n²-1) units.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	n := attempt - 1
	return time.Duration(n*n-1) * p.Config.Unit
}

// ShouldRetry determines if an error should be retried based on the configured classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}

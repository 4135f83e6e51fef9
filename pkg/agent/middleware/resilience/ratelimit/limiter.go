// Package ratelimit throttles reasoning requests shared by every session in
// the process: a token bucket plus a concurrency semaphore.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/middleware/metrics"
	"pagegen/pkg/logx"
	"pagegen/pkg/utils"
)

// BufferFactor keeps the bucket below the provider's advertised limit to
// absorb token estimation error.
const BufferFactor = 0.9

const (
	refillInterval = 6 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// Limiter defines the interface for rate limiting implementations.
type Limiter interface {
	// Acquire takes tokens and a concurrency slot, blocking until both are
	// available or ctx ends. The returned release must be called.
	Acquire(ctx context.Context, tokens int, sessionID string) (release func(), err error)

	// GetStats returns current limiter statistics.
	GetStats() LimiterStats
}

// TokenEstimator estimates the number of tokens needed for a request.
type TokenEstimator interface {
	EstimatePrompt(req llm.CompletionRequest) int
}

// Config defines rate limiting configuration.
type Config struct {
	TokensPerMinute int           `json:"tokens_per_minute" yaml:"tokens_per_minute"`
	MaxConcurrency  int           `json:"max_concurrency"   yaml:"max_concurrency"`
	MaxWait         time.Duration `json:"max_wait"          yaml:"max_wait"`
}

// DefaultTokenEstimator counts prompt text with tiktoken.
type DefaultTokenEstimator struct {
	counter *utils.TokenCounter
}

// NewDefaultTokenEstimator creates an estimator. counter may be nil.
func NewDefaultTokenEstimator(counter *utils.TokenCounter) TokenEstimator {
	return &DefaultTokenEstimator{counter: counter}
}

// EstimatePrompt estimates prompt tokens.
//
//nolint:gocritic // request passed by value to match the client interface
func (e *DefaultTokenEstimator) EstimatePrompt(req llm.CompletionRequest) int {
	return e.counter.CountTokens(metrics.PromptText(req))
}

// acquisition tracks a single concurrency slot.
type acquisition struct {
	timestamp time.Time
	sessionID string
}

// TokenBucketLimiter implements Limiter.
//
//nolint:govet // fieldalignment: Struct layout optimized for readability over memory
type TokenBucketLimiter struct {
	mu sync.Mutex

	availableTokens int
	tokensPerRefill int
	maxCapacity     int
	unlimitedTokens bool

	activeRequests int
	maxConcurrency int
	acquisitions   []*acquisition
	maxWait        time.Duration

	tokenLimitHits  int64
	concurrencyHits int64
}

// LimiterStats represents current rate limiter statistics.
type LimiterStats struct {
	AvailableTokens int   `json:"available_tokens"`
	MaxCapacity     int   `json:"max_capacity"`
	ActiveRequests  int   `json:"active_requests"`
	MaxConcurrency  int   `json:"max_concurrency"`
	TokenLimitHits  int64 `json:"token_limit_hits"`
	ConcurrencyHits int64 `json:"concurrency_hits"`
}

// NewTokenBucketLimiter creates a limiter and starts its refill timer, which
// stops when ctx ends. TokensPerMinute <= 0 disables the token bucket and
// MaxConcurrency <= 0 means one request at a time.
func NewTokenBucketLimiter(ctx context.Context, cfg Config) *TokenBucketLimiter {
	l := newLimiter(cfg)
	if !l.unlimitedTokens {
		l.startRefillTimer(ctx)
	}
	return l
}

func newLimiter(cfg Config) *TokenBucketLimiter {
	maxCapacity := int(float64(cfg.TokensPerMinute) * BufferFactor)
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 5 * time.Minute
	}
	return &TokenBucketLimiter{
		availableTokens: maxCapacity,
		tokensPerRefill: cfg.TokensPerMinute / 10,
		maxCapacity:     maxCapacity,
		unlimitedTokens: cfg.TokensPerMinute <= 0,
		maxConcurrency:  concurrency,
		acquisitions:    make([]*acquisition, 0),
		maxWait:         maxWait,
	}
}

// Acquire atomically acquires both tokens and a concurrency slot. A request
// larger than the whole bucket is clamped to the bucket size so it can
// eventually run.
func (l *TokenBucketLimiter) Acquire(ctx context.Context, tokens int, sessionID string) (func(), error) {
	firstAttempt := true
	startTime := time.Now()

	for {
		l.mu.Lock()

		need := tokens
		if need > l.maxCapacity {
			need = l.maxCapacity
		}
		hasTokens := l.unlimitedTokens || l.availableTokens >= need
		hasSlot := l.activeRequests < l.maxConcurrency

		if hasTokens && hasSlot {
			if !l.unlimitedTokens {
				l.availableTokens -= need
			}
			l.activeRequests++
			acq := &acquisition{timestamp: time.Now(), sessionID: sessionID}
			l.acquisitions = append(l.acquisitions, acq)
			l.mu.Unlock()

			var once sync.Once
			return func() { once.Do(func() { l.release(acq) }) }, nil
		}

		if elapsed := time.Since(startTime); elapsed > l.maxWait {
			l.mu.Unlock()
			return nil, fmt.Errorf("rate limit acquisition timeout after %v (requested %d tokens, max capacity %d, session: %s)",
				elapsed.Round(time.Second), tokens, l.maxCapacity, sessionID)
		}

		// Only log the first miss
		if firstAttempt {
			if !hasTokens {
				l.tokenLimitHits++
				logx.Infof("RATELIMIT: token limit hit, waiting for refill (need %d, have %d, session: %s)",
					need, l.availableTokens, sessionID)
			}
			if !hasSlot {
				l.concurrencyHits++
				logx.Infof("RATELIMIT: concurrency limit hit, waiting for slot (active: %d/%d, session: %s)",
					l.activeRequests, l.maxConcurrency, sessionID)
			}
			firstAttempt = false
		}

		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err() //nolint:wrapcheck // Context error propagated as-is
		case <-time.After(pollInterval):
		}
	}
}

// release returns a concurrency slot. Tokens are not refunded.
func (l *TokenBucketLimiter) release(acq *acquisition) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, a := range l.acquisitions {
		if a == acq {
			l.acquisitions = append(l.acquisitions[:i], l.acquisitions[i+1:]...)
			break
		}
	}
	l.activeRequests--
}

func (l *TokenBucketLimiter) startRefillTimer(ctx context.Context) {
	ticker := time.NewTicker(refillInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.refill()
			}
		}
	}()
}

// refill adds tokens to the bucket up to max capacity.
func (l *TokenBucketLimiter) refill() {
	l.mu.Lock()
	defer l.mu.Unlock()

	oldTokens := l.availableTokens
	l.availableTokens = min(l.availableTokens+l.tokensPerRefill, l.maxCapacity)
	if l.availableTokens != oldTokens {
		logx.Debug(context.Background(), "ratelimit", "bucket refilled: %d -> %d tokens (max: %d)",
			oldTokens, l.availableTokens, l.maxCapacity)
	}
}

// GetStats returns current limiter statistics.
func (l *TokenBucketLimiter) GetStats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return LimiterStats{
		AvailableTokens: l.availableTokens,
		MaxCapacity:     l.maxCapacity,
		ActiveRequests:  l.activeRequests,
		MaxConcurrency:  l.maxConcurrency,
		TokenLimitHits:  l.tokenLimitHits,
		ConcurrencyHits: l.concurrencyHits,
	}
}

// Package agent builds reasoning-service clients wrapped in the middleware chain.
package agent

import (
	"fmt"
	"sync"

	"pagegen/pkg/agent/internal/llmimpl/anthropic"
	"pagegen/pkg/agent/internal/llmimpl/google"
	"pagegen/pkg/agent/internal/llmimpl/ollama"
	"pagegen/pkg/agent/internal/llmimpl/openaiofficial"
	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/middleware/metrics"
	"pagegen/pkg/agent/middleware/resilience/ratelimit"
	"pagegen/pkg/agent/middleware/resilience/timeout"
	"pagegen/pkg/agent/middleware/validation"
	"pagegen/pkg/config"
	"pagegen/pkg/logx"
	"pagegen/pkg/utils"
)

// RawClientFunc creates an unwrapped provider client.
type RawClientFunc func(provider, model, credential string) (llm.LLMClient, error)

// LLMClientFactory creates clients with the middleware chain. Clients are
// cached per model and safe to share between sessions.
//
//nolint:govet // fieldalignment: logical grouping preferred
type LLMClientFactory struct {
	cfg       *config.Config
	recorder  metrics.Recorder
	limiter   ratelimit.Limiter
	estimator ratelimit.TokenEstimator
	usage     metrics.UsageExtractor
	validator *validation.ResponseValidator
	logger    *logx.Logger
	newRaw    RawClientFunc

	mu      sync.Mutex
	clients map[string]llm.LLMClient
}

// Option customizes the factory.
type Option func(*LLMClientFactory)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(f *LLMClientFactory) { f.recorder = r }
}

// WithLimiter sets the process-wide limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(f *LLMClientFactory) { f.limiter = l }
}

// WithRawClientFunc replaces provider client construction, for tests.
func WithRawClientFunc(fn RawClientFunc) Option {
	return func(f *LLMClientFactory) { f.newRaw = fn }
}

// WithLogger sets the logger used by the metrics middleware.
func WithLogger(l *logx.Logger) Option {
	return func(f *LLMClientFactory) { f.logger = l }
}

// NewLLMClientFactory creates a factory for cfg.
func NewLLMClientFactory(cfg *config.Config, opts ...Option) (*LLMClientFactory, error) {
	counter, err := utils.NewTokenCounter(cfg.Reasoning.Model)
	if err != nil {
		logx.Warnf("token counter unavailable, estimating by length: %v", err)
	}

	f := &LLMClientFactory{
		cfg:       cfg,
		recorder:  metrics.Nop(),
		estimator: ratelimit.NewDefaultTokenEstimator(counter),
		usage:     metrics.NewUsageExtractor(counter),
		logger:    logx.NewLogger("llm"),
		newRaw:    newRawClient,
		clients:   make(map[string]llm.LLMClient),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.validator = validation.NewResponseValidator(f.logger.With("validation"))
	return f, nil
}

// ClientFor returns the client serving role.
func (f *LLMClientFactory) ClientFor(role string) (llm.LLMClient, error) {
	return f.Client(f.cfg.ModelFor(role))
}

// Client returns the wrapped client for model.
func (f *LLMClientFactory) Client(model string) (llm.LLMClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[model]; ok {
		return client, nil
	}

	provider, err := f.cfg.ProviderFor(model)
	if err != nil {
		return nil, fmt.Errorf("failed to determine provider for model %s: %w", model, err)
	}
	credential, err := f.cfg.APIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}
	raw, err := f.newRaw(provider, model, credential)
	if err != nil {
		return nil, err
	}

	// Metrics -> Validation -> RateLimit -> Timeout -> RawClient.
	// Retries happen above the chain so each attempt can rebuild its request.
	middlewares := []llm.Middleware{
		metrics.Middleware(f.recorder, f.usage, f.logger),
		f.validator.Middleware(),
	}
	if f.limiter != nil {
		middlewares = append(middlewares, ratelimit.Middleware(f.limiter, f.estimator, f.recorder))
	}
	middlewares = append(middlewares, timeout.Middleware(f.cfg.Reasoning.Timeout.D()))

	client := llm.Chain(raw, middlewares...)
	f.clients[model] = client
	return client, nil
}

func newRawClient(provider, model, credential string) (llm.LLMClient, error) {
	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(credential, model), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(credential, model), nil
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(credential, model), nil
	case config.ProviderOllama:
		return ollama.NewOllamaClientWithModel(credential, config.OllamaModelName(model)), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

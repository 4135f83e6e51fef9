// Package config loads, defaults and validates pagegen configuration and
// resolves provider credentials from the encrypted secrets file or the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Environment variables holding credentials.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_GENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
	EnvPassword        = "PAGEGEN_PASSWORD"
)

// Default models per provider.
const (
	ModelClaudeSonnet = "claude-sonnet-4-5"
	ModelGPT          = "gpt-5"
	ModelGemini       = "gemini-2.5-pro"
	ModelOllama       = "llama3.2-vision"
)

// Workflow and reasoning defaults.
const (
	DefaultCycleLimit      = 10
	DefaultOpCallLimit     = 25
	DefaultNudgeThreshold  = 8
	DefaultMaxSteps        = 1000
	DefaultMaxTokens       = 4096
	DefaultTemperature     = 0.3
	DefaultRequestTimeout  = 3 * time.Minute
	DefaultRetryAttempts   = 5
	DefaultRetryUnit       = time.Second
	DefaultMaxTurns        = 40
	DefaultMinTurns        = 6
	DefaultRetryShrink     = 6
	DefaultContextTokens   = 100000
	DefaultErrorLogSize    = 100
	DefaultMaxConcurrency  = 4
	DefaultMetricsListen   = ":9464"
	DefaultSecretsFileName = "secrets.json.enc"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration that reads "30s"-style strings or integer
// nanoseconds from JSON and YAML.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String()) //nolint:wrapcheck // trivial marshal
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer: %w", err)
	}
	*d = Duration(n)
	return nil
}

// UnmarshalYAML accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// RoleModels optionally overrides the model per role.
type RoleModels struct {
	Planner  string `json:"planner,omitempty"  yaml:"planner,omitempty"`
	Editor   string `json:"editor,omitempty"   yaml:"editor,omitempty"`
	Reviewer string `json:"reviewer,omitempty" yaml:"reviewer,omitempty"`
}

// ReasoningConfig selects and tunes the reasoning service.
//
//nolint:govet // fieldalignment: logical grouping preferred
type ReasoningConfig struct {
	Provider    string     `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model       string     `json:"model"              yaml:"model"`
	Roles       RoleModels `json:"roles,omitempty"    yaml:"roles,omitempty"`
	MaxTokens   int        `json:"max_tokens"         yaml:"max_tokens"`
	Temperature float32    `json:"temperature"        yaml:"temperature"`
	Timeout     Duration   `json:"timeout"            yaml:"timeout"`
	OllamaHost  string     `json:"ollama_host,omitempty" yaml:"ollama_host,omitempty"`
}

// WorkflowConfig bounds a session. MaxSteps left at zero takes the default;
// a negative value disables the step limit.
type WorkflowConfig struct {
	CycleLimit      int  `json:"cycle_limit"       yaml:"cycle_limit"`
	OpCallLimit     int  `json:"op_call_limit"     yaml:"op_call_limit"`
	NudgeThreshold  int  `json:"nudge_threshold"   yaml:"nudge_threshold"`
	MaxSteps        int  `json:"max_steps"         yaml:"max_steps"`
	ErrorLogSize    int  `json:"error_log_size"    yaml:"error_log_size"`
	EditorCanDelete bool `json:"editor_can_delete" yaml:"editor_can_delete"`
}

// RetryConfig controls the retrying caller.
type RetryConfig struct {
	MaxAttempts int      `json:"max_attempts" yaml:"max_attempts"`
	Unit        Duration `json:"unit"         yaml:"unit"`
}

// ContextConfig controls the context window selector.
type ContextConfig struct {
	MaxTurns    int `json:"max_turns"    yaml:"max_turns"`
	MinTurns    int `json:"min_turns"    yaml:"min_turns"`
	RetryShrink int `json:"retry_shrink" yaml:"retry_shrink"`
	MaxTokens   int `json:"max_tokens"   yaml:"max_tokens"`
}

// LimiterConfig bounds reasoning traffic shared by all sessions in the process.
type LimiterConfig struct {
	TokensPerMinute int      `json:"tokens_per_minute" yaml:"tokens_per_minute"`
	MaxConcurrency  int      `json:"max_concurrency"   yaml:"max_concurrency"`
	MaxWait         Duration `json:"max_wait"          yaml:"max_wait"`
}

// PersistenceConfig enables the sqlite transcript store and the JSONL event
// log. An empty value disables each.
type PersistenceConfig struct {
	SQLitePath  string `json:"sqlite_path"   yaml:"sqlite_path"`
	EventLogDir string `json:"event_log_dir" yaml:"event_log_dir"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled"        yaml:"enabled"`
	ListenAddr    string `json:"listen_addr"    yaml:"listen_addr"`
	PrometheusURL string `json:"prometheus_url" yaml:"prometheus_url"`
}

// Config is the complete pagegen configuration.
//
//nolint:govet // fieldalignment: logical grouping preferred
type Config struct {
	Reasoning   ReasoningConfig   `json:"reasoning"   yaml:"reasoning"`
	Workflow    WorkflowConfig    `json:"workflow"    yaml:"workflow"`
	Retry       RetryConfig       `json:"retry"       yaml:"retry"`
	Context     ContextConfig     `json:"context"     yaml:"context"`
	Limiter     LimiterConfig     `json:"limiter"     yaml:"limiter"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
	Metrics     MetricsConfig     `json:"metrics"     yaml:"metrics"`
	SecretsDir  string            `json:"secrets_dir" yaml:"secrets_dir"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values. Booleans keep their zero value.
func applyDefaults(cfg *Config) {
	r := &cfg.Reasoning
	if r.Model == "" {
		r.Model = defaultModel(r.Provider)
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
	if r.Timeout == 0 {
		r.Timeout = Duration(DefaultRequestTimeout)
	}

	w := &cfg.Workflow
	if w.CycleLimit == 0 {
		w.CycleLimit = DefaultCycleLimit
	}
	if w.OpCallLimit == 0 {
		w.OpCallLimit = DefaultOpCallLimit
	}
	if w.NudgeThreshold == 0 {
		w.NudgeThreshold = DefaultNudgeThreshold
	}
	if w.MaxSteps == 0 {
		w.MaxSteps = DefaultMaxSteps
	}
	if w.ErrorLogSize == 0 {
		w.ErrorLogSize = DefaultErrorLogSize
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = DefaultRetryAttempts
	}
	if cfg.Retry.Unit == 0 {
		cfg.Retry.Unit = Duration(DefaultRetryUnit)
	}

	c := &cfg.Context
	if c.MaxTurns == 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.MinTurns == 0 {
		c.MinTurns = DefaultMinTurns
	}
	if c.RetryShrink == 0 {
		c.RetryShrink = DefaultRetryShrink
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultContextTokens
	}

	if cfg.Limiter.MaxConcurrency == 0 {
		cfg.Limiter.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = DefaultMetricsListen
	}
	if cfg.SecretsDir == "" {
		cfg.SecretsDir = DefaultSecretsDir()
	}
}

// DefaultSecretsDir is ~/.pagegen, or .pagegen when the home directory is unknown.
func DefaultSecretsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagegen"
	}
	return home + string(os.PathSeparator) + ".pagegen"
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return ModelGPT
	case ProviderGoogle:
		return ModelGemini
	case ProviderOllama:
		return ModelOllama
	default:
		return ModelClaudeSonnet
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.ProviderFor(c.Reasoning.Model); err != nil {
		return fmt.Errorf("%w: reasoning.model: %w", ErrInvalidConfig, err)
	}
	for role, model := range map[string]string{
		"planner": c.Reasoning.Roles.Planner, "editor": c.Reasoning.Roles.Editor, "reviewer": c.Reasoning.Roles.Reviewer,
	} {
		if model == "" {
			continue
		}
		if _, err := c.ProviderFor(model); err != nil {
			return fmt.Errorf("%w: reasoning.roles.%s: %w", ErrInvalidConfig, role, err)
		}
	}

	checks := []struct {
		name string
		ok   bool
	}{
		{"reasoning.max_tokens must be positive", c.Reasoning.MaxTokens > 0},
		{"reasoning.temperature must be between 0 and 2", c.Reasoning.Temperature >= 0 && c.Reasoning.Temperature <= 2},
		{"reasoning.timeout must not be negative", c.Reasoning.Timeout >= 0},
		{"workflow.cycle_limit must be positive", c.Workflow.CycleLimit > 0},
		{"workflow.op_call_limit must be positive", c.Workflow.OpCallLimit > 0},
		{"workflow.nudge_threshold must not be negative", c.Workflow.NudgeThreshold >= 0},
		{"retry.max_attempts must be positive", c.Retry.MaxAttempts > 0},
		{"retry.unit must not be negative", c.Retry.Unit >= 0},
		{"context.min_turns must be positive", c.Context.MinTurns > 0},
		{"context.max_turns must not be smaller than context.min_turns", c.Context.MaxTurns >= c.Context.MinTurns},
		{"context.retry_shrink must not be negative", c.Context.RetryShrink >= 0},
		{"limiter.max_concurrency must be positive", c.Limiter.MaxConcurrency > 0},
		{"limiter.tokens_per_minute must not be negative", c.Limiter.TokensPerMinute >= 0},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, check.name)
		}
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("%w: metrics.listen_addr is required when metrics are enabled", ErrInvalidConfig)
	}
	return nil
}

// StepLimit returns the engine step limit, zero meaning unlimited.
func (w *WorkflowConfig) StepLimit() int {
	if w.MaxSteps < 0 {
		return 0
	}
	return w.MaxSteps
}

// ModelFor returns the model configured for role, falling back to reasoning.model.
func (c *Config) ModelFor(role string) string {
	var model string
	switch role {
	case "planner":
		model = c.Reasoning.Roles.Planner
	case "editor":
		model = c.Reasoning.Roles.Editor
	case "reviewer":
		model = c.Reasoning.Roles.Reviewer
	}
	if model == "" {
		return c.Reasoning.Model
	}
	return model
}

// providerPatterns infers providers from model names.
//
//nolint:gochecknoglobals // Intentional global for inference rules
var providerPatterns = []struct {
	prefix   string
	provider string
}{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"llama", ProviderOllama},
	{"llava", ProviderOllama},
	{"qwen", ProviderOllama},
	{"gemma", ProviderOllama},
	{"mistral", ProviderOllama},
	{"ollama:", ProviderOllama},
}

// ProviderFor returns the provider serving model. An explicit
// reasoning.provider applies to the default model only.
func (c *Config) ProviderFor(model string) (string, error) {
	if c.Reasoning.Provider != "" && model == c.Reasoning.Model {
		switch c.Reasoning.Provider {
		case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOllama:
			return c.Reasoning.Provider, nil
		default:
			return "", fmt.Errorf("unknown provider %q", c.Reasoning.Provider)
		}
	}
	return ModelProvider(model)
}

// ModelProvider infers the provider from a model name.
func ModelProvider(model string) (string, error) {
	for _, p := range providerPatterns {
		if strings.HasPrefix(model, p.prefix) {
			return p.provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no provider pattern matches", model)
}

// OllamaModelName strips the explicit "ollama:" prefix.
func OllamaModelName(model string) string {
	return strings.TrimPrefix(model, "ollama:")
}

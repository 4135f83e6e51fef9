package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModelClaudeSonnet, cfg.Reasoning.Model)
	assert.Equal(t, DefaultRetryAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.Unit.D())
	assert.Equal(t, DefaultCycleLimit, cfg.Workflow.CycleLimit)
}

func TestLoadYAMLWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_PAGEGEN_MODEL", "gpt-4o")
	path := writeFile(t, "pagegen.yaml", `
reasoning:
  model: ${TEST_PAGEGEN_MODEL}
  timeout: 45s
workflow:
  cycle_limit: 3
  editor_can_delete: true
retry:
  unit: 10ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Reasoning.Model)
	assert.Equal(t, 45*time.Second, cfg.Reasoning.Timeout.D())
	assert.Equal(t, 3, cfg.Workflow.CycleLimit)
	assert.True(t, cfg.Workflow.EditorCanDelete)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.Unit.D())

	provider, err := cfg.ProviderFor(cfg.Reasoning.Model)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, provider)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "pagegen.json", `{"reasoning": {"model": "gemini-2.5-flash", "timeout": "1m"}, "context": {"max_turns": 12, "min_turns": 4}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Reasoning.Timeout.D())
	assert.Equal(t, 12, cfg.Context.MaxTurns)
	assert.Equal(t, 4, cfg.Context.MinTurns)
}

func TestStepLimit(t *testing.T) {
	cfg, err := Load(writeFile(t, "pagegen.yaml", "workflow:\n  max_steps: -1\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Workflow.StepLimit(), "negative disables the limit")

	cfg, err = Load(writeFile(t, "pagegen.yaml", "workflow:\n  max_steps: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSteps, cfg.Workflow.StepLimit())

	cfg, err = Load(writeFile(t, "pagegen.yaml", "workflow:\n  max_steps: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Workflow.StepLimit())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PAGEGEN_WORKFLOW_OP_CALL_LIMIT", "7")
	t.Setenv("PAGEGEN_RETRY_UNIT", "250ms")
	t.Setenv("PAGEGEN_METRICS_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Workflow.OpCallLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Unit.D())
	assert.True(t, cfg.Metrics.Enabled)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown model", func(c *Config) { c.Reasoning.Model = "mystery-1" }},
		{"unknown provider", func(c *Config) { c.Reasoning.Provider = "acme" }},
		{"max below min turns", func(c *Config) { c.Context.MaxTurns = 2 }},
		{"negative op limit", func(c *Config) { c.Workflow.OpCallLimit = -1 }},
		{"bad role model", func(c *Config) { c.Reasoning.Roles.Editor = "mystery-2" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestModelForFallsBack(t *testing.T) {
	cfg := Default()
	cfg.Reasoning.Roles.Editor = "claude-opus-4-1"
	assert.Equal(t, "claude-opus-4-1", cfg.ModelFor("editor"))
	assert.Equal(t, ModelClaudeSonnet, cfg.ModelFor("planner"))
}

func TestExplicitProvider(t *testing.T) {
	cfg := Default()
	cfg.Reasoning.Provider = ProviderOllama
	cfg.Reasoning.Model = "my-local-vision"
	provider, err := cfg.ProviderFor(cfg.Reasoning.Model)
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, provider)
	assert.Equal(t, "phi4", OllamaModelName("ollama:phi4"))
}

package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
	"pagegen/pkg/logx"
)

type fakeClient struct {
	resp llm.CompletionResponse
	err  error
}

func (f *fakeClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	return f.resp, f.err
}

func (f *fakeClient) GetModelName() string { return "fake-model" }

func fixedUsage(_ llm.CompletionRequest, _ llm.CompletionResponse) (int, int) { return 10, 4 }

func roleCtx(session, role string) context.Context {
	return logx.WithRole(logx.WithSession(context.Background(), session), role)
}

func TestPrometheusRecorderCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	ok := llm.Chain(&fakeClient{resp: llm.CompletionResponse{Content: "hi"}}, Middleware(rec, fixedUsage, nil))
	_, err := ok.Complete(roleCtx("s1", "planner"), llm.CompletionRequest{})
	require.NoError(t, err)

	failing := llm.Chain(&fakeClient{err: llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "slow down")},
		Middleware(rec, fixedUsage, nil))
	_, err = failing.Complete(roleCtx("s1", "editor"), llm.CompletionRequest{})
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("fake-model", "s1", "planner", "success", "")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("fake-model", "s1", "editor", "error", "rate_limit")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("fake-model", "s1", "planner", "prompt")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("fake-model", "s1", "planner", "completion")), 0)

	rec.IncThrottle("fake-model", "rate_limit")
	assert.InDelta(t, 1, testutil.ToFloat64(rec.throttleTotal.WithLabelValues("fake-model", "rate_limit")), 0)
}

func TestInternalRecorderAggregatesPerSession(t *testing.T) {
	rec := NewInternalRecorder()
	client := llm.Chain(&fakeClient{resp: llm.CompletionResponse{Content: "hi"}}, Middleware(rec, fixedUsage, nil))

	for range 3 {
		_, err := client.Complete(roleCtx("s1", "editor"), llm.CompletionRequest{})
		require.NoError(t, err)
	}
	_, err := client.Complete(roleCtx("s2", "planner"), llm.CompletionRequest{})
	require.NoError(t, err)

	m, ok := rec.Session("s1")
	require.True(t, ok)
	assert.Equal(t, int64(3), m.RequestCount)
	assert.Equal(t, int64(42), m.TotalTokens)
	assert.Equal(t, int64(3), m.ByRole["editor"])

	_, ok = rec.Session("missing")
	assert.False(t, ok)
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewInternalRecorder(), NewInternalRecorder()
	client := llm.Chain(&fakeClient{err: errors.New("boom")}, Middleware(Multi(a, b), fixedUsage, nil))
	_, _ = client.Complete(roleCtx("s1", "reviewer"), llm.CompletionRequest{})

	for _, rec := range []*InternalRecorder{a, b} {
		m, ok := rec.Session("s1")
		require.True(t, ok)
		assert.Equal(t, int64(1), m.FailedCount)
		assert.Zero(t, m.TotalTokens)
	}
}

func TestPromptTextIncludesOperations(t *testing.T) {
	req := llm.CompletionRequest{Messages: []llm.CompletionMessage{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "1", Name: "navigate", Parameters: map[string]any{"path": "/"}}}},
		{Role: llm.RoleUser, ToolResults: []llm.ToolResult{{ToolCallID: "1", Content: "/About"}}},
	}}
	text := PromptText(req)
	assert.Contains(t, text, "navigate")
	assert.Contains(t, text, "/About")
}

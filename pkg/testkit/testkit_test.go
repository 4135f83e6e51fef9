package testkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/pkg/agent/llm"
)

func TestScriptedClientReplaysThenResponds(t *testing.T) {
	boom := errors.New("boom")
	c := NewScriptedClient(Fail(boom), Text("hello")).
		WithResponder(func(llm.CompletionRequest) (llm.CompletionResponse, error) {
			return CallResponse("c1", "navigate", map[string]any{"path": "/"}), nil
		})
	ctx := context.Background()

	_, err := c.Complete(ctx, llm.CompletionRequest{})
	require.ErrorIs(t, err, boom)

	resp, err := c.Complete(ctx, llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)

	resp, err = c.Complete(ctx, llm.CompletionRequest{})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "navigate", resp.ToolCalls[0].Name)
	assert.Equal(t, 3, c.Calls())
}

func TestScriptedClientExhausted(t *testing.T) {
	c := NewScriptedClient()
	_, err := c.Complete(context.Background(), llm.CompletionRequest{})
	require.ErrorIs(t, err, ErrScriptExhausted)
}

func TestRecordingSinkAndSleeper(t *testing.T) {
	sink := &RecordingSink{}
	v, err := sink.PushCode(context.Background(), "code")
	require.NoError(t, err)
	assert.True(t, v.OK)

	sink.Reject = "syntax error"
	v, err = sink.PushCode(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, []string{"code", "bad"}, sink.Pushes())

	var s Sleeper
	require.NoError(t, s.Sleep(context.Background(), time.Second))
	require.NoError(t, s.Sleep(context.Background(), 2*time.Second))
	assert.Equal(t, 3*time.Second, s.Total())
}

func TestPagesBuildsInputs(t *testing.T) {
	in := Pages("Home", "About")
	require.Len(t, in, 2)
	assert.Equal(t, "About", in[1].Name)
	assert.Equal(t, "image/png", in[1].Reference.MediaType)
}

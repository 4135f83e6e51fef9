package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSinkRoundTrip(t *testing.T) {
	sink := NewChannelSink(0)
	defer sink.Close()

	go func() {
		for req := range sink.Requests() {
			if req.Kind == RequestPushCode {
				req.Reply <- Accepted()
			} else {
				req.Reply <- Rejected("no element " + req.Payload)
			}
		}
	}()

	v, err := sink.PushCode(context.Background(), "function App() {}")
	require.NoError(t, err)
	assert.True(t, v.OK)

	v, err = sink.Click(context.Background(), "#missing")
	require.NoError(t, err)
	assert.False(t, v.OK)
	assert.Equal(t, "no element #missing", v.Message)
}

func TestChannelSinkHonoursContext(t *testing.T) {
	sink := NewChannelSink(1)
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Nobody answers: the request is buffered but never acknowledged.
	_, err := sink.PushCode(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestChannelSinkClosed(t *testing.T) {
	sink := NewChannelSink(0)
	sink.Close()
	sink.Close()

	_, err := sink.Click(context.Background(), "#a")
	assert.True(t, errors.Is(err, ErrSinkClosed))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "App.jsx")
	sink := NewFileSink(path)

	v, err := sink.PushCode(context.Background(), "code")
	require.NoError(t, err)
	assert.True(t, v.OK)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "code", string(data))

	v, err = sink.Click(context.Background(), "#btn")
	require.NoError(t, err)
	assert.False(t, v.OK)
}

package eventlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/pkg/conversation"
	"pagegen/pkg/session"
	"pagegen/pkg/testkit"
	"pagegen/pkg/workflow"
)

func TestNewWriterCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "events")
	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	current := w.CurrentLogFile()
	require.NotEmpty(t, current)
	_, err = os.Stat(current)
	require.NoError(t, err)
}

func TestWriterRecordsSession(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	st, err := session.New(testkit.Pages("Home"))
	require.NoError(t, err)
	ctx := context.Background()

	w.SessionStarted(ctx, st)
	w.TurnAppended(ctx, st, 0, conversation.NewRequest(conversation.AuthorEditor, "", conversation.OperationCall{
		ID: "c1", Name: "markPageComplete", Arguments: map[string]any{"name": "Home"},
	}))
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	w.Transitioned(ctx, st, workflow.Transition{
		SessionID: st.ID, Step: 1, From: workflow.StateEdit, To: workflow.StateEditOps, Timestamp: at,
	})
	w.SessionEnded(ctx, st, errors.New("boom"))
	path := w.CurrentLogFile()
	require.NoError(t, w.Close())

	events, err := ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, EventSessionStarted, events[0].Type)
	assert.JSONEq(t, st.Pages.JSON(), string(events[0].Pages))

	require.NotNil(t, events[1].Turn)
	assert.Equal(t, "operation-request", events[1].Turn.Kind)
	assert.Equal(t, "assistant", events[1].Turn.Role)
	assert.Equal(t, "markPageComplete", events[1].Turn.Call.Name)
	assert.Equal(t, "Home", events[1].Turn.Call.Arguments["name"])

	require.NotNil(t, events[2].Transition)
	assert.Equal(t, workflow.StateEditOps, events[2].Transition.To)
	assert.True(t, at.Equal(events[2].Timestamp))

	assert.Equal(t, EventSessionEnded, events[3].Type)
	assert.Equal(t, "boom", events[3].Error)
	for _, ev := range events {
		assert.Equal(t, st.ID, ev.SessionID)
	}
}

func TestWriterRotatesDaily(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	day := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day }
	require.NoError(t, w.Write(&Event{Type: EventTurn, SessionID: "a"}))
	day = day.Add(2 * time.Minute)
	require.NoError(t, w.Write(&Event{Type: EventTurn, SessionID: "b"}))

	assert.Equal(t, filepath.Join(dir, "events-2026-05-02.jsonl"), w.CurrentLogFile())
	files, err := ListLogFiles(dir)
	require.NoError(t, err)
	assert.Contains(t, files, filepath.Join(dir, "events-2026-05-01.jsonl"))
	assert.Contains(t, files, filepath.Join(dir, "events-2026-05-02.jsonl"))

	first, err := ReadEvents(filepath.Join(dir, "events-2026-05-01.jsonl"))
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "a", first[0].SessionID)
}

func TestWriteAfterClose(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Empty(t, w.CurrentLogFile())
	require.Error(t, w.Write(&Event{Type: EventTurn}))
}

func TestReadEventsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events-2026-01-01.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"type\":\"turn\"}\n\nnot json\n"), 0o600))
	_, err := ReadEvents(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

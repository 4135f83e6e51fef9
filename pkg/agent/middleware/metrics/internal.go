package metrics

import (
	"maps"
	"sync"
	"time"
)

// InternalRecorder aggregates request metrics per session in memory. The CLI
// prints them when a session ends.
type InternalRecorder struct {
	sessions map[string]*SessionMetrics
	mu       sync.RWMutex
}

// SessionMetrics represents aggregated metrics for one session.
//
//nolint:govet // fieldalignment: logical grouping preferred
type SessionMetrics struct {
	SessionID        string           `json:"session_id"`
	PromptTokens     int64            `json:"prompt_tokens"`
	CompletionTokens int64            `json:"completion_tokens"`
	TotalTokens      int64            `json:"total_tokens"`
	RequestCount     int64            `json:"request_count"`
	FailedCount      int64            `json:"failed_count"`
	ByRole           map[string]int64 `json:"requests_by_role"`
	TotalDuration    time.Duration    `json:"total_duration"`
	LastUpdated      time.Time        `json:"last_updated"`
}

// NewInternalRecorder creates an empty recorder.
func NewInternalRecorder() *InternalRecorder {
	return &InternalRecorder{sessions: make(map[string]*SessionMetrics)}
}

// ObserveRequest adds one request to the session's totals.
func (r *InternalRecorder) ObserveRequest(
	_, sessionID, role string,
	promptTokens, completionTokens int,
	success bool,
	_ string,
	duration time.Duration,
) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		m = &SessionMetrics{SessionID: sessionID, ByRole: make(map[string]int64)}
		r.sessions[sessionID] = m
	}
	m.RequestCount++
	m.ByRole[role]++
	m.TotalDuration += duration
	if success {
		m.PromptTokens += int64(promptTokens)
		m.CompletionTokens += int64(completionTokens)
		m.TotalTokens = m.PromptTokens + m.CompletionTokens
	} else {
		m.FailedCount++
	}
	m.LastUpdated = time.Now()
}

// IncThrottle is not tracked in memory.
func (r *InternalRecorder) IncThrottle(_, _ string) {}

// ObserveQueueWait is not tracked in memory.
func (r *InternalRecorder) ObserveQueueWait(_ string, _ time.Duration) {}

// Session returns a copy of the totals for sessionID.
func (r *InternalRecorder) Session(sessionID string) (SessionMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return SessionMetrics{}, false
	}
	out := *m
	out.ByRole = maps.Clone(m.ByRole)
	return out, true
}

// Reset drops all aggregates.
func (r *InternalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*SessionMetrics)
}

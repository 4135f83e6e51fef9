// Package metrics records reasoning-service request metrics.
package metrics

import (
	"time"
)

// Recorder defines the interface for recording request metrics.
type Recorder interface {
	// ObserveRequest records metrics for a completed request.
	ObserveRequest(
		model, sessionID, role string,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)

	// IncThrottle increments the throttle counter for rate limiting events.
	IncThrottle(model, reason string)

	// ObserveQueueWait records time spent waiting for rate limit availability.
	ObserveQueueWait(model string, duration time.Duration)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRequest(_, _, _ string, _, _ int, _ bool, _ string, _ time.Duration) {}

// IncThrottle does nothing in the no-op recorder.
func (n *NoopRecorder) IncThrottle(_, _ string) {}

// ObserveQueueWait does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveQueueWait(_ string, _ time.Duration) {}

// Multi fans every observation out to several recorders.
func Multi(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

type multiRecorder []Recorder

func (m multiRecorder) ObserveRequest(
	model, sessionID, role string,
	promptTokens, completionTokens int,
	success bool,
	errorType string,
	duration time.Duration,
) {
	for _, r := range m {
		r.ObserveRequest(model, sessionID, role, promptTokens, completionTokens, success, errorType, duration)
	}
}

func (m multiRecorder) IncThrottle(model, reason string) {
	for _, r := range m {
		r.IncThrottle(model, reason)
	}
}

func (m multiRecorder) ObserveQueueWait(model string, duration time.Duration) {
	for _, r := range m {
		r.ObserveQueueWait(model, duration)
	}
}

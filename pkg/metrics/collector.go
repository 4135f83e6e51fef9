package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pagegen/pkg/session"
	"pagegen/pkg/workflow"
)

// Session outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// SessionCollector is a workflow observer that exports session progress.
// One collector serves every session in the process.
type SessionCollector struct {
	workflow.BaseObserver

	started        prometheus.Counter
	finished       *prometheus.CounterVec
	active         prometheus.Gauge
	transitions    *prometheus.CounterVec
	duration       prometheus.Histogram
	pagesRemaining *prometheus.GaugeVec

	mu     sync.Mutex
	starts map[string]time.Time
	now    func() time.Time
}

var _ workflow.Observer = (*SessionCollector)(nil)

// NewSessionCollector registers the session metrics on reg. A nil reg uses
// the default registerer.
func NewSessionCollector(reg prometheus.Registerer) *SessionCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &SessionCollector{
		started: factory.NewCounter(prometheus.CounterOpts{
			Name: "pagegen_sessions_started_total",
			Help: "Total number of generation sessions started",
		}),
		finished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagegen_sessions_finished_total",
			Help: "Total number of generation sessions finished by outcome",
		}, []string{"outcome"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pagegen_sessions_active",
			Help: "Number of sessions currently running",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagegen_workflow_transitions_total",
			Help: "Total number of state machine transitions by source and target state",
		}, []string{"from", "to"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagegen_session_duration_seconds",
			Help:    "Wall-clock duration of finished sessions",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),
		pagesRemaining: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagegen_session_pages_remaining",
			Help: "Incomplete pages of a running session",
		}, []string{"session_id"}),
		starts: make(map[string]time.Time),
		now:    time.Now,
	}
}

// SessionStarted implements workflow.Observer.
func (c *SessionCollector) SessionStarted(_ context.Context, st *session.State) {
	c.started.Inc()
	c.active.Inc()
	c.pagesRemaining.WithLabelValues(st.ID).Set(float64(st.Pages.Remaining()))

	c.mu.Lock()
	c.starts[st.ID] = c.now()
	c.mu.Unlock()
}

// Transitioned implements workflow.Observer.
func (c *SessionCollector) Transitioned(_ context.Context, _ *session.State, t workflow.Transition) {
	c.transitions.WithLabelValues(t.From.String(), t.To.String()).Inc()
	c.pagesRemaining.WithLabelValues(t.SessionID).Set(float64(t.Counters.PagesRemaining))
}

// SessionEnded implements workflow.Observer.
func (c *SessionCollector) SessionEnded(_ context.Context, st *session.State, err error) {
	c.finished.WithLabelValues(Outcome(err)).Inc()
	c.active.Dec()
	c.pagesRemaining.DeleteLabelValues(st.ID)

	c.mu.Lock()
	start, ok := c.starts[st.ID]
	delete(c.starts, st.ID)
	c.mu.Unlock()
	if ok {
		c.duration.Observe(c.now().Sub(start).Seconds())
	}
}

// Outcome maps a session's final error to an outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	throttleTotal   *prometheus.CounterVec
	queueWaitTime   *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder registered on reg. A nil reg
// uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_llm_requests_total",
				Help: "Total number of reasoning requests by model, session, role, and status",
			},
			[]string{"model", "session_id", "role", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_llm_tokens_total",
				Help: "Total number of tokens used in reasoning requests",
			},
			[]string{"model", "session_id", "role", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagegen_llm_request_duration_seconds",
				Help:    "Duration of reasoning requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "role"},
		),
		throttleTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_llm_throttle_total",
				Help: "Total number of throttling events",
			},
			[]string{"model", "reason"},
		),
		queueWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagegen_llm_queue_wait_duration_seconds",
				Help:    "Time spent waiting for rate limit availability",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
	}
}

// ObserveRequest records metrics for a completed request.
func (p *PrometheusRecorder) ObserveRequest(
	model, sessionID, role string,
	promptTokens, completionTokens int,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := statusSuccess
	if !success {
		status = statusError
	}

	p.requestsTotal.WithLabelValues(model, sessionID, role, status, errorType).Inc()

	// Tokens only count on success
	if success {
		p.tokensTotal.WithLabelValues(model, sessionID, role, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, sessionID, role, "completion").Add(float64(completionTokens))
	}

	p.requestDuration.WithLabelValues(model, role).Observe(duration.Seconds())
}

// IncThrottle increments the throttle counter for rate limiting events.
func (p *PrometheusRecorder) IncThrottle(model, reason string) {
	p.throttleTotal.WithLabelValues(model, reason).Inc()
}

// ObserveQueueWait records time spent waiting for rate limit availability.
func (p *PrometheusRecorder) ObserveQueueWait(model string, duration time.Duration) {
	p.queueWaitTime.WithLabelValues(model).Observe(duration.Seconds())
}

// Package metrics holds the Prometheus collectors for the chat pipeline and
// its HTTP adapter. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cleanrag"

type Metrics struct {
	ChatsProcessed     *prometheus.CounterVec
	CompletionErrors   *prometheus.CounterVec
	DegradedRetrievals *prometheus.CounterVec
	Recommendations    *prometheus.CounterVec
	PipelineDuration   prometheus.Histogram
	RequestCount       *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass a fresh prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChatsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chats_total",
				Help:      "Chat invocations by outcome",
			},
			[]string{"outcome"},
		),
		CompletionErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completion_errors_total",
				Help:      "Completion failures by kind",
			},
			[]string{"kind"},
		),
		DegradedRetrievals: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_degraded_total",
				Help:      "Retrievals that fell back to an empty result, by index",
			},
			[]string{"index"},
		),
		Recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_total",
				Help:      "Policy decisions by reason",
			},
			[]string{"reason"},
		),
		PipelineDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "End-to-end chat pipeline latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
		),
		RequestCount: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
			},
			[]string{"method", "endpoint"},
		),
	}
}

func (m *Metrics) ObserveChat(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ChatsProcessed.WithLabelValues(outcome).Inc()
	m.PipelineDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) CompletionFailed(kind string) {
	if m == nil {
		return
	}
	m.CompletionErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) RetrievalDegraded(index string) {
	if m == nil {
		return
	}
	m.DegradedRetrievals.WithLabelValues(index).Inc()
}

func (m *Metrics) Recommended(reason string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRequest(method, endpoint, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

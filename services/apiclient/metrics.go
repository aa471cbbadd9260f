package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes
const (
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomePassThrough = "passthrough"
)

// Metrics tracks the requests going through the Transport.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the API client metrics and registers them with reg.
// Panics if registration fails (expected during initialization only).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "masomo",
				Subsystem: "api_client",
				Name:      "requests_total",
				Help:      "Total API requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "masomo",
				Subsystem: "api_client",
				Name:      "retries_total",
				Help:      "Total retried API requests by method",
			},
			[]string{"method"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "masomo",
				Subsystem: "api_client",
				Name:      "errors_total",
				Help:      "Total failed API requests by error kind",
			},
			[]string{"kind"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "masomo",
				Subsystem: "api_client",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds, retries included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RetriesTotal,
		m.ErrorsTotal,
		m.RequestDuration,
	)
	return m
}

// The record methods are no-ops on a nil *Metrics.

func (m *Metrics) recordRequest(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, outcome).Inc()
	if outcome != outcomePassThrough {
		m.RequestDuration.WithLabelValues(method).Observe(seconds)
	}
}

func (m *Metrics) recordRetry(method string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(method).Inc()
}

func (m *Metrics) recordError(kind Kind) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind.String()).Inc()
}

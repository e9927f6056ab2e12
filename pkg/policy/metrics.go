package policy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the policy evaluator.
type Metrics struct {
	evaluations    *prometheus.CounterVec
	creditCharges  *prometheus.CounterVec
	notifyFailures prometheus.Counter
	evalDuration   prometheus.Histogram
}

// NewMetrics creates a Metrics instance with Prometheus collectors.
// Collectors register against the default registry, so create at most
// one per process.
func NewMetrics() *Metrics {
	return &Metrics{
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unbound_policy_evaluations_total",
				Help: "Total number of command evaluations by outcome",
			},
			[]string{"outcome"},
		),

		creditCharges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unbound_policy_credit_charges_total",
				Help: "Total number of credit charge attempts",
			},
			[]string{"result"},
		),

		notifyFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "unbound_policy_notify_failures_total",
				Help: "Total number of failed approval notifications",
			},
		),

		evalDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "unbound_policy_evaluation_duration_seconds",
				Help:    "Duration of command evaluations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 160ms
			},
		),
	}
}

// RecordEvaluation records one completed evaluation.
func (m *Metrics) RecordEvaluation(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
	m.evalDuration.Observe(duration.Seconds())
}

// RecordCharge records a credit charge attempt.
func (m *Metrics) RecordCharge(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "insufficient"
	}
	m.creditCharges.WithLabelValues(result).Inc()
}

// RecordNotifyFailure records a failed approval notification.
func (m *Metrics) RecordNotifyFailure() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}

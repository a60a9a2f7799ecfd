// Package metrics exposes Prometheus metrics for eligibility checks.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluation outcomes
const (
	OutcomeEligible   = "eligible"
	OutcomeIneligible = "ineligible"
	OutcomeError      = "error"
)

// Metrics holds the collectors of one registry
type Metrics struct {
	registry *prometheus.Registry

	EvaluationsTotal   *prometheus.CounterVec
	DegradedTotal      *prometheus.CounterVec
	PageRetriesTotal   prometheus.Counter
	EvaluationDuration prometheus.Histogram
	PublishFailures    prometheus.Counter
}

// New creates a metrics set registered on its own registry
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "quest_eligibility"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of eligibility evaluations by outcome",
		}, []string{"outcome"}),
		DegradedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_total",
			Help:      "Total number of evaluations computed on degraded data by source",
		}, []string{"source"}),
		PageRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_retries_total",
			Help:      "Total number of retried pool event page requests",
		}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Eligibility evaluation duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "publish_failures_total",
			Help:      "Total number of result events that could not be published",
		}),
	}
}

// PageRetried counts one retried page request
func (m *Metrics) PageRetried() {
	m.PageRetriesTotal.Inc()
}

// Degraded counts an evaluation that ran without full data from source
func (m *Metrics) Degraded(source string) {
	m.DegradedTotal.WithLabelValues(source).Inc()
}

// ObserveEvaluation records the outcome and duration of one evaluation
func (m *Metrics) ObserveEvaluation(outcome string, elapsed time.Duration) {
	m.EvaluationsTotal.WithLabelValues(outcome).Inc()
	m.EvaluationDuration.Observe(elapsed.Seconds())
}

// RecordEvaluation records one evaluation by its outcome
func (m *Metrics) RecordEvaluation(eligible bool, err error, elapsed time.Duration) {
	m.ObserveEvaluation(Outcome(eligible, err), elapsed)
}

// PublishFailed counts a result event that was dropped
func (m *Metrics) PublishFailed() {
	m.PublishFailures.Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Outcome maps an evaluation result to its outcome label
func Outcome(eligible bool, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case eligible:
		return OutcomeEligible
	default:
		return OutcomeIneligible
	}
}

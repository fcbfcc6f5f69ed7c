package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the governor module.
type Metrics struct {
	// Evidence gathering latencies by source
	EvidenceLatency *prometheus.HistogramVec

	// Intercept decisions by status and action
	Decisions *prometheus.CounterVec

	// Manual resolutions by outcome
	Resolutions *prometheus.CounterVec

	// Risk score distribution across intercepted changes
	RiskScore prometheus.Histogram

	// Overall intercept latency including evidence gathering
	InterceptLatency prometheus.Histogram

	// Notification callback failures (swallowed, observable only here
	// and in logs)
	NotifyFailures prometheus.Counter
}

// New creates a Metrics instance with all governor metrics registered.
func New() *Metrics {
	return &Metrics{
		EvidenceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_governor_evidence_duration_seconds",
			Help:    "Duration of evidence gathering operations by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "node", "blast_radius", "dependents"

		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_governor_decisions_total",
			Help: "Total intercept decisions by resulting status and action",
		}, []string{"status", "action"}),

		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_governor_resolutions_total",
			Help: "Total manual resolutions by outcome",
		}, []string{"outcome"}),

		RiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_governor_risk_score",
			Help:    "Risk score distribution of intercepted changes",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		InterceptLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_governor_intercept_duration_seconds",
			Help:    "Duration of full change interception including evidence gathering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		NotifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_governor_notify_failures_total",
			Help: "Notification callbacks that returned an error or panicked",
		}),
	}
}

// ObserveEvidenceLatency records the duration of one collaborator query.
func (m *Metrics) ObserveEvidenceLatency(source string, d time.Duration) {
	if m != nil {
		m.EvidenceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementDecision records an intercept outcome.
func (m *Metrics) IncrementDecision(status, action string) {
	if m != nil {
		m.Decisions.WithLabelValues(status, action).Inc()
	}
}

// IncrementResolution records a manual approve/reject.
func (m *Metrics) IncrementResolution(outcome string) {
	if m != nil {
		m.Resolutions.WithLabelValues(outcome).Inc()
	}
}

// ObserveRiskScore records the score of an intercepted change.
func (m *Metrics) ObserveRiskScore(score int) {
	if m != nil {
		m.RiskScore.Observe(float64(score))
	}
}

// ObserveInterceptLatency records the total interception duration.
func (m *Metrics) ObserveInterceptLatency(d time.Duration) {
	if m != nil {
		m.InterceptLatency.Observe(d.Seconds())
	}
}

// IncrementNotifyFailure records a swallowed callback failure.
func (m *Metrics) IncrementNotifyFailure() {
	if m != nil {
		m.NotifyFailures.Inc()
	}
}

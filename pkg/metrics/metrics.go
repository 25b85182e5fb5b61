// Package metrics exposes routing counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds the router collectors. A nil *Metrics records nothing.
type Metrics struct {
	Attempts       *prometheus.CounterVec
	AttemptLatency *prometheus.HistogramVec
	Fallbacks      prometheus.Counter
	Exhausted      prometheus.Counter
	CacheLookups   *prometheus.CounterVec
	SuccessRate    *prometheus.GaugeVec
}

// New registers the collectors on reg. Registering twice on the same
// registerer panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_attempts_total",
				Help: "Backend invocation attempts by outcome",
			},
			[]string{"backend", "outcome"},
		),
		AttemptLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "switchboard_attempt_latency_seconds",
				Help:    "Backend invocation latency in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"backend"},
		),
		Fallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "switchboard_fallbacks_total",
				Help: "Times the cascade advanced past a failed backend",
			},
		),
		Exhausted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "switchboard_cascade_exhausted_total",
				Help: "Requests where every candidate failed",
			},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_cache_lookups_total",
				Help: "Response cache lookups by result",
			},
			[]string{"result"},
		),
		SuccessRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "switchboard_backend_success_rate",
				Help: "Current success rate percentage per backend",
			},
			[]string{"backend"},
		),
	}
}

// ObserveAttempt counts one attempt and its latency.
func (m *Metrics) ObserveAttempt(backend, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(backend, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.AttemptLatency.WithLabelValues(backend).Observe(latency.Seconds())
	}
}

// Fallback counts one advance to the next candidate.
func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}

// CascadeExhausted counts one request where every candidate failed.
func (m *Metrics) CascadeExhausted() {
	if m == nil {
		return
	}
	m.Exhausted.Inc()
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// SetSuccessRate publishes the tracker's success rate for backend.
func (m *Metrics) SetSuccessRate(backend string, rate float64) {
	if m == nil {
		return
	}
	m.SuccessRate.WithLabelValues(backend).Set(rate)
}

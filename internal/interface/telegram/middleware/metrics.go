package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS MIDDLEWARE
// Prometheus counters for bot traffic, exposed on the HTTP /metrics endpoint.
// ══════════════════════════════════════════════════════════════════════════════

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomePanic       = "panic"
	OutcomeRateLimited = "rate_limited"
)

// Metrics records bot update handling.
type Metrics struct {
	updates  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telegram_updates_total",
				Help: "Total number of Telegram updates handled, by route and outcome",
			},
			[]string{"route", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "telegram_update_duration_seconds",
				Help:    "Time spent handling a Telegram update",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.updates, m.duration)
	}
	return m
}

// Observe records one handled update.
func (m *Metrics) Observe(route, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(route, outcome).Inc()
	m.duration.WithLabelValues(route).Observe(time.Since(started).Seconds())
}

// Count returns the counter for route and outcome.
func (m *Metrics) Count(route, outcome string) prometheus.Counter {
	return m.updates.WithLabelValues(route, outcome)
}

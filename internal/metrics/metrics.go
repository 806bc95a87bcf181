// Package metrics defines the Prometheus metrics exported by the card bot.
// All Record*/Set* methods are safe on a nil *Metrics so components can run
// without instrumentation in tests and in the console binary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Turn metrics
	TurnsTotal          *prometheus.CounterVec
	TurnDurationSeconds *prometheus.HistogramVec
	SelectionsTotal     *prometheus.CounterVec
	WelcomeMessageTotal prometheus.Counter

	// Card store metrics
	CardLoadsTotal          *prometheus.CounterVec
	CardLoadDurationSeconds *prometheus.HistogramVec
	CardLoadDedupTotal      prometheus.Counter

	// Audit metrics
	CardAvailable        *prometheus.GaugeVec
	AuditRunsTotal       *prometheus.CounterVec
	AuditDurationSeconds prometheus.Histogram

	// HTTP and rate limiter metrics
	HTTPErrorsTotal    *prometheus.CounterVec
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterKeys    *prometheus.GaugeVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardbot_turns_total",
				Help: "Total number of turns by activity type and status",
			},
			[]string{"activity_type", "status"}, // status: ok, error, timeout, ignored, rate_limited
		),

		TurnDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardbot_turn_duration_seconds",
				Help:    "Turn processing duration in seconds by activity type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"activity_type"},
		),

		SelectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardbot_selections_total",
				Help: "Card selections by source (matched keyword or random)",
			},
			[]string{"source", "card"},
		),

		WelcomeMessageTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cardbot_welcome_messages_total",
				Help: "Welcome messages sent to newly added members",
			},
		),

		CardLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardbot_card_loads_total",
				Help: "Card payload loads by card and status",
			},
			[]string{"card", "status"}, // status: ok, not_found, malformed, error
		),

		CardLoadDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardbot_card_load_duration_seconds",
				Help:    "Card payload load duration by store backend",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend"},
		),

		CardLoadDedupTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cardbot_card_load_dedup_total",
				Help: "Loads that shared an in-flight read of the same card",
			},
		),

		CardAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cardbot_card_available",
				Help: "1 if the last audit loaded the card successfully, 0 otherwise",
			},
			[]string{"card"},
		),

		AuditRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardbot_audit_runs_total",
				Help: "Catalog audits by outcome",
			},
			[]string{"status"}, // status: healthy, degraded
		),

		AuditDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cardbot_audit_duration_seconds",
				Help:    "Duration of a full catalog audit",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardbot_http_errors_total",
				Help: "HTTP errors on the turn endpoint by type",
			},
			[]string{"error_type"}, // error_type: bad_request, too_large, rate_limited, turn_failed
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardbot_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter"},
		),

		RateLimiterKeys: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cardbot_rate_limiter_keys",
				Help: "Number of keys currently tracked by a keyed rate limiter",
			},
			[]string{"limiter"},
		),
	}
}

// RecordTurn records a finished turn.
func (m *Metrics) RecordTurn(activityType, status string, duration float64) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(activityType, status).Inc()
	m.TurnDurationSeconds.WithLabelValues(activityType).Observe(duration)
}

// RecordSelection records which card a message resolved to and why.
func (m *Metrics) RecordSelection(source, card string) {
	if m == nil {
		return
	}
	m.SelectionsTotal.WithLabelValues(source, card).Inc()
}

// RecordWelcome records one welcome message.
func (m *Metrics) RecordWelcome() {
	if m == nil {
		return
	}
	m.WelcomeMessageTotal.Inc()
}

// RecordCardLoad records a card payload load.
func (m *Metrics) RecordCardLoad(backend, card, status string, duration float64) {
	if m == nil {
		return
	}
	m.CardLoadsTotal.WithLabelValues(card, status).Inc()
	m.CardLoadDurationSeconds.WithLabelValues(backend).Observe(duration)
}

// RecordCardLoadDedup records a load whose store read was shared with another caller.
func (m *Metrics) RecordCardLoadDedup() {
	if m == nil {
		return
	}
	m.CardLoadDedupTotal.Inc()
}

// SetCardAvailable sets the availability gauge for one card.
func (m *Metrics) SetCardAvailable(card string, ok bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ok {
		v = 1
	}
	m.CardAvailable.WithLabelValues(card).Set(v)
}

// RecordAudit records a finished catalog audit.
func (m *Metrics) RecordAudit(status string, duration float64) {
	if m == nil {
		return
	}
	m.AuditRunsTotal.WithLabelValues(status).Inc()
	m.AuditDurationSeconds.Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiter string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiter).Inc()
}

// SetRateLimiterKeys sets the number of tracked keys for a limiter.
func (m *Metrics) SetRateLimiterKeys(limiter string, count int) {
	if m == nil {
		return
	}
	m.RateLimiterKeys.WithLabelValues(limiter).Set(float64(count))
}

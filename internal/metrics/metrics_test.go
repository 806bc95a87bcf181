package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	require.NotNil(t, m)

	// Touch one series per vector so Gather reports them.
	m.RecordTurn("message", "success", 0.01)
	m.RecordSelection("weather", "LargeWeatherCard.json")
	m.RecordWelcome()
	m.RecordCardLoad("embedded", "LargeWeatherCard.json", "ok", 0.001)
	m.RecordCardLoadDedup()
	m.SetCardAvailable("LargeWeatherCard.json", true)
	m.RecordAudit("healthy", 0.2)
	m.RecordHTTPError("bad_request")
	m.RecordRateLimiterDrop("conversation")
	m.SetRateLimiterKeys("conversation", 3)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"cardbot_turns_total",
		"cardbot_turn_duration_seconds",
		"cardbot_selections_total",
		"cardbot_welcome_messages_total",
		"cardbot_card_loads_total",
		"cardbot_card_load_duration_seconds",
		"cardbot_card_load_dedup_total",
		"cardbot_card_available",
		"cardbot_audit_runs_total",
		"cardbot_audit_duration_seconds",
		"cardbot_http_errors_total",
		"cardbot_rate_limiter_dropped_total",
		"cardbot_rate_limiter_keys",
	} {
		assert.True(t, names[want], "metric %s not registered", want)
	}
}

func TestRecordValues(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordTurn("message", "success", 0.1)
	m.RecordTurn("message", "success", 0.2)
	m.RecordTurn("message", "error", 0.3)
	assert.InDelta(t, 2, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("message", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("message", "error")), 0)

	m.SetCardAvailable("FoodOrder.json", true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CardAvailable.WithLabelValues("FoodOrder.json")), 0)
	m.SetCardAvailable("FoodOrder.json", false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.CardAvailable.WithLabelValues("FoodOrder.json")), 0)

	m.SetRateLimiterKeys("conversation", 7)
	assert.InDelta(t, 7, testutil.ToFloat64(m.RateLimiterKeys.WithLabelValues("conversation")), 0)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordTurn("message", "success", 0)
		m.RecordSelection("random", "SolitaireCard.json")
		m.RecordWelcome()
		m.RecordCardLoad("dir", "x", "not_found", 0)
		m.RecordCardLoadDedup()
		m.SetCardAvailable("x", false)
		m.RecordAudit("degraded", 1)
		m.RecordHTTPError("turn_failed")
		m.RecordRateLimiterDrop("conversation")
		m.SetRateLimiterKeys("conversation", 0)
	})
}

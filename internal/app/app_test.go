package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyellow/cardbot/internal/bot"
	"github.com/garyellow/cardbot/internal/cardstore"
	"github.com/garyellow/cardbot/internal/config"
	"github.com/garyellow/cardbot/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		LogLevel:          "error",
		ShutdownTimeout:   5 * time.Second,
		TurnTimeout:       5 * time.Second,
		TextPreviewLength: 200,
		MaxBodyBytes:      1 << 16,
		RateLimit:         config.RateLimitConfig{Burst: 10, RefillPerSec: 1},
		Audit:             config.AuditConfig{Timeout: 5 * time.Second, ReadinessTimeout: time.Hour},
		Metrics:           config.MetricsConfig{Username: "prometheus"},
	}
}

// setupTestApp builds an Application over the embedded card set.
func setupTestApp(t *testing.T, mutate func(*config.Config)) *Application {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	app, err := build(cfg, logger.Discard(), cardstore.NewEmbedded())
	require.NoError(t, err)
	t.Cleanup(app.close)
	return app
}

func serve(app *Application, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, nil)

	w := serve(app, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode(t, w)["status"])

	w = serve(app, http.MethodHead, "/livez", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessCheck_BeforeAndAfterAudit(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, nil)

	w := serve(app, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "catalog audit in progress", body["reason"])

	_, err := app.auditor.Run(context.Background())
	require.NoError(t, err)

	w = serve(app, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, cardstore.BackendEmbedded, body["store"])

	auditBody, ok := body["audit"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 10, auditBody["available"], 0)
	assert.InDelta(t, 10, auditBody["total"], 0)
	assert.Empty(t, auditBody["failed"])
}

func TestReadinessCheck_TimeoutWithoutAudit(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, func(c *config.Config) { c.Audit.ReadinessTimeout = time.Nanosecond })
	time.Sleep(time.Millisecond)

	w := serve(app, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	auditBody, ok := decode(t, w)["audit"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, auditBody["reason"], "timeout reached")
}

func TestMessages_RejectedUntilReady(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, nil)

	raw, err := json.Marshal(bot.Activity{
		Type:         bot.ActivityTypeMessage,
		Text:         "flight",
		From:         bot.ChannelAccount{ID: "user-1"},
		Recipient:    bot.ChannelAccount{ID: "bot-1"},
		Conversation: bot.ConversationAccount{ID: "conv-1"},
	})
	require.NoError(t, err)

	w := serve(app, http.MethodPost, "/api/messages", raw)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))

	app.readiness.MarkReady()

	w = serve(app, http.MethodPost, "/api/messages", raw)
	require.Equal(t, http.StatusOK, w.Code)
	activities, ok := decode(t, w)["activities"].([]any)
	require.True(t, ok)
	assert.Len(t, activities, 2)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, nil)

	w := serve(app, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'none'", w.Header().Get("Content-Security-Policy"))

	body := decode(t, w)
	assert.Equal(t, ServiceName, body["service"])
	assert.InDelta(t, 10, body["cards"], 0)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("open", func(t *testing.T) {
		t.Parallel()
		app := setupTestApp(t, nil)
		app.metrics.RecordWelcome()

		w := serve(app, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "cardbot_welcome_messages_total 1")
	})

	t.Run("protected", func(t *testing.T) {
		t.Parallel()
		app := setupTestApp(t, func(c *config.Config) { c.Metrics.Password = "secret" })

		w := serve(app, http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.SetBasicAuth("prometheus", "secret")
		rec := httptest.NewRecorder()
		app.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestShutdown_ClosesResources(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	store, err := cardstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "cards.db"))
	require.NoError(t, err)

	app, err := build(cfg, logger.Discard(), store)
	require.NoError(t, err)

	require.NoError(t, app.shutdown(nil))

	_, err = store.Count(context.Background())
	assert.Error(t, err)
}

package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/garyellow/cardbot/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newAuthRouter(m *metrics.Metrics, password string) *gin.Engine {
	router := gin.New()
	router.GET("/metrics", metricsAuthMiddleware(m, "prometheus", password), func(c *gin.Context) {
		c.String(http.StatusOK, "metrics")
	})
	return router
}

func TestMetricsAuthMiddleware_NoPasswordBypass(t *testing.T) {
	t.Parallel()
	router := newAuthRouter(nil, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metrics", w.Body.String())
}

func TestMetricsAuthMiddleware_Credentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		user     string
		pass     string
		withAuth bool
		want     int
	}{
		{"valid", "prometheus", "secret123", true, http.StatusOK},
		{"wrong password", "prometheus", "nope", true, http.StatusUnauthorized},
		{"wrong user", "admin", "secret123", true, http.StatusUnauthorized},
		{"empty credentials", "", "", true, http.StatusUnauthorized},
		{"no header", "", "", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := metrics.New(prometheus.NewRegistry())
			router := newAuthRouter(m, "secret123")

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.withAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="metrics"`, w.Header().Get("WWW-Authenticate"))
				assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPErrorsTotal.WithLabelValues("metrics_unauthorized")), 0)
			}
		})
	}
}

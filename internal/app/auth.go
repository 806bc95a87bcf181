package app

import (
	"crypto/subtle"
	"net/http"

	"github.com/garyellow/cardbot/internal/metrics"
	"github.com/gin-gonic/gin"
)

// metricsAuthMiddleware enforces Basic Auth on /metrics. An empty password
// leaves the endpoint open.
func metricsAuthMiddleware(m *metrics.Metrics, username, password string) gin.HandlerFunc {
	if password == "" {
		return func(c *gin.Context) { c.Next() }
	}
	wantUser := []byte(username)
	wantPass := []byte(password)

	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		// Both comparisons always run.
		userOK := subtle.ConstantTimeCompare([]byte(user), wantUser) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), wantPass) == 1
		if !ok || !userOK || !passOK {
			m.RecordHTTPError("metrics_unauthorized")
			c.Header("WWW-Authenticate", `Basic realm="metrics"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

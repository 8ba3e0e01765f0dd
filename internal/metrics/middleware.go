package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/divviup/divviup-console/internal/logging"
)

// Middleware records request count, latency and in-flight gauges for the
// console server. Unmatched paths are collapsed with Endpoint so ids do
// not explode label cardinality.
func Middleware(m *Metrics, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.IncHTTPRequestsInFlight()
		defer m.DecHTTPRequestsInFlight()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = Endpoint(c.Request.URL.Path)
		}

		m.RecordRequestLatency(endpoint, c.Request.Method, status, time.Since(start).Seconds())
		m.RecordHTTPRequest(endpoint, c.Request.Method, status)

		if len(c.Errors) > 0 {
			m.RecordError("handler", endpoint, c.Request.Method)
			logger.ErrorWithContext(c.Request.Context(), "request error",
				"endpoint", endpoint,
				"error", c.Errors.String(),
			)
		}
	}
}

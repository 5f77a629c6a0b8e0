package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paramkeep/paramkeep/internal/metrics"
)

// PrometheusMiddleware records HTTP request duration and count per route
// pattern. Scrapes of scrapePath and the long-lived audit stream are not
// recorded.
func PrometheusMiddleware(scrapePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == scrapePath || c.IsWebsocket() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

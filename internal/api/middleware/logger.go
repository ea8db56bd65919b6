package middleware

import (
	"time"

	"plantshop/internal/logger"
	"plantshop/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request through the service logger and records
// request metrics under the matched route.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		log.Info("%s %s %d %s %s", c.Request.Method, path, status, latency, c.ClientIP())

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, route, status, latency)
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studycenter-api/internal/service"
)

// Metrics observes request latency per route template. Scrapes of the metrics endpoint itself are skipped.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

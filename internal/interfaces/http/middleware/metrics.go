package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/PPI-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request count and latency per route template so label
// cardinality is bounded by the route table.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		prometheus.RecordHTTPRequest(m, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

//Personal.AI order the ending

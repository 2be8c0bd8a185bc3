package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware records request counts and latency keyed by route template,
// never by raw path, to keep label cardinality bounded.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
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
		m.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainwatch-backend/internal/observability"
)

// Metrics records request counts and latency by route template. Routes in
// skip, such as the scrape endpoint itself, are not observed.
func Metrics(m *observability.Metrics, skip ...string) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	skipped := make(map[string]bool, len(skip))
	for _, route := range skip {
		skipped[route] = true
	}
	return func(c *gin.Context) {
		if skipped[c.FullPath()] {
			c.Next()
			return
		}
		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainwatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Routes listed in quiet are only
// logged when they fail, so health checks and scrapes do not flood the output.
func RequestLogger(log *logger.Logger, quiet ...string) gin.HandlerFunc {
	quietRoutes := make(map[string]struct{}, len(quiet))
	for _, r := range quiet {
		quietRoutes[r] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		route := c.FullPath()
		if _, ok := quietRoutes[route]; ok && status < 400 {
			return
		}
		if route == "" {
			route = "unmatched"
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			if td.TraceID != "" {
				fields = append(fields, "trace_id", td.TraceID)
			}
			if td.RequestID != "" {
				fields = append(fields, "request_id", td.RequestID)
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request served", fields...)
		}
	}
}

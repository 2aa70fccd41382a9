package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// MonitorObserver logs each monitor request and records the HTTP metrics in
// one pass. Route templates are used where gin resolved one so the metric
// label set stays bounded.
func MonitorObserver(logger zerolog.Logger, station string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		RecordHTTPRequest(station, c.Request.Method, route, status, elapsed)

		event := requestEvent(logger, status).
			Str("station", station).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Str("client_ip", c.ClientIP())
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("monitor_request")
	}
}

func requestEvent(logger zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return logger.Error()
	case status >= 400:
		return logger.Warn()
	default:
		return logger.Info()
	}
}

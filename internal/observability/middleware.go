package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const transportKey = "chanrpc.transport"

// TransportHTTP labels requests that never opened a channel.
const TransportHTTP = "http"

// TagTransport marks the request as served by a channel transport, so the
// request log line and metrics can tell websocket sessions from API calls.
func TagTransport(c *gin.Context, name string) {
	c.Set(transportKey, name)
}

func transportOf(c *gin.Context) string {
	if name := c.GetString(transportKey); name != "" {
		return name
	}
	return TransportHTTP
}

func routeOf(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}

// RequestLogger writes one "http_request" line when the handler returns.
// For websocket upgrades that is when the connection ends, so duration is
// the connection lifetime.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		event.
			Str("transport", transportOf(c)).
			Str("method", c.Request.Method).
			Str("path", routeOf(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http_request")
	}
}

func RequestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(transportOf(c), c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

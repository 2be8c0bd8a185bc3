package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/orgkeys/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	headerRequestID  = "X-Request-Id"
	maxRequestIDSize = 128
	requestEvent     = "http_request"
)

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware emits one line per request. Headers, query strings and
// bodies are never logged: bearer credentials travel in them.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = obscontext.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if cfg.Debug {
			fields = append(fields, zap.Int64("bytes_in", max(c.Request.ContentLength, 0)))
		}
		if last := c.Errors.Last(); last != nil && cfg.ErrorClassifier != nil {
			errorType, errorCode := cfg.ErrorClassifier(last.Err)
			fields = append(fields,
				zap.String("error_type", errorType),
				zap.String("error_code", errorCode),
			)
		}

		// The request context now carries actor and org set by later middleware.
		FromContext(c.Request.Context()).Log(levelFor(route, status), requestEvent, fields...)
	}
}

// requestIDFor keeps a sane inbound id so callers can correlate across hops.
func requestIDFor(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(headerRequestID))
	if id == "" || len(id) > maxRequestIDSize || strings.ContainsAny(id, " \t\r\n") {
		id = uuid.NewString()
	}
	c.Header(headerRequestID, id)
	return id
}

// levelFor keeps probes quiet and surfaces denials above ordinary traffic.
func levelFor(route string, status int) zapcore.Level {
	switch {
	case route == "/health" || route == "/metrics":
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

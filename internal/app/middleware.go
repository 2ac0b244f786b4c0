package app

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/utsbot/uts-chatbot-go/internal/ctxutil"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/ratelimit"
)

const (
	headerRequestID = "X-Request-ID"
	headerSessionID = "X-Session-ID"
	maxRequestIDLen = 64
)

// HTTPRecorder receives per-request measurements. metrics.Metrics implements it.
type HTTPRecorder interface {
	RecordHTTPRequest(route string, code int)
}

// securityHeadersMiddleware adds security headers to all responses
// Reference: https://gin-gonic.com/en/docs/examples/security-headers
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	}
}

// requestIDMiddleware accepts a short client X-Request-ID or assigns a new
// one, echoes it back and stores it in the request context for logging.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		ctx := c.Request.Context()

		entry := log.WithField("method", method).
			WithField("path", path).
			WithField("status", status).
			WithField("duration_ms", duration.Milliseconds()).
			WithField("ip", c.ClientIP())

		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).ErrorContext(ctx, "Request completed with errors")
			return
		}
		switch {
		case status >= 500:
			entry.ErrorContext(ctx, "Request failed")
		case status >= 400:
			entry.WarnContext(ctx, "Request completed with client error")
		default:
			entry.DebugContext(ctx, "Request completed")
		}
	}
}

// metricsMiddleware counts requests by route template and status code.
func metricsMiddleware(rec HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.RecordHTTPRequest(route, c.Writer.Status())
	}
}

// timeoutMiddleware bounds the request context. Handlers observe the
// deadline through ctx; nothing is written on their behalf.
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// rateLimitMiddleware limits chat requests per session and per client IP.
// The session key is the client IP plus the X-Session-ID header, so a
// session id only ever spends its own client's budget. The IP bucket caps a
// client that rotates session ids. Either limiter may be nil.
func rateLimitMiddleware(sessions, ips *ratelimit.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ips != nil && !ips.Allow(ip) {
			tooManyRequests(c, ips.RetryAfter(ip))
			return
		}

		if sessions != nil {
			key := ip + "|" + c.GetHeader(headerSessionID)
			if !sessions.Allow(key) {
				tooManyRequests(c, sessions.RetryAfter(key))
				return
			}
			c.Header("X-RateLimit-Remaining", strconv.Itoa(int(sessions.GetAvailable(key))))
		}
		c.Next()
	}
}

func tooManyRequests(c *gin.Context, retryAfter time.Duration) {
	wait := max(1, int(math.Ceil(retryAfter.Seconds())))
	c.Header("Retry-After", strconv.Itoa(wait))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
		Error: "Has enviado demasiadas preguntas seguidas. Intenta de nuevo en unos segundos.",
	})
}

// Package sentry wraps the Sentry Go SDK: initialization from configuration
// and capture helpers that tag events with the chat session in context.
package sentry

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/utsbot/uts-chatbot-go/internal/ctxutil"
)

// Config holds Sentry configuration.
type Config struct {
	// DSN is the project DSN. Empty disables Sentry.
	DSN string

	// Environment identifies the deployment environment (e.g., "production", "staging").
	Environment string

	// Release identifies the application release version.
	Release string

	// SampleRate controls error sampling (0.0-1.0, default 1.0 = 100%).
	SampleRate float64

	// TracesSampleRate enables performance tracing when positive.
	TracesSampleRate float64

	// ServerName overrides the reported host name.
	ServerName string

	// Debug enables Sentry SDK debug logging.
	Debug bool
}

// Initialize sets up the Sentry SDK. An empty DSN disables Sentry and
// returns nil.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil // Sentry disabled
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0 // Default to 100% sampling
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		SampleRate:       sampleRate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to be sent to the server.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureError captures err with the request, session and user type found
// in ctx. It is a no-op for nil errors and context cancellation.
func CaptureError(ctx context.Context, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		if id, ok := ctxutil.GetRequestID(ctx); ok {
			scope.SetTag("request_id", id)
		}
		if id := ctxutil.GetSessionID(ctx); id != "" {
			scope.SetTag("session_id", id)
		}
		if ut := ctxutil.GetUserType(ctx); ut != "" {
			scope.SetTag("user_type", ut)
		}
		hub.CaptureException(err)
	})
}

// CaptureMessage captures a message and sends it to Sentry.
func CaptureMessage(message string) {
	sentry.CaptureMessage(message)
}

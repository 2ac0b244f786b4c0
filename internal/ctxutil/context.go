// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	sessionIDKey contextKey = "ctxutil.sessionID"
	userTypeKey  contextKey = "ctxutil.userType"
	requestIDKey contextKey = "ctxutil.requestID"
)

// WithSessionID adds a chat session ID to the context.
// The session ID groups conversation turns and keys the chat rate limiter.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// GetSessionID retrieves the session ID from the context.
// Returns the session ID if found, empty string otherwise.
func GetSessionID(ctx context.Context) string {
	if v := ctx.Value(sessionIDKey); v != nil {
		if sessionID, ok := v.(string); ok && sessionID != "" {
			return sessionID
		}
	}
	return ""
}

// WithUserType adds the requester's user type (estudiante, docente, ...) to the context.
func WithUserType(ctx context.Context, userType string) context.Context {
	return context.WithValue(ctx, userTypeKey, userType)
}

// GetUserType retrieves the user type from the context.
// Returns the user type if found, empty string otherwise.
func GetUserType(ctx context.Context) string {
	if v := ctx.Value(userTypeKey); v != nil {
		if userType, ok := v.(string); ok && userType != "" {
			return userType
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context for tracing.
// Request ID is taken from X-Request-ID or generated per HTTP request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
//
// Use for work that must outlive the request, such as persisting a
// conversation turn after the response has been written.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if sessionID := GetSessionID(ctx); sessionID != "" {
		newCtx = WithSessionID(newCtx, sessionID)
	}
	if userType := GetUserType(ctx); userType != "" {
		newCtx = WithUserType(newCtx, userType)
	}
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}

	return newCtx
}

package sentry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/utsbot/uts-chatbot-go/internal/ctxutil"
)

// Tests here share the global Sentry hub and must not run in parallel.

func TestInitialize_EmptyDSN(t *testing.T) {
	if err := Initialize(Config{DSN: ""}); err != nil {
		t.Errorf("Expected nil error for empty DSN, got %v", err)
	}
}

func TestInitialize_InvalidDSN(t *testing.T) {
	if err := Initialize(Config{DSN: "not a dsn"}); err == nil {
		t.Error("Expected error for malformed DSN")
	}
}

func TestInitialize_ValidConfig(t *testing.T) {
	err := Initialize(Config{
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
		SampleRate:  0, // defaults to 1.0
	})
	if err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if !IsEnabled() {
		t.Error("Expected IsEnabled() to return true after initialization")
	}
	Flush(100 * time.Millisecond)
}

func TestCaptureError_Tags(t *testing.T) {
	var events []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: "https://public@sentry.example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			events = append(events, event)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	hub := sentry.NewHub(client, sentry.NewScope())

	ctx := sentry.SetHubOnContext(context.Background(), hub)
	ctx = ctxutil.WithRequestID(ctx, "req-1")
	ctx = ctxutil.WithSessionID(ctx, "sess-1")
	ctx = ctxutil.WithUserType(ctx, "estudiante")

	CaptureError(ctx, errors.New("llm down"))
	CaptureError(ctx, context.Canceled)
	CaptureError(ctx, nil)

	if len(events) != 1 {
		t.Fatalf("captured %d events, want 1", len(events))
	}
	tags := events[0].Tags
	if tags["request_id"] != "req-1" || tags["session_id"] != "sess-1" || tags["user_type"] != "estudiante" {
		t.Errorf("unexpected tags: %v", tags)
	}
}

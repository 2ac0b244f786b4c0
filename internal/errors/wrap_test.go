package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorWrapper(t *testing.T) {
	t.Parallel()
	wrapper := NewWrapper("chat", "compose_answer")

	t.Run("Wrap returns nil for nil error", func(t *testing.T) {
		if result := wrapper.Wrap(nil, "no se pudo responder"); result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})

	t.Run("Wrap creates WrappedError", func(t *testing.T) {
		baseErr := errors.New("gemini quota exhausted")
		wrapped := wrapper.Wrap(baseErr, "no se pudo responder")

		var wrappedErr *WrappedError
		if !errors.As(wrapped, &wrappedErr) {
			t.Fatal("expected WrappedError type")
		}
		if wrappedErr.Module != "chat" {
			t.Errorf("expected module 'chat', got '%s'", wrappedErr.Module)
		}
		if wrappedErr.Operation != "compose_answer" {
			t.Errorf("expected operation 'compose_answer', got '%s'", wrappedErr.Operation)
		}
		if !errors.Is(wrapped, baseErr) {
			t.Error("wrapped error should unwrap to base error")
		}
	})
}

func TestGetUserMessage(t *testing.T) {
	t.Parallel()
	wrapped := NewWrapper("rag", "reload").Wrap(errors.New("disk full"), "no se pudo recargar")

	if got := GetUserMessage(fmt.Errorf("outer: %w", wrapped), "fallback"); got != "no se pudo recargar" {
		t.Errorf("expected wrapped user message, got %q", got)
	}
	if got := GetUserMessage(errors.New("plain"), "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
	if got := GetUserMessage(nil, "fallback"); got != "" {
		t.Errorf("expected empty string for nil, got %q", got)
	}
}

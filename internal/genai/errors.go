package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("empty model response")

// ErrorAction defines the action to take based on error type.
type ErrorAction int

const (
	// ActionRetry retries the same model after a backoff.
	ActionRetry ErrorAction = iota
	// ActionFallback moves to the next generator in the chain.
	ActionFallback
	// ActionFail stops immediately.
	ActionFail
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// LLMError wraps an error with the provider and HTTP status that produced it.
type LLMError struct {
	Err        error
	StatusCode int
	Provider   Provider
	Model      string
}

func (e *LLMError) Error() string {
	msg := string(e.Provider) + "/" + e.Model + ": " + e.Err.Error()
	if e.StatusCode > 0 {
		msg += " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return msg
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// WrapError attaches provider context and the HTTP status found in SDK
// errors.
func WrapError(err error, provider Provider, model string) error {
	if err == nil {
		return nil
	}
	return &LLMError{
		Err:        err,
		StatusCode: statusCode(err),
		Provider:   provider,
		Model:      model,
	}
}

// statusCode extracts the HTTP status from openai-go and genai SDK errors.
func statusCode(err error) int {
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return 0
}

// ClassifyError determines the action for a failed call:
//   - transient errors (429, 5xx, timeouts, network) are retried
//   - quota exhaustion falls back to the next generator
//   - permanent errors (400, 401, 403, 404, 422) and cancellation fail
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}
	if errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}
	if errors.Is(err, ErrEmptyResponse) {
		return ActionFallback
	}

	errStr := strings.ToLower(err.Error())

	// Quota exhaustion will not clear on retry.
	if containsAny(errStr, "quota", "daily limit", "monthly limit", "billing") {
		return ActionFallback
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return classifyStatusCode(llmErr.StatusCode)
	}
	if code := statusCode(err); code > 0 {
		return classifyStatusCode(code)
	}

	if containsAny(errStr, "rate limit", "too many requests", "resource_exhausted", "429") {
		return ActionRetry
	}
	if containsAny(errStr, "unavailable", "internal server error", "bad gateway",
		"gateway timeout", "overloaded", "capacity", "502", "503", "504") {
		return ActionRetry
	}
	if containsAny(errStr, "timeout", "deadline", "connection reset", "connection refused", "eof") {
		return ActionRetry
	}
	if containsAny(errStr, "unauthorized", "unauthenticated", "invalid api key",
		"forbidden", "permission denied", "bad request", "malformed", "not found") {
		return ActionFail
	}

	return ActionRetry
}

func classifyStatusCode(statusCode int) ErrorAction {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode >= 500 && statusCode < 600:
		return ActionRetry
	case statusCode >= 400 && statusCode < 500:
		return ActionFail
	default:
		return ActionRetry
	}
}

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ActionRetry
}

// IsPermanent returns true if the error must not be retried.
func IsPermanent(err error) bool {
	return ClassifyError(err) == ActionFail
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

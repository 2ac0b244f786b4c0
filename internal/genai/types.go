// Package genai provides the text generation backends used to phrase
// answers from retrieved evidence.
//
// Architecture:
//   - Gemini: google.golang.org/genai (official SDK)
//   - Groq: github.com/openai/openai-go/v3 against the OpenAI-compatible API
//
// Generators form a chain: each configured model of each provider, in the
// configured provider order. A call moves down the chain only for errors
// that another model may not share (quota, rate limit, outage).
package genai

import (
	"context"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	// ProviderGemini is Google's Gemini API.
	ProviderGemini Provider = "gemini"
	// ProviderGroq is Groq's OpenAI-compatible API.
	ProviderGroq Provider = "groq"
)

// ProviderEndpoint holds the base URL of OpenAI-compatible providers.
var ProviderEndpoint = map[Provider]string{
	ProviderGroq: "https://api.groq.com/openai/v1/",
}

// IsOpenAICompatible returns true if the provider uses the OpenAI API shape.
func (p Provider) IsOpenAICompatible() bool {
	_, ok := ProviderEndpoint[p]
	return ok
}

func (p Provider) String() string {
	return string(p)
}

// TextGenerator turns a complete prompt into answer text.
type TextGenerator interface {
	// Generate returns the model output for prompt. An empty output is an
	// error.
	Generate(ctx context.Context, prompt string) (string, error)
	// Provider returns the provider type for metrics.
	Provider() Provider
	// Model returns the model name for metrics.
	Model() string
	// Close releases any resources held by the generator.
	Close() error
}

// GenerationConfig tunes one model call.
type GenerationConfig struct {
	Temperature float64
	MaxTokens   int
}

// RetryConfig defines retry behavior per model.
// Uses AWS-recommended Full Jitter exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the number of attempts per model, including the first.
	MaxAttempts int
	// InitialDelay is the base delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
}

// Recorder receives per-call measurements. metrics.Metrics implements it.
type Recorder interface {
	RecordLLM(provider, model, status string, duration time.Duration)
	RecordLLMFallback(from, to string)
}

// Default model chains. The first element is the primary model.
var (
	DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	DefaultGroqModels   = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}

	// DefaultProviders is the default provider order.
	DefaultProviders = []Provider{ProviderGemini, ProviderGroq}
)

// Generation and retry defaults.
const (
	DefaultTemperature       = 0.4
	DefaultMaxTokens         = 1024
	DefaultMaxAttempts       = 1
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// DefaultRetryConfig returns the default retry configuration: one attempt
// per model.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

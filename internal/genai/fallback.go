package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
)

// FallbackGenerator tries a chain of generators in order:
//  1. the current model, retried with backoff per RetryConfig
//  2. the next model or provider in the chain, for fallback-worthy errors
//
// Permanent errors and cancellation stop the chain.
type FallbackGenerator struct {
	chain       []TextGenerator
	retryConfig RetryConfig
	recorder    Recorder
	callTimeout time.Duration // per attempt; 0 leaves only the caller's deadline
}

// NewFallbackGenerator creates a chain over generators. nil entries are
// skipped.
func NewFallbackGenerator(cfg RetryConfig, recorder Recorder, generators ...TextGenerator) *FallbackGenerator {
	chain := make([]TextGenerator, 0, len(generators))
	for _, g := range generators {
		if g != nil {
			chain = append(chain, g)
		}
	}
	return &FallbackGenerator{chain: chain, retryConfig: cfg, recorder: recorder}
}

// Generate returns the first successful output of the chain. When every
// generator fails the error wraps ErrLLMUnavailable and the last cause.
func (f *FallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if f == nil || len(f.chain) == 0 {
		return "", domerrors.ErrLLMUnavailable
	}

	var lastErr error
	for i, gen := range f.chain {
		if i > 0 {
			slog.InfoContext(ctx, "falling back to next generator",
				"from", f.chain[i-1].Provider(),
				"to", gen.Provider(),
				"model", gen.Model())
			f.recordFallback(f.chain[i-1], gen)
		}

		start := time.Now()
		var text string
		err := WithRetry(ctx, f.retryConfig, func(attempt int, err error) {
			slog.DebugContext(ctx, "retrying answer generation",
				"provider", gen.Provider(),
				"model", gen.Model(),
				"attempt", attempt,
				"error", err)
		}, func() error {
			callCtx, cancel := f.callContext(ctx)
			defer cancel()
			var genErr error
			text, genErr = gen.Generate(callCtx, prompt)
			return genErr
		})
		if err == nil {
			f.record(gen, "success", time.Since(start))
			return text, nil
		}

		f.record(gen, "error", time.Since(start))
		lastErr = err
		action := ClassifyError(err)
		slog.WarnContext(ctx, "generator failed",
			"provider", gen.Provider(),
			"model", gen.Model(),
			"action", action,
			"error", err)
		if IsPermanent(err) {
			break
		}
	}

	if errors.Is(lastErr, context.Canceled) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %w", domerrors.ErrLLMUnavailable, lastErr)
}

func (f *FallbackGenerator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, f.callTimeout)
}

func (f *FallbackGenerator) record(gen TextGenerator, status string, d time.Duration) {
	if f.recorder != nil {
		f.recorder.RecordLLM(gen.Provider().String(), gen.Model(), status, d)
	}
}

func (f *FallbackGenerator) recordFallback(from, to TextGenerator) {
	if f.recorder != nil {
		f.recorder.RecordLLMFallback(from.Provider().String(), to.Provider().String())
	}
}

// Provider returns the primary provider.
func (f *FallbackGenerator) Provider() Provider {
	if f == nil || len(f.chain) == 0 {
		return ""
	}
	return f.chain[0].Provider()
}

// Model returns the primary model.
func (f *FallbackGenerator) Model() string {
	if f == nil || len(f.chain) == 0 {
		return ""
	}
	return f.chain[0].Model()
}

// Len returns the chain length.
func (f *FallbackGenerator) Len() int {
	if f == nil {
		return 0
	}
	return len(f.chain)
}

// Close closes every generator of the chain.
func (f *FallbackGenerator) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, g := range f.chain {
		if err := g.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package genai

import (
	"context"
	"log/slog"

	"github.com/utsbot/uts-chatbot-go/internal/config"
)

// NewGenerator builds the generator chain described by cfg: every model of
// every provider with an API key, in provider order. It returns nil when no
// provider is usable, which callers treat as mock mode.
func NewGenerator(ctx context.Context, cfg config.LLMSettings, recorder Recorder) (*FallbackGenerator, error) {
	genCfg := GenerationConfig{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if genCfg.MaxTokens <= 0 {
		genCfg.MaxTokens = DefaultMaxTokens
	}

	providers := DefaultProviders
	if len(cfg.Providers) > 0 {
		providers = make([]Provider, 0, len(cfg.Providers))
		for _, p := range cfg.Providers {
			providers = append(providers, Provider(p))
		}
	}

	var chain []TextGenerator
	for _, provider := range providers {
		switch provider {
		case ProviderGemini:
			for _, m := range modelsOrDefault(cfg.GeminiModels, DefaultGeminiModels) {
				g, err := newGeminiGenerator(ctx, cfg.GeminiAPIKey, m, genCfg)
				if err != nil {
					slog.WarnContext(ctx, "failed to create gemini generator", "model", m, "error", err)
					continue
				}
				if g != nil {
					chain = append(chain, g)
				}
			}
		case ProviderGroq:
			for _, m := range modelsOrDefault(cfg.GroqModels, DefaultGroqModels) {
				g, err := newOpenAIGenerator(ProviderGroq, cfg.GroqAPIKey, m, genCfg)
				if err != nil {
					slog.WarnContext(ctx, "failed to create groq generator", "model", m, "error", err)
					continue
				}
				if g != nil {
					chain = append(chain, g)
				}
			}
		default:
			slog.WarnContext(ctx, "unknown LLM provider ignored", "provider", provider)
		}
	}

	if len(chain) == 0 {
		slog.InfoContext(ctx, "no LLM provider configured, answers use the evidence fallback")
		return nil, nil //nolint:nilnil // no provider is a valid configuration
	}

	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	retry.InitialDelay = config.LLMRetryInitial
	retry.MaxDelay = config.LLMRetryMax

	slog.InfoContext(ctx, "answer generator configured",
		"primary", chain[0].Provider(),
		"model", chain[0].Model(),
		"chainSize", len(chain))
	gen := NewFallbackGenerator(retry, recorder, chain...)
	gen.callTimeout = cfg.CallTimeout
	return gen, nil
}

func modelsOrDefault(models, defaults []string) []string {
	if len(models) > 0 {
		return models
	}
	return defaults
}

package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openaiGenerator generates answers through an OpenAI-compatible chat
// completions API (Groq).
type openaiGenerator struct {
	client   openai.Client
	model    string
	provider Provider
	config   GenerationConfig
}

// newOpenAIGenerator creates a generator for an OpenAI-compatible provider.
// Returns nil when apiKey is empty. extra options are appended after the
// provider defaults, so tests can point the client at a local server.
func newOpenAIGenerator(provider Provider, apiKey, model string, cfg GenerationConfig, extra ...option.RequestOption) (*openaiGenerator, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // provider disabled without a key
	}
	if !provider.IsOpenAICompatible() {
		return nil, fmt.Errorf("unsupported OpenAI-compatible provider: %s", provider)
	}
	baseURL := ProviderEndpoint[provider]
	if model == "" {
		model = DefaultGroqModels[0]
	}

	opts := append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, extra...)

	return &openaiGenerator{
		client:   openai.NewClient(opts...),
		model:    model,
		provider: provider,
		config:   cfg,
	}, nil
}

func (g *openaiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.config.Temperature),
		MaxTokens:   openai.Int(int64(g.config.MaxTokens)),
	}

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)
	if err != nil {
		slog.WarnContext(ctx, "answer generation API call failed",
			"provider", g.provider,
			"model", g.model,
			"prompt_length", len(prompt),
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", WrapError(err, g.provider, g.model)
	}

	if len(resp.Choices) == 0 {
		return "", WrapError(ErrEmptyResponse, g.provider, g.model)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", WrapError(ErrEmptyResponse, g.provider, g.model)
	}

	if resp.Usage.TotalTokens > 0 {
		slog.DebugContext(ctx, "answer generation completed",
			"provider", g.provider,
			"model", g.model,
			"input_tokens", resp.Usage.PromptTokens,
			"output_tokens", resp.Usage.CompletionTokens,
			"total_tokens", resp.Usage.TotalTokens,
			"duration_ms", duration.Milliseconds())
	}
	return text, nil
}

func (g *openaiGenerator) Provider() Provider { return g.provider }

func (g *openaiGenerator) Model() string { return g.model }

// Close is a no-op: the openai-go client needs no cleanup.
func (g *openaiGenerator) Close() error { return nil }

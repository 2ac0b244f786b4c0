package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiGenerator generates answers with one Gemini model.
type geminiGenerator struct {
	client *genai.Client
	model  string
	config GenerationConfig
}

// newGeminiGenerator creates a Gemini generator. Returns nil when apiKey is
// empty.
func newGeminiGenerator(ctx context.Context, apiKey, model string, cfg GenerationConfig) (*geminiGenerator, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // provider disabled without a key
	}
	if model == "" {
		model = DefaultGeminiModels[0]
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &geminiGenerator{client: client, model: model, config: cfg}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.config.Temperature)),
		MaxOutputTokens: int32(g.config.MaxTokens),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	duration := time.Since(start)
	if err != nil {
		slog.WarnContext(ctx, "answer generation API call failed",
			"provider", ProviderGemini,
			"model", g.model,
			"prompt_length", len(prompt),
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", WrapError(err, ProviderGemini, g.model)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", WrapError(ErrEmptyResponse, ProviderGemini, g.model)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", WrapError(ErrEmptyResponse, ProviderGemini, g.model)
	}

	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "answer generation completed",
			"provider", ProviderGemini,
			"model", g.model,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"total_tokens", resp.UsageMetadata.TotalTokenCount,
			"duration_ms", duration.Milliseconds())
	}
	return text, nil
}

func (g *geminiGenerator) Provider() Provider { return ProviderGemini }

func (g *geminiGenerator) Model() string { return g.model }

// Close is a no-op: genai.Client holds no resources that need releasing.
func (g *geminiGenerator) Close() error { return nil }

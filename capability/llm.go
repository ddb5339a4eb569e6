// Package capability wraps the external services the engines depend on:
// the text-generation model, embedding models, the CLIP sidecar and the
// media tooling (ffmpeg, ffprobe, yt-dlp). Clients are created once at
// startup and passed into components by reference.
package capability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/config"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
)

// NewOpenAIClient builds the shared API client from configuration.
func NewOpenAIClient(cfg *config.Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// OpenAIGenerator implements core.TextGenerator over chat completions.
type OpenAIGenerator struct {
	cli         *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

func NewOpenAIGenerator(cli *openai.Client, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		cli:         cli,
		model:       model,
		maxTokens:   1000,
		temperature: 0.3,
		timeout:     2 * time.Minute,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}
	resp, err := g.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyAPIError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// OpenAITextEmbedder embeds text with the configured embedding model. Used
// for semantic ranking of transcript excerpts; not part of the cross-modal
// frame space.
type OpenAITextEmbedder struct {
	cli     *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAITextEmbedder(cli *openai.Client, model string) *OpenAITextEmbedder {
	return &OpenAITextEmbedder{cli: cli, model: model, timeout: 30 * time.Second}
}

func (e *OpenAITextEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	resp, err := e.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, classifyAPIError("embedding", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding API returned no data")
	}
	return resp.Data[0].Embedding, nil
}

// classifyAPIError normalizes API failures and flags the retryable ones.
// Rate limits and server errors get one retry; everything else surfaces
// immediately.
func classifyAPIError(op string, err error) error {
	wrapped := fmt.Errorf("%s failed: %w", op, err)
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return core.MarkTransient(wrapped)
		case apiErr.HTTPStatusCode >= 500:
			return core.MarkTransient(wrapped)
		default:
			return wrapped
		}
	}
	// Network-level failures have no API status; treat them as transient.
	return core.MarkTransient(wrapped)
}

// Package gemini implements the evaluator port on Google's Gemini API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/fairyhunter13/resume-match-engine/internal/adapter/observability"
	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// Client sends evaluation prompts to a Gemini model. The raw text is
// returned untouched; sanitization happens downstream.
type Client struct {
	client *genai.Client
	model  string
}

// New constructs a Client. The caller owns Close.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("op=gemini.new: %w: GEMINI_API_KEY missing", domain.ErrInvalidArgument)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("op=gemini.new: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() {
	if c.client != nil {
		_ = c.client.Close()
	}
}

// Evaluate sends the prompt and returns the first candidate's text.
func (c *Client) Evaluate(ctx domain.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.ResponseMIMEType = "application/json"

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	observability.AIRequestsTotal.WithLabelValues("gemini", "generate").Inc()
	observability.AIRequestDuration.WithLabelValues("gemini", "generate").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("op=gemini.evaluate: %w", err)
	}
	if resp.UsageMetadata != nil {
		slog.Debug("gemini call",
			slog.String("model", c.model),
			slog.Int("input_tokens", int(resp.UsageMetadata.PromptTokenCount)),
			slog.Int("output_tokens", int(resp.UsageMetadata.CandidatesTokenCount)))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("op=gemini.evaluate: empty response")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("op=gemini.evaluate: unexpected response part type %T", resp.Candidates[0].Content.Parts[0])
	}
	return string(text), nil
}

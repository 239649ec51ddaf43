// Package openai implements the embedding provider port against an
// OpenAI-compatible embeddings endpoint.
package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/resume-match-engine/internal/adapter/observability"
	"github.com/fairyhunter13/resume-match-engine/internal/config"
	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// Client calls the embeddings endpoint with retry and backoff.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Client from config.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) backoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsedTime, initialInterval, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsedTime
	expo.InitialInterval = initialInterval
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

// Embed calls the embeddings endpoint and returns one vector per input
// text. 429 and 5xx responses are retried; other 4xx responses fail
// immediately. All failures map to ErrEmbeddingUnavailable.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.cfg.OpenAIAPIKey == "" || c.cfg.EmbeddingsModel == "" {
		slog.Error("embeddings credentials missing", slog.String("provider", "openai"), slog.Bool("has_api_key", c.cfg.OpenAIAPIKey != ""), slog.String("model", c.cfg.EmbeddingsModel))
		return nil, fmt.Errorf("%w: OPENAI_API_KEY or EMBEDDINGS_MODEL missing", domain.ErrEmbeddingUnavailable)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"model": c.cfg.EmbeddingsModel,
		"input": texts,
	}
	b, _ := json.Marshal(body)
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	endpoint := c.cfg.OpenAIBaseURL + "/embeddings"
	op := func() error {
		start := time.Now()
		// Recreate request each attempt to avoid reusing consumed bodies
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues("openai", "embed").Inc()
		observability.AIRequestDuration.WithLabelValues("openai", "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("embeddings provider rate limited", slog.String("provider", "openai"), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			snippet := readSnippet(resp.Body, 512)
			slog.Warn("embeddings provider 4xx", slog.String("provider", "openai"), slog.Int("status", resp.StatusCode), slog.String("endpoint", endpoint), slog.String("body", snippet))
			return backoff.Permanent(fmt.Errorf("embed status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet := readSnippet(resp.Body, 512)
			slog.Error("embeddings provider non-2xx", slog.String("provider", "openai"), slog.Int("status", resp.StatusCode), slog.String("endpoint", endpoint), slog.String("body", snippet))
			return fmt.Errorf("embed status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			slog.Error("embeddings decode error", slog.String("provider", "openai"), slog.Any("error", err))
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(c.backoffConfig(), ctx)); err != nil {
		return nil, fmt.Errorf("op=openai.embed: %w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("op=openai.embed: %w: got %d vectors for %d texts", domain.ErrEmbeddingUnavailable, len(out.Data), len(texts))
	}
	res := make([][]float32, len(out.Data))
	for i := range out.Data {
		v := make([]float32, len(out.Data[i].Embedding))
		for j := range out.Data[i].Embedding {
			v[j] = float32(out.Data[i].Embedding[j])
		}
		res[i] = v
	}
	return res, nil
}

// readSnippet reads up to n bytes from r for diagnostic logging.
func readSnippet(r io.Reader, n int) string {
	if r == nil || n <= 0 {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, int64(n)))
	return string(b)
}

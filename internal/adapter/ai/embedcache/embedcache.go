// Package embedcache wraps an embedding provider with a Redis-backed
// vector cache keyed by text hash. It is safe for concurrent use.
package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/resume-match-engine/internal/adapter/observability"
	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

const keyPrefix = "embed:"

// Provider decorates a base EmbeddingProvider. Cache failures are
// logged and treated as misses; a broken Redis never fails an Embed.
type Provider struct {
	base domain.EmbeddingProvider
	rdb  *redis.Client
	ttl  time.Duration
}

// New wraps base with a Redis vector cache. A nil client returns base unmodified.
func New(base domain.EmbeddingProvider, rdb *redis.Client, ttl time.Duration) domain.EmbeddingProvider {
	if rdb == nil || base == nil {
		return base
	}
	return &Provider{base: base, rdb: rdb, ttl: ttl}
}

func keyFor(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Embed serves cached vectors where possible and fetches only the
// misses from the base provider, preserving input order.
func (p *Provider) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	missIdx := make([]int, 0)
	missTexts := make([]string, 0)
	for i, t := range texts {
		v, ok := p.lookup(ctx, t)
		if ok {
			observability.EmbedCacheHitsTotal.WithLabelValues("hit").Inc()
			res[i] = v
			continue
		}
		observability.EmbedCacheHitsTotal.WithLabelValues("miss").Inc()
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missIdx) > 0 {
		vecs, err := p.base.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, fmt.Errorf("op=embedcache.embed: %w: got %d vectors for %d texts", domain.ErrEmbeddingUnavailable, len(vecs), len(missTexts))
		}
		for j, idx := range missIdx {
			res[idx] = vecs[j]
			p.store(ctx, missTexts[j], vecs[j])
		}
	}
	return res, nil
}

func (p *Provider) lookup(ctx domain.Context, text string) ([]float32, bool) {
	b, err := p.rdb.Get(ctx, keyFor(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("embed cache lookup failed", slog.Any("error", err))
		}
		return nil, false
	}
	var v []float32
	if err := json.Unmarshal(b, &v); err != nil {
		slog.Warn("embed cache entry corrupt", slog.Any("error", err))
		return nil, false
	}
	return v, true
}

func (p *Provider) store(ctx domain.Context, text string, vec []float32) {
	b, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := p.rdb.Set(ctx, keyFor(text), b, p.ttl).Err(); err != nil {
		slog.Warn("embed cache store failed", slog.Any("error", err))
	}
}

// Package match implements the numeric heart of the engine: field
// embedding, weighted cross-field similarity, and candidate ranking.
package match

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// Embedder maps canonical field text to fixed-dimension vectors through a
// pluggable provider. Blank text maps to the zero vector without touching
// the provider.
type Embedder struct {
	Provider domain.EmbeddingProvider
	// Dim is the provider's vector dimensionality, used for zero vectors.
	Dim int
}

// NewEmbedder constructs an Embedder for the given provider and dimensionality.
func NewEmbedder(p domain.EmbeddingProvider, dim int) *Embedder {
	return &Embedder{Provider: p, Dim: dim}
}

// Embed converts one text to a vector. Whitespace-only input yields the
// zero vector and never reaches the provider.
func (e *Embedder) Embed(ctx domain.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.Dim), nil
	}
	vecs, err := e.Provider.Embed(ctx, []string{strings.TrimSpace(text)})
	if err != nil {
		return nil, fmt.Errorf("op=match.Embed: %w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("op=match.Embed: %w: provider returned %d vectors for 1 text", domain.ErrEmbeddingUnavailable, len(vecs))
	}
	return vecs[0], nil
}

// EmbedRecord embeds every canonical field of a record in one provider
// call. The result always covers the full field set; blank fields carry
// the zero vector. Pure with respect to the record; caching belongs to
// decorating adapters.
func (e *Embedder) EmbedRecord(ctx domain.Context, rec domain.CanonicalRecord) (domain.FieldVectorSet, error) {
	out := make(domain.FieldVectorSet, 5)
	var texts []string
	var pending []domain.Field
	for _, f := range domain.CanonicalFields() {
		t := strings.TrimSpace(rec.Fields[f])
		if t == "" {
			out[f] = make([]float32, e.Dim)
			continue
		}
		texts = append(texts, t)
		pending = append(pending, f)
	}
	if len(texts) == 0 {
		return out, nil
	}
	vecs, err := e.Provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("op=match.EmbedRecord: %w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("op=match.EmbedRecord: %w: provider returned %d vectors for %d texts", domain.ErrEmbeddingUnavailable, len(vecs), len(texts))
	}
	for i, f := range pending {
		out[f] = vecs[i]
	}
	return out, nil
}

// Package domain holds the core entities and ports of the matching engine.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrEvaluatorDegraded    = errors.New("evaluator degraded")
	ErrSchemaInvalid        = errors.New("schema invalid")
	ErrInternal             = errors.New("internal error")
)

// RecordKind enumerates record kinds.
const (
	KindResume  = "resume"
	KindPosting = "posting"
)

// Field names one semantic component of a document. The set is fixed;
// a CanonicalRecord always carries every field, possibly empty.
type Field string

const (
	FieldSummary            Field = "summary"
	FieldSkills             Field = "skills"
	FieldNarrativePrimary   Field = "narrative_primary"
	FieldNarrativeSecondary Field = "narrative_secondary"
	FieldFullText           Field = "full_text"
)

// CanonicalFields returns the fixed enumerated field set in canonical order.
func CanonicalFields() []Field {
	return []Field{FieldSummary, FieldSkills, FieldNarrativePrimary, FieldNarrativeSecondary, FieldFullText}
}

// CanonicalRecord is the normalized, fixed-schema representation of a
// resume or posting. Fields always contains every canonical field name.
type CanonicalRecord struct {
	ID          string
	Kind        string
	Fields      map[Field]string
	RawSkills   []string
	ContentHash string
}

// NewCanonicalRecord returns a record with every canonical field present.
func NewCanonicalRecord(id, kind string) CanonicalRecord {
	f := make(map[Field]string, 5)
	for _, name := range CanonicalFields() {
		f[name] = ""
	}
	return CanonicalRecord{ID: id, Kind: kind, Fields: f}
}

// FieldVectorSet maps every canonical field to a vector of the provider's
// dimensionality. A blank field maps to the zero vector, never a missing entry.
type FieldVectorSet map[Field][]float32

// WeightPair binds a resume field to a posting field with a scoring weight.
type WeightPair struct {
	ResumeField  Field   `yaml:"resume_field"`
	PostingField Field   `yaml:"posting_field"`
	Weight       float64 `yaml:"weight"`
}

// Key returns the field-pair key used in MatchResult.FieldScores.
func (p WeightPair) Key() string {
	return string(p.ResumeField) + ":" + string(p.PostingField)
}

// WeightedScoreSpec is an ordered list of weighted field pairs.
// Invariants: weights non-negative, sum 1.0 within 1e-6, no pair reused.
type WeightedScoreSpec []WeightPair

// Validate checks the spec invariants.
func (s WeightedScoreSpec) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty weight spec", ErrInvalidArgument)
	}
	sum := 0.0
	seen := make(map[string]bool, len(s))
	for _, p := range s {
		if p.Weight < 0 {
			return fmt.Errorf("%w: negative weight for %s", ErrInvalidArgument, p.Key())
		}
		if seen[p.Key()] {
			return fmt.Errorf("%w: duplicate field pair %s", ErrInvalidArgument, p.Key())
		}
		seen[p.Key()] = true
		sum += p.Weight
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("%w: weights sum to %v, want 1.0", ErrInvalidArgument, sum)
	}
	return nil
}

// MatchResult is the scored, optionally explained outcome for one
// (resume, posting) pair. Immutable once finalized for a ComputedAt;
// recomputation replaces the cached record.
type MatchResult struct {
	ID             string
	ResumeID       string
	PostingID      string
	FieldScores    map[string]float64
	CompositeScore float64
	LLMScore       *int
	MatchedSkills  []string
	MissingSkills  []string
	Reason         string
	Degraded       bool
	ComputedAt     time.Time
}

// MatchRepository is the match store port: keyed cache of the last
// computed result per (resume_id, posting_id), overwrite semantics.
type MatchRepository interface {
	Get(ctx Context, resumeID, postingID string) (MatchResult, error)
	Put(ctx Context, r MatchResult) error
	ListByResume(ctx Context, resumeID string) ([]MatchResult, error)
	ListByPosting(ctx Context, postingID string) ([]MatchResult, error)
}

// RecordRepository stores canonical records and their field vectors so
// that rank and recompute flows can resolve ids.
type RecordRepository interface {
	PutRecord(ctx Context, rec CanonicalRecord, vecs FieldVectorSet) error
	GetRecord(ctx Context, id string) (CanonicalRecord, FieldVectorSet, error)
	ListByKind(ctx Context, kind string) ([]CanonicalRecord, error)
	VectorsFor(ctx Context, id string) (FieldVectorSet, error)
}

// EmbeddingProvider (port)
// Embed maps texts to fixed-dimension vectors; the dimensionality is
// constant for the provider's lifetime.
type EmbeddingProvider interface {
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// Evaluator (port)
// Evaluate sends a prompt to the natural-language evaluator and returns
// its raw text. The output may be ill-formed; sanitization is the
// caller's job.
type Evaluator interface {
	Evaluate(ctx Context, prompt string) (string, error)
}

// TextExtractor (port)
// ExtractPath extracts plain text from a file at path with the provided
// original filename. Fails with ErrUnsupportedFormat for unrecognized
// extensions.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// VectorStore (port)
// Persists a record's field vectors for external consumers; best-effort,
// must never fail a ranking.
type VectorStore interface {
	UpsertRecord(ctx Context, rec CanonicalRecord, vecs FieldVectorSet) error
}

// Context is an alias to context.Context; adapters and usecases pass it through.
type Context = context.Context

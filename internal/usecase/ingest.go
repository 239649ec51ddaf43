// Package usecase wires the parsing, embedding, scoring and evaluation
// layers into the operations the API exposes.
package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/internal/match"
	"github.com/fairyhunter13/resume-match-engine/internal/parse"
)

// IngestService normalizes raw document text, embeds it and stores the
// resulting record in the corpus.
type IngestService struct {
	Normalizer *parse.Normalizer
	Embedder   *match.Embedder
	Records    domain.RecordRepository
	// Vectors receives a best-effort copy of the field vectors; nil disables it.
	Vectors domain.VectorStore
}

// NewIngestService constructs an IngestService.
func NewIngestService(n *parse.Normalizer, e *match.Embedder, r domain.RecordRepository, v domain.VectorStore) IngestService {
	return IngestService{Normalizer: n, Embedder: e, Records: r, Vectors: v}
}

// IngestResume normalizes, embeds and stores one resume. An empty id
// gets a generated one. Returns the stored record.
func (s IngestService) IngestResume(ctx domain.Context, id, rawText string) (domain.CanonicalRecord, error) {
	return s.ingest(ctx, id, rawText, domain.KindResume)
}

// IngestPosting normalizes, embeds and stores one job posting.
func (s IngestService) IngestPosting(ctx domain.Context, id, rawText string) (domain.CanonicalRecord, error) {
	return s.ingest(ctx, id, rawText, domain.KindPosting)
}

func (s IngestService) ingest(ctx domain.Context, id, rawText, kind string) (domain.CanonicalRecord, error) {
	if strings.TrimSpace(rawText) == "" {
		return domain.CanonicalRecord{}, fmt.Errorf("op=ingest: %w: empty document text", domain.ErrInvalidArgument)
	}
	var rec domain.CanonicalRecord
	if kind == domain.KindResume {
		rec = s.Normalizer.Resume(ctx, rawText)
	} else {
		rec = s.Normalizer.Posting(ctx, rawText)
	}
	rec.ID = id
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	vecs, err := s.Embedder.EmbedRecord(ctx, rec)
	if err != nil {
		return domain.CanonicalRecord{}, fmt.Errorf("op=ingest: %w", err)
	}
	if err := s.Records.PutRecord(ctx, rec, vecs); err != nil {
		return domain.CanonicalRecord{}, fmt.Errorf("op=ingest: %w", err)
	}
	if s.Vectors != nil {
		if err := s.Vectors.UpsertRecord(ctx, rec, vecs); err != nil {
			slog.Warn("vector store upsert failed",
				slog.String("record_id", rec.ID),
				slog.String("kind", rec.Kind),
				slog.Any("error", err))
		}
	}
	slog.Info("document ingested",
		slog.String("record_id", rec.ID),
		slog.String("kind", rec.Kind),
		slog.Int("raw_skills", len(rec.RawSkills)))
	return rec, nil
}

// GetRecord loads a stored record by id.
func (s IngestService) GetRecord(ctx domain.Context, id string) (domain.CanonicalRecord, error) {
	rec, _, err := s.Records.GetRecord(ctx, id)
	return rec, err
}

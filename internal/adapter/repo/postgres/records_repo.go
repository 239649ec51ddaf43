package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// RecordRepo persists canonical records and their field vectors.
// Vectors ride along as JSONB; the vector database remains the home for
// similarity search, this table is the source of truth for recompute.
type RecordRepo struct{ Pool PgxPool }

// NewRecordRepo constructs a RecordRepo with the given pool.
func NewRecordRepo(p PgxPool) *RecordRepo { return &RecordRepo{Pool: p} }

// PutRecord inserts or replaces a record and its vectors.
func (r *RecordRepo) PutRecord(ctx domain.Context, rec domain.CanonicalRecord, vecs domain.FieldVectorSet) error {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.Put")
	defer span.End()
	if rec.ID == "" {
		return fmt.Errorf("op=record.put: %w: missing id", domain.ErrInvalidArgument)
	}
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("op=record.put: %w", err)
	}
	vectors, err := json.Marshal(vecs)
	if err != nil {
		return fmt.Errorf("op=record.put: %w", err)
	}
	q := `INSERT INTO records (id, kind, fields, raw_skills, content_hash, vectors, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (id)
	DO UPDATE SET kind=EXCLUDED.kind, fields=EXCLUDED.fields, raw_skills=EXCLUDED.raw_skills, content_hash=EXCLUDED.content_hash, vectors=EXCLUDED.vectors, updated_at=EXCLUDED.updated_at`
	_, err = r.Pool.Exec(ctx, q, rec.ID, rec.Kind, fields, rec.RawSkills, rec.ContentHash, vectors, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=record.put: %w", err)
	}
	return nil
}

// GetRecord loads a record and its vectors by id.
func (r *RecordRepo) GetRecord(ctx domain.Context, id string) (domain.CanonicalRecord, domain.FieldVectorSet, error) {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.Get")
	defer span.End()
	q := `SELECT id, kind, fields, raw_skills, content_hash, vectors FROM records WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var rec domain.CanonicalRecord
	var fields, vectors []byte
	if err := row.Scan(&rec.ID, &rec.Kind, &fields, &rec.RawSkills, &rec.ContentHash, &vectors); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CanonicalRecord{}, nil, fmt.Errorf("op=record.get: %w", domain.ErrNotFound)
		}
		return domain.CanonicalRecord{}, nil, fmt.Errorf("op=record.get: %w", err)
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return domain.CanonicalRecord{}, nil, fmt.Errorf("op=record.get: %w", err)
	}
	var vecs domain.FieldVectorSet
	if err := json.Unmarshal(vectors, &vecs); err != nil {
		return domain.CanonicalRecord{}, nil, fmt.Errorf("op=record.get: %w", err)
	}
	return rec, vecs, nil
}

// ListByKind returns all records of a kind ordered by id, without vectors.
func (r *RecordRepo) ListByKind(ctx domain.Context, kind string) ([]domain.CanonicalRecord, error) {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.ListByKind")
	defer span.End()
	q := `SELECT id, kind, fields, raw_skills, content_hash FROM records WHERE kind=$1 ORDER BY id`
	rows, err := r.Pool.Query(ctx, q, kind)
	if err != nil {
		return nil, fmt.Errorf("op=record.list: %w", err)
	}
	defer rows.Close()
	var out []domain.CanonicalRecord
	for rows.Next() {
		var rec domain.CanonicalRecord
		var fields []byte
		if err := rows.Scan(&rec.ID, &rec.Kind, &fields, &rec.RawSkills, &rec.ContentHash); err != nil {
			return nil, fmt.Errorf("op=record.list: %w", err)
		}
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("op=record.list: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=record.list: %w", err)
	}
	return out, nil
}

// VectorsFor loads only the stored vectors for a record.
func (r *RecordRepo) VectorsFor(ctx domain.Context, id string) (domain.FieldVectorSet, error) {
	tracer := otel.Tracer("repo.records")
	ctx, span := tracer.Start(ctx, "records.VectorsFor")
	defer span.End()
	q := `SELECT vectors FROM records WHERE id=$1`
	var vectors []byte
	if err := r.Pool.QueryRow(ctx, q, id).Scan(&vectors); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("op=record.vectors: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("op=record.vectors: %w", err)
	}
	var vecs domain.FieldVectorSet
	if err := json.Unmarshal(vectors, &vecs); err != nil {
		return nil, fmt.Errorf("op=record.vectors: %w", err)
	}
	return vecs, nil
}

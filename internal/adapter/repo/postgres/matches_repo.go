package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// MatchRepo persists and loads match results from PostgreSQL.
type MatchRepo struct{ Pool PgxPool }

// NewMatchRepo constructs a MatchRepo with the given pool.
func NewMatchRepo(p PgxPool) *MatchRepo { return &MatchRepo{Pool: p} }

// Put inserts or updates the result for its (resume_id, posting_id) pair.
func (r *MatchRepo) Put(ctx domain.Context, res domain.MatchResult) error {
	tracer := otel.Tracer("repo.matches")
	ctx, span := tracer.Start(ctx, "matches.Put")
	defer span.End()
	if res.ResumeID == "" || res.PostingID == "" {
		return fmt.Errorf("op=match.put: %w: missing resume or posting id", domain.ErrInvalidArgument)
	}
	scores, err := json.Marshal(res.FieldScores)
	if err != nil {
		return fmt.Errorf("op=match.put: %w", err)
	}
	q := `INSERT INTO matches (id, resume_id, posting_id, field_scores, composite_score, llm_score, matched_skills, missing_skills, reason, degraded, computed_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	ON CONFLICT (resume_id, posting_id)
	DO UPDATE SET id=EXCLUDED.id, field_scores=EXCLUDED.field_scores, composite_score=EXCLUDED.composite_score, llm_score=EXCLUDED.llm_score, matched_skills=EXCLUDED.matched_skills, missing_skills=EXCLUDED.missing_skills, reason=EXCLUDED.reason, degraded=EXCLUDED.degraded, computed_at=EXCLUDED.computed_at`
	_, err = r.Pool.Exec(ctx, q, res.ID, res.ResumeID, res.PostingID, scores, res.CompositeScore, res.LLMScore, res.MatchedSkills, res.MissingSkills, res.Reason, res.Degraded, res.ComputedAt)
	if err != nil {
		return fmt.Errorf("op=match.put: %w", err)
	}
	return nil
}

const matchColumns = `id, resume_id, posting_id, field_scores, composite_score, llm_score, matched_skills, missing_skills, reason, degraded, computed_at`

// Get loads the last stored result for the pair.
func (r *MatchRepo) Get(ctx domain.Context, resumeID, postingID string) (domain.MatchResult, error) {
	tracer := otel.Tracer("repo.matches")
	ctx, span := tracer.Start(ctx, "matches.Get")
	defer span.End()
	q := `SELECT ` + matchColumns + ` FROM matches WHERE resume_id=$1 AND posting_id=$2`
	res, err := scanMatch(r.Pool.QueryRow(ctx, q, resumeID, postingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MatchResult{}, fmt.Errorf("op=match.get: %w", domain.ErrNotFound)
		}
		return domain.MatchResult{}, fmt.Errorf("op=match.get: %w", err)
	}
	return res, nil
}

// ListByResume returns all stored results for a resume, ordered by posting id.
func (r *MatchRepo) ListByResume(ctx domain.Context, resumeID string) ([]domain.MatchResult, error) {
	q := `SELECT ` + matchColumns + ` FROM matches WHERE resume_id=$1 ORDER BY posting_id`
	return r.list(ctx, "matches.ListByResume", q, resumeID)
}

// ListByPosting returns all stored results for a posting, ordered by resume id.
func (r *MatchRepo) ListByPosting(ctx domain.Context, postingID string) ([]domain.MatchResult, error) {
	q := `SELECT ` + matchColumns + ` FROM matches WHERE posting_id=$1 ORDER BY resume_id`
	return r.list(ctx, "matches.ListByPosting", q, postingID)
}

func (r *MatchRepo) list(ctx domain.Context, spanName, q string, arg any) ([]domain.MatchResult, error) {
	tracer := otel.Tracer("repo.matches")
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	rows, err := r.Pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("op=match.list: %w", err)
	}
	defer rows.Close()
	var out []domain.MatchResult
	for rows.Next() {
		res, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("op=match.list: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=match.list: %w", err)
	}
	return out, nil
}

func scanMatch(row pgx.Row) (domain.MatchResult, error) {
	var res domain.MatchResult
	var scores []byte
	if err := row.Scan(&res.ID, &res.ResumeID, &res.PostingID, &scores, &res.CompositeScore, &res.LLMScore, &res.MatchedSkills, &res.MissingSkills, &res.Reason, &res.Degraded, &res.ComputedAt); err != nil {
		return domain.MatchResult{}, err
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &res.FieldScores); err != nil {
			return domain.MatchResult{}, err
		}
	}
	return res, nil
}

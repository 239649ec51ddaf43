package postgres

import (
	"context"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates a pgx connection pool from the provided DSN and returns it.
// Queries are traced through the pool's otelpgx tracer.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the tables this service needs when they do not
// exist yet. Idempotent; safe to run on every start.
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			fields JSONB NOT NULL,
			raw_skills TEXT[] NOT NULL DEFAULT '{}',
			content_hash TEXT NOT NULL,
			vectors JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS records_kind_idx ON records (kind)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT NOT NULL,
			resume_id TEXT NOT NULL,
			posting_id TEXT NOT NULL,
			field_scores JSONB NOT NULL DEFAULT '{}',
			composite_score DOUBLE PRECISION NOT NULL,
			llm_score INT,
			matched_skills TEXT[] NOT NULL DEFAULT '{}',
			missing_skills TEXT[] NOT NULL DEFAULT '{}',
			reason TEXT NOT NULL DEFAULT '',
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			computed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (resume_id, posting_id)
		)`,
		`CREATE INDEX IF NOT EXISTS matches_posting_idx ON matches (posting_id)`,
	}
	for _, q := range stmts {
		if _, err := pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

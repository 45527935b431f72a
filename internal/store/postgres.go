package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewatch/promptbench/internal/correlate"
)

// Postgres mirrors run output into request_samples and response_timings
// tables for cross-run queries. Optional; runs work without it.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// InsertSample records one classified request.
func (p *Postgres) InsertSample(ctx context.Context, runID, id, promptType, tier, timestamp string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO request_samples (run_id, request_id, prompt_type, match_tier, logged_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, request_id) DO NOTHING`,
		runID, id, promptType, tier, timestamp)
	if err != nil {
		return fmt.Errorf("insert sample %s: %w", id, err)
	}
	return nil
}

// InsertTiming records one correlated response. A nil ResponseTime is
// stored as NULL.
func (p *Postgres) InsertTiming(ctx context.Context, runID string, rec correlate.TimingRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO response_timings (run_id, request_id, prompt_type, request_at, response_at, response_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, request_id) DO NOTHING`,
		runID, rec.ID, rec.PromptType, rec.RequestTimestamp, rec.ResponseTimestamp, rec.ResponseTime)
	if err != nil {
		return fmt.Errorf("insert timing %s: %w", rec.ID, err)
	}
	return nil
}

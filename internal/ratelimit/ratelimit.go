// Package ratelimit throttles per-workspace job submissions with a
// Postgres sliding-window counter, adapted from the teacher's
// internal/ratelimit/ratelimit.go (tenant search limit -> workspace
// submission limit against the rate_limit_counters table).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Limiter enforces a per-workspace submission cap over a sliding window.
type Limiter struct {
	db     DB
	window time.Duration
}

func NewLimiter(db *pgxpool.Pool, window time.Duration) *Limiter {
	return &Limiter{db: db, window: window}
}

func NewLimiterWithDB(db DB, window time.Duration) *Limiter {
	return &Limiter{db: db, window: window}
}

// CheckSubmissionLimit atomically increments the workspace's submission
// counter and returns an error once limit is exceeded for the window.
// limit <= 0 disables the check for that workspace.
func (l *Limiter) CheckSubmissionLimit(ctx context.Context, workspaceID uuid.UUID, limit int) error {
	if limit <= 0 {
		return nil
	}

	now := time.Now()
	windowStart := now.Add(-l.window)
	key := fmt.Sprintf("submit_rate:%s", workspaceID)

	query := `
		WITH current_count AS (
			INSERT INTO rate_limit_counters (key, count, window_start, window_end, workspace_id)
			VALUES ($1, 1, $2, $3, $4)
			ON CONFLICT (key)
			DO UPDATE SET
				count = CASE
					WHEN rate_limit_counters.window_end < $2 THEN 1
					ELSE rate_limit_counters.count + 1
				END,
				window_start = CASE
					WHEN rate_limit_counters.window_end < $2 THEN $2
					ELSE rate_limit_counters.window_start
				END,
				window_end = $3
			RETURNING count, window_start
		)
		SELECT count FROM current_count
	`

	var count int
	if err := l.db.QueryRow(ctx, query, key, windowStart, now, workspaceID).Scan(&count); err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}

	if count > limit {
		return fmt.Errorf("rate limit exceeded: %d/%d submissions in window", count, limit)
	}

	return nil
}

// GetCurrentCount reports the workspace's current window count.
func (l *Limiter) GetCurrentCount(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	key := fmt.Sprintf("submit_rate:%s", workspaceID)
	windowStart := time.Now().Add(-l.window)

	query := `SELECT count FROM rate_limit_counters WHERE key = $1 AND window_end > $2`

	var count int
	if err := l.db.QueryRow(ctx, query, key, windowStart).Scan(&count); err != nil {
		return 0, nil
	}
	return count, nil
}

// ResetLimit clears a workspace's counter (admin operation).
func (l *Limiter) ResetLimit(ctx context.Context, workspaceID uuid.UUID) error {
	key := fmt.Sprintf("submit_rate:%s", workspaceID)
	_, err := l.db.Exec(ctx, `DELETE FROM rate_limit_counters WHERE key = $1`, key)
	return err
}

// CleanupExpired removes counters whose window closed over an hour ago,
// run periodically by the service's cron sweep.
func (l *Limiter) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := l.db.Exec(ctx, `DELETE FROM rate_limit_counters WHERE window_end < NOW() - INTERVAL '1 hour'`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

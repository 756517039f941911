package usagemetrics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the slice of pgxpool.Pool this package needs, narrow enough for
// pashagolub/pgxmock/v4 to stand in for in unit tests (the same shape as
// the teacher's internal/cache and internal/ratelimit DB interfaces).
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Repository persists execution and debounce counters against the ops
// schema (internal/database/migrations/000002_ops.up.sql).
type Repository struct {
	pool DB
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NewRepositoryWithDB constructs a Repository against any DB implementation,
// used by tests to inject a pgxmock pool.
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{pool: db}
}

// RecordExecution inserts one raw execution record, consumed later by
// RollupDaily. Grounded on the teacher's usage_daily write path
// (internal/usage/repository.go), adapted from a per-tenant counter to a
// per-job resource sample.
func (r *Repository) RecordExecution(ctx context.Context, rec ExecutionRecord) error {
	const query = `
		INSERT INTO execution_usage (id, workspace_id, job_id, wall_ms, memory_exhausted, had_result_stream, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query, id, rec.WorkspaceID, rec.JobID, rec.WallMs, rec.MemoryExhausted, rec.HadResultStream, createdAt)
	if err != nil {
		return fmt.Errorf("record execution usage: %w", err)
	}
	return nil
}

// RecordDebounceDecision increments today's debounce counters for a
// workspace. kind is one of "opened", "coalesced", "reset".
func (r *Repository) RecordDebounceDecision(ctx context.Context, workspaceID uuid.UUID, kind string, now time.Time) error {
	day := now.UTC().Truncate(24 * time.Hour)

	var column string
	switch kind {
	case "opened":
		column = "batches_opened"
	case "coalesced":
		column = "jobs_coalesced"
	case "reset":
		column = "forced_resets"
	default:
		return fmt.Errorf("record debounce decision: unknown kind %q", kind)
	}

	query := fmt.Sprintf(`
		INSERT INTO debounce_metrics_daily (workspace_id, day, %s)
		VALUES ($1, $2, 1)
		ON CONFLICT (workspace_id, day) DO UPDATE SET %s = debounce_metrics_daily.%s + 1
	`, column, column, column)

	if _, err := r.pool.Exec(ctx, query, workspaceID, day); err != nil {
		return fmt.Errorf("record debounce decision: %w", err)
	}
	return nil
}

// RollupDaily folds every execution_usage row for `day` into
// execution_usage_daily, run by Aggregator on its interval (spec.md's
// ambient metrics concern, not a named spec.md operation).
func (r *Repository) RollupDaily(ctx context.Context, day time.Time) (int64, error) {
	const query = `
		INSERT INTO execution_usage_daily (workspace_id, day, job_count, total_wall_ms, memory_exhaustion_count)
		SELECT
			workspace_id,
			date_trunc('day', created_at) AS day,
			COUNT(*),
			COALESCE(SUM(wall_ms), 0),
			COUNT(*) FILTER (WHERE memory_exhausted)
		FROM execution_usage
		WHERE date_trunc('day', created_at) = date_trunc('day', $1::timestamptz)
		GROUP BY workspace_id, date_trunc('day', created_at)
		ON CONFLICT (workspace_id, day) DO UPDATE SET
			job_count = EXCLUDED.job_count,
			total_wall_ms = EXCLUDED.total_wall_ms,
			memory_exhaustion_count = EXCLUDED.memory_exhaustion_count
	`

	tag, err := r.pool.Exec(ctx, query, day)
	if err != nil {
		return 0, fmt.Errorf("rollup daily execution usage: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOldExecutions prunes raw execution_usage rows older than retention,
// mirroring the teacher's metrics.Aggregator cleanup step.
func (r *Repository) DeleteOldExecutions(ctx context.Context, retention time.Duration) (int64, error) {
	const query = `DELETE FROM execution_usage WHERE created_at < $1`
	cutoff := time.Now().UTC().Add(-retention)

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old execution usage: %w", err)
	}
	return tag.RowsAffected(), nil
}

package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the slice of pgxpool.Pool this package needs, narrow enough for
// pashagolub/pgxmock/v4 to stand in for in unit tests (the same shape as
// the teacher's internal/cache and internal/ratelimit DB interfaces).
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// MetricSource implements MetricsGetter against taskforge's own tables:
// internal/usagemetrics' execution_usage/debounce_metrics_daily and
// internal/debounce's debounce_records. The teacher's own MetricsGetter
// implementation queried tenant-metric tables outside this retrieval
// pack, so this is written fresh against this system's schema rather than
// adapted line-for-line.
type MetricSource struct {
	db DB
}

func NewMetricSource(pool *pgxpool.Pool) *MetricSource {
	return &MetricSource{db: pool}
}

// NewMetricSourceWithDB constructs a MetricSource against any DB
// implementation, used by tests to inject a pgxmock pool.
func NewMetricSourceWithDB(db DB) *MetricSource {
	return &MetricSource{db: db}
}

func (m *MetricSource) GetMetricValue(ctx context.Context, workspaceID uuid.UUID, metricName, aggregation string, windowStart, windowEnd time.Time) (float64, error) {
	switch metricName {
	case "executions":
		return m.executionAggregate(ctx, workspaceID, windowStart, windowEnd, "COUNT(*)")
	case "memory_exhaustions":
		return m.executionAggregate(ctx, workspaceID, windowStart, windowEnd, "COUNT(*) FILTER (WHERE memory_exhausted)")
	case "avg_wall_ms":
		return m.executionAggregate(ctx, workspaceID, windowStart, windowEnd, "COALESCE(AVG(wall_ms), 0)")
	case "forced_resets":
		return m.debounceDailyMetric(ctx, workspaceID, windowStart, windowEnd, "forced_resets")
	case "jobs_coalesced":
		return m.debounceDailyMetric(ctx, workspaceID, windowStart, windowEnd, "jobs_coalesced")
	case "stale_batches":
		return m.staleBatchCount(ctx, workspaceID, windowStart)
	default:
		return 0, fmt.Errorf("unknown metric %q", metricName)
	}
}

func (m *MetricSource) executionAggregate(ctx context.Context, workspaceID uuid.UUID, windowStart, windowEnd time.Time, expr string) (float64, error) {
	query := fmt.Sprintf(`SELECT %s FROM execution_usage WHERE workspace_id = $1 AND created_at BETWEEN $2 AND $3`, expr)

	var value float64
	if err := m.db.QueryRow(ctx, query, workspaceID, windowStart, windowEnd).Scan(&value); err != nil {
		return 0, fmt.Errorf("query execution_usage: %w", err)
	}
	return value, nil
}

// debounceDailyMetric sums a debounce_metrics_daily column across every day
// the window touches; the table is bucketed by day, so sub-day windows
// still resolve, just at day granularity.
func (m *MetricSource) debounceDailyMetric(ctx context.Context, workspaceID uuid.UUID, windowStart, windowEnd time.Time, column string) (float64, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(%s), 0) FROM debounce_metrics_daily
		WHERE workspace_id = $1 AND day BETWEEN date_trunc('day', $2::timestamptz) AND date_trunc('day', $3::timestamptz)
	`, column)

	var value float64
	if err := m.db.QueryRow(ctx, query, workspaceID, windowStart, windowEnd).Scan(&value); err != nil {
		return 0, fmt.Errorf("query debounce_metrics_daily: %w", err)
	}
	return value, nil
}

// staleBatchCount counts open debounce batches whose first member arrived
// before windowStart: a batch that has been accumulating longer than the
// alert's window without completing.
func (m *MetricSource) staleBatchCount(ctx context.Context, workspaceID uuid.UUID, windowStart time.Time) (float64, error) {
	const query = `SELECT COUNT(*) FROM debounce_records WHERE workspace_id = $1 AND first_started_at < $2`

	var value float64
	if err := m.db.QueryRow(ctx, query, workspaceID, windowStart).Scan(&value); err != nil {
		return 0, fmt.Errorf("query debounce_records: %w", err)
	}
	return value, nil
}

package alert

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricSource_GetMetricValue_Executions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	start := time.Now().Add(-time.Hour)
	end := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM execution_usage`).
		WithArgs(workspaceID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(float64(12)))

	src := NewMetricSourceWithDB(mock)
	value, err := src.GetMetricValue(context.Background(), workspaceID, "executions", "count", start, end)
	require.NoError(t, err)
	assert.Equal(t, float64(12), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricSource_GetMetricValue_ForcedResets(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	start := time.Now().Add(-24 * time.Hour)
	end := time.Now()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(forced_resets\), 0\) FROM debounce_metrics_daily`).
		WithArgs(workspaceID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(float64(3)))

	src := NewMetricSourceWithDB(mock)
	value, err := src.GetMetricValue(context.Background(), workspaceID, "forced_resets", "sum", start, end)
	require.NoError(t, err)
	assert.Equal(t, float64(3), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricSource_GetMetricValue_StaleBatches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	start := time.Now().Add(-10 * time.Minute)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM debounce_records`).
		WithArgs(workspaceID, start).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(float64(1)))

	src := NewMetricSourceWithDB(mock)
	value, err := src.GetMetricValue(context.Background(), workspaceID, "stale_batches", "count", start, time.Now())
	require.NoError(t, err)
	assert.Equal(t, float64(1), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricSource_GetMetricValue_Unknown(t *testing.T) {
	src := NewMetricSourceWithDB(nil)
	_, err := src.GetMetricValue(context.Background(), uuid.New(), "not_a_metric", "sum", time.Now(), time.Now())
	require.Error(t, err)
}

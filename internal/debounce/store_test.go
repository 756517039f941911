package debounce

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Upsert_NewRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	jobID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{"previous_job_id", "batch_id", "debounced_times", "first_started_at", "was_insert"}).
		AddRow(nil, int64(1), 0, now, true)

	mock.ExpectQuery(`INSERT INTO debounce_records`).
		WithArgs(workspaceID, "k", jobID, now).
		WillReturnRows(rows)

	store := NewStore()
	res, err := store.Upsert(context.Background(), mock, workspaceID, "k", jobID, now)
	require.NoError(t, err)

	assert.True(t, res.IsNew)
	assert.Nil(t, res.PreviousJobID)
	assert.Equal(t, int64(1), res.BatchID)
	assert.Equal(t, 0, res.DebouncedTimes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Upsert_Coalesce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	prevJobID := uuid.New()
	newJobID := uuid.New()
	now := time.Now()
	firstStarted := now.Add(-30 * time.Second)

	rows := pgxmock.NewRows([]string{"previous_job_id", "batch_id", "debounced_times", "first_started_at", "was_insert"}).
		AddRow(prevJobID, int64(1), 1, firstStarted, false)

	mock.ExpectQuery(`INSERT INTO debounce_records`).
		WithArgs(workspaceID, "k", newJobID, now).
		WillReturnRows(rows)

	store := NewStore()
	res, err := store.Upsert(context.Background(), mock, workspaceID, "k", newJobID, now)
	require.NoError(t, err)

	assert.False(t, res.IsNew)
	require.NotNil(t, res.PreviousJobID)
	assert.Equal(t, prevJobID, *res.PreviousJobID)
	assert.Equal(t, 1, res.DebouncedTimes)
	assert.Equal(t, firstStarted, res.FirstStartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Reset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	jobID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{"batch_id", "debounced_times", "first_started_at", "was_insert"}).
		AddRow(int64(2), 0, now, false)

	mock.ExpectQuery(`INSERT INTO debounce_records`).
		WithArgs(workspaceID, "k", jobID, now).
		WillReturnRows(rows)

	store := NewStore()
	res, err := store.Reset(context.Background(), mock, workspaceID, "k", jobID, now)
	require.NoError(t, err)

	assert.Nil(t, res.PreviousJobID)
	assert.Equal(t, int64(2), res.BatchID)
	assert.Equal(t, 0, res.DebouncedTimes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package debounce

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

func TestBatchTracker_Record_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	jobID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{"batch_id"}).AddRow(int64(1))
	mock.ExpectQuery(`INSERT INTO debounce_batch_members`).
		WithArgs(jobID, workspaceID, "k", int64(1), now).
		WillReturnRows(rows)

	tracker := NewBatchTracker()
	err = tracker.Record(context.Background(), mock, workspaceID, "k", jobID, 1, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchTracker_Record_ConflictWithOtherBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	jobID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{"batch_id"}).AddRow(int64(7))
	mock.ExpectQuery(`INSERT INTO debounce_batch_members`).
		WithArgs(jobID, workspaceID, "k", int64(1), now).
		WillReturnRows(rows)

	tracker := NewBatchTracker()
	err = tracker.Record(context.Background(), mock, workspaceID, "k", jobID, 1, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBatchMembershipConflict)
}

func TestBatchTracker_Collect_OrderedBySeq(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	j1, j2, j3 := uuid.New(), uuid.New(), uuid.New()

	rows := pgxmock.NewRows([]string{"job_id"}).AddRow(j1).AddRow(j2).AddRow(j3)
	mock.ExpectQuery(`SELECT job_id`).
		WithArgs(workspaceID, "k", int64(5)).
		WillReturnRows(rows)

	tracker := NewBatchTracker()
	members, err := tracker.Collect(context.Background(), mock, workspaceID, "k", 5)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{j1, j2, j3}, members)
}

package debounce

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

// TestAccumulator_MergesAcrossBatch covers testable property 6 / S4: member
// arg arrays concatenate in insertion order into the survivor's args.
func TestAccumulator_MergesAcrossBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	j1, j2, j3 := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT job_id`).
		WithArgs(workspaceID, "k", int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"job_id"}).AddRow(j1).AddRow(j2).AddRow(j3))

	mock.ExpectQuery(`SELECT id, args FROM jobs`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "args"}).
			AddRow(j1, []byte(`{"items":["a","b"],"other":"x"}`)).
			AddRow(j2, []byte(`{"items":["c"],"other":"x"}`)).
			AddRow(j3, []byte(`{"items":["d","e","f"],"other":"x"}`)))

	survivorArgs := domain.Args{"items": []byte(`["d","e","f"]`), "other": []byte(`"x"`)}

	acc := NewAccumulator(NewBatchTracker(), NewJobCompleter())
	err = acc.Accumulate(context.Background(), mock, workspaceID, "k", 1, []string{"items"}, survivorArgs)
	require.NoError(t, err)

	assert.JSONEq(t, `["a","b","c","d","e","f"]`, string(survivorArgs["items"]))
	assert.JSONEq(t, `"x"`, string(survivorArgs["other"]))
}

func TestAccumulator_SkipsMissingAndNonArrayMembers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workspaceID := uuid.New()
	j1, j2 := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT job_id`).
		WithArgs(workspaceID, "k", int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"job_id"}).AddRow(j1).AddRow(j2))

	mock.ExpectQuery(`SELECT id, args FROM jobs`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "args"}).
			AddRow(j1, []byte(`{"items":"not-an-array"}`)).
			AddRow(j2, []byte(`{}`)))

	survivorArgs := domain.Args{}

	acc := NewAccumulator(NewBatchTracker(), NewJobCompleter())
	err = acc.Accumulate(context.Background(), mock, workspaceID, "k", 1, []string{"items"}, survivorArgs)
	require.NoError(t, err)

	assert.JSONEq(t, `[]`, string(survivorArgs["items"]))
}

func TestAccumulator_NoopWhenNoNamesConfigured(t *testing.T) {
	acc := NewAccumulator(NewBatchTracker(), NewJobCompleter())
	survivorArgs := domain.Args{"x": []byte(`1`)}
	err := acc.Accumulate(context.Background(), nil, uuid.New(), "k", 1, nil, survivorArgs)
	require.NoError(t, err)
	assert.Equal(t, domain.Args{"x": []byte(`1`)}, survivorArgs)
}

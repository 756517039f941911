package debounce

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

// Store persists one row per (workspace, key), tracking the current
// survivor job, batch id, and coalescing counters (spec.md §4.2). The
// unique constraint on (workspace_id, key) is the correctness anchor:
// concurrent upserts on the same key serialize at the database row lock.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Upsert inserts a fresh record if none exists, or coalesces the job into
// the existing one: the old job_id becomes previous_job_id, debounced_times
// increments, batch_id and first_started_at are preserved.
func (s *Store) Upsert(ctx context.Context, q Querier, workspaceID uuid.UUID, key string, newJobID uuid.UUID, now time.Time) (*domain.UpsertResult, error) {
	const query = `
		INSERT INTO debounce_records (workspace_id, key, job_id, previous_job_id, first_started_at, batch_id, debounced_times)
		VALUES ($1, $2, $3, NULL, $4, 1, 0)
		ON CONFLICT (workspace_id, key) DO UPDATE SET
			previous_job_id = debounce_records.job_id,
			job_id = EXCLUDED.job_id,
			debounced_times = debounce_records.debounced_times + 1
		RETURNING previous_job_id, batch_id, debounced_times, first_started_at, (xmax = 0) AS was_insert
	`

	var res domain.UpsertResult
	var previousJobID *uuid.UUID
	var wasInsert bool

	err := q.QueryRow(ctx, query, workspaceID, key, newJobID, now).Scan(
		&previousJobID, &res.BatchID, &res.DebouncedTimes, &res.FirstStartedAt, &wasInsert,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert debounce record: %w", err)
	}

	res.IsNew = wasInsert
	res.PreviousJobID = previousJobID

	return &res, nil
}

// Reset clears the batch and starts a fresh one with newJobID as its sole
// member, incrementing batch_id so the old cohort is no longer addressable.
func (s *Store) Reset(ctx context.Context, q Querier, workspaceID uuid.UUID, key string, newJobID uuid.UUID, now time.Time) (*domain.UpsertResult, error) {
	const query = `
		INSERT INTO debounce_records (workspace_id, key, job_id, previous_job_id, first_started_at, batch_id, debounced_times)
		VALUES ($1, $2, $3, NULL, $4, 1, 0)
		ON CONFLICT (workspace_id, key) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			previous_job_id = NULL,
			debounced_times = 0,
			batch_id = debounce_records.batch_id + 1,
			first_started_at = EXCLUDED.first_started_at
		RETURNING batch_id, debounced_times, first_started_at, (xmax = 0) AS was_insert
	`

	var res domain.UpsertResult
	var wasInsert bool

	err := q.QueryRow(ctx, query, workspaceID, key, newJobID, now).Scan(
		&res.BatchID, &res.DebouncedTimes, &res.FirstStartedAt, &wasInsert,
	)
	if err != nil {
		return nil, fmt.Errorf("reset debounce record: %w", err)
	}

	res.IsNew = wasInsert
	res.PreviousJobID = nil

	return &res, nil
}

// Read is a non-locking lookup for reporting; it never mutates state.
func (s *Store) Read(ctx context.Context, q Querier, workspaceID uuid.UUID, key string) (*domain.DebounceRecord, error) {
	const query = `
		SELECT workspace_id, key, job_id, previous_job_id, first_started_at, batch_id, debounced_times
		FROM debounce_records
		WHERE workspace_id = $1 AND key = $2
	`

	var rec domain.DebounceRecord
	err := q.QueryRow(ctx, query, workspaceID, key).Scan(
		&rec.WorkspaceID, &rec.Key, &rec.JobID, &rec.PreviousJobID,
		&rec.FirstStartedAt, &rec.BatchID, &rec.DebouncedTimes,
	)
	if err != nil {
		return nil, fmt.Errorf("read debounce record: %w", err)
	}

	return &rec, nil
}

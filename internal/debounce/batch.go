package debounce

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

// BatchTracker records membership of every push touching the debounce
// engine, so the survivor can later enumerate its cohort (spec.md §4.3).
type BatchTracker struct{}

func NewBatchTracker() *BatchTracker {
	return &BatchTracker{}
}

// Record inserts a membership row, idempotent on job_id. If the job was
// already recorded under a different batch, it returns
// domain.ErrBatchMembershipConflict rather than silently reassigning it.
func (t *BatchTracker) Record(ctx context.Context, q Querier, workspaceID uuid.UUID, key string, jobID uuid.UUID, batchID int64, now time.Time) error {
	const query = `
		WITH next_seq AS (
			SELECT COALESCE(MAX(seq), 0) + 1 AS seq
			FROM debounce_batch_members
			WHERE workspace_id = $2 AND key = $3 AND batch_id = $4
		)
		INSERT INTO debounce_batch_members (job_id, workspace_id, key, batch_id, seq, inserted_at)
		SELECT $1, $2, $3, $4, next_seq.seq, $5 FROM next_seq
		ON CONFLICT (job_id) DO UPDATE SET job_id = debounce_batch_members.job_id
		RETURNING batch_id
	`

	var recordedBatchID int64
	if err := q.QueryRow(ctx, query, jobID, workspaceID, key, batchID, now).Scan(&recordedBatchID); err != nil {
		return fmt.Errorf("record batch membership: %w", err)
	}

	if recordedBatchID != batchID {
		return domain.ErrBatchMembershipConflict.WithError(
			fmt.Errorf("job %s already belongs to batch %d, not %d", jobID, recordedBatchID, batchID),
		)
	}

	return nil
}

// Collect enumerates every job in a batch, ordered by insertion sequence.
func (t *BatchTracker) Collect(ctx context.Context, q Querier, workspaceID uuid.UUID, key string, batchID int64) ([]uuid.UUID, error) {
	const query = `
		SELECT job_id
		FROM debounce_batch_members
		WHERE workspace_id = $1 AND key = $2 AND batch_id = $3
		ORDER BY seq ASC
	`

	rows, err := q.Query(ctx, query, workspaceID, key, batchID)
	if err != nil {
		return nil, fmt.Errorf("collect batch members: %w", err)
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var jobID uuid.UUID
		if err := rows.Scan(&jobID); err != nil {
			return nil, fmt.Errorf("scan batch member: %w", err)
		}
		members = append(members, jobID)
	}

	return members, rows.Err()
}

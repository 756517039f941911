package debounce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

// JobCompleter is the narrow slice of job-table access the engine needs:
// finishing a debounced job and appending its log lines. The submission
// and worker layers own the rest of the jobs table.
type JobCompleter struct{}

func NewJobCompleter() *JobCompleter {
	return &JobCompleter{}
}

// CompleteDebounced finishes a job with the synthetic "Debounced by"
// result, but only if it is still in a non-terminal state. Returns
// domain.ErrSurvivorAlreadyTerminal if the row was already finished by
// something else (a race the engine logs and proceeds past).
func (j *JobCompleter) CompleteDebounced(ctx context.Context, q Querier, jobID, survivorID uuid.UUID, now time.Time) error {
	const query = `
		UPDATE jobs
		SET status = $2, result = $3, completed_at = $4
		WHERE id = $1 AND status IN ($5, $6)
	`

	tag, err := q.Exec(ctx, query, jobID, domain.StatusSuccess,
		domain.DebouncedByResult(survivorID), now, domain.StatusQueued, domain.StatusRunning)
	if err != nil {
		return fmt.Errorf("complete debounced job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrSurvivorAlreadyTerminal.WithError(fmt.Errorf("job %s not in a non-terminal state", jobID))
	}

	return nil
}

// AppendLog writes the next log line for a job, assigning the next
// sequence number for that job.
func (j *JobCompleter) AppendLog(ctx context.Context, q Querier, jobID uuid.UUID, line string, now time.Time) error {
	const query = `
		WITH next_seq AS (
			SELECT COALESCE(MAX(seq), -1) + 1 AS seq FROM job_logs WHERE job_id = $1
		)
		INSERT INTO job_logs (job_id, seq, line, created_at)
		SELECT $1, next_seq.seq, $2, $3 FROM next_seq
	`

	if _, err := q.Exec(ctx, query, jobID, line, now); err != nil {
		return fmt.Errorf("append job log: %w", err)
	}

	return nil
}

// LoadArgs fetches the stored args for a set of jobs, keyed by job id.
// Jobs not found (deleted by retention) are simply absent from the map.
func (j *JobCompleter) LoadArgs(ctx context.Context, q Querier, jobIDs []uuid.UUID) (map[uuid.UUID]domain.Args, error) {
	if len(jobIDs) == 0 {
		return map[uuid.UUID]domain.Args{}, nil
	}

	const query = `SELECT id, args FROM jobs WHERE id = ANY($1)`

	rows, err := q.Query(ctx, query, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("load job args: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]domain.Args, len(jobIDs))
	for rows.Next() {
		var id uuid.UUID
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan job args: %w", err)
		}

		var args domain.Args
		if err := json.Unmarshal(raw, &args); err != nil {
			continue
		}
		out[id] = args
	}

	return out, rows.Err()
}

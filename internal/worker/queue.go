// Package worker implements the script-job poller: claim due jobs with
// FOR UPDATE SKIP LOCKED, resolve each job's debounce batch membership, and
// hand it to service.JobService. Grounded on the teacher's
// internal/notify.Worker outbox-draining shape, applied to the jobs table
// instead of notify_outbox.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Queue is the worker's narrow slice of jobs-table access: claiming due
// script jobs and recording their terminal outcome.
type Queue struct {
	db DB
}

func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{db: pool}
}

func NewQueueWithDB(db DB) *Queue {
	return &Queue{db: db}
}

// ClaimDue atomically claims up to limit queued, due script jobs, flipping
// them to running and stamping them with workerName, and returns the
// claimed rows. SKIP LOCKED lets multiple worker processes poll the same
// table without contending on each other's candidates.
func (q *Queue) ClaimDue(ctx context.Context, workerName string, limit int) ([]domain.Job, error) {
	const query = `
		WITH due AS (
			SELECT id FROM jobs
			WHERE status = $1 AND kind = $2 AND scheduled_for <= NOW()
			ORDER BY scheduled_for
			FOR UPDATE SKIP LOCKED
			LIMIT $3
		)
		UPDATE jobs SET status = $4, started_at = NOW(), worker = $5
		FROM due WHERE jobs.id = due.id
		RETURNING jobs.id, jobs.workspace_id, jobs.kind, jobs.runnable_path, jobs.args,
			jobs.scheduled_for, jobs.status, jobs.tag, jobs.worker, jobs.created_at,
			jobs.started_at, jobs.completed_at, jobs.result
	`

	rows, err := q.db.Query(ctx, query, domain.StatusQueued, domain.KindScript, limit, domain.StatusRunning, workerName)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()

	var claimed []domain.Job
	for rows.Next() {
		var j domain.Job
		var argsRaw []byte
		if err := rows.Scan(&j.ID, &j.WorkspaceID, &j.Kind, &j.RunnablePath, &argsRaw,
			&j.ScheduledFor, &j.Status, &j.Tag, &j.Worker, &j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.Result); err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		if len(argsRaw) > 0 {
			if err := json.Unmarshal(argsRaw, &j.Args); err != nil {
				return nil, fmt.Errorf("unmarshal args for job %s: %w", j.ID, err)
			}
		}
		claimed = append(claimed, j)
	}

	return claimed, rows.Err()
}

// Complete records a claimed job's terminal outcome.
func (q *Queue) Complete(ctx context.Context, jobID uuid.UUID, status string, result domain.RawJSON, now time.Time) error {
	const query = `UPDATE jobs SET status = $2, result = $3, completed_at = $4 WHERE id = $1`
	if _, err := q.db.Exec(ctx, query, jobID, status, []byte(result), now); err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

// DebounceKeyFor looks up the debounce batch a job belongs to, if any.
// found is false when debouncing never applied to this job (the common
// case for a job whose settings had it disabled).
func (q *Queue) DebounceKeyFor(ctx context.Context, jobID uuid.UUID) (key string, batchID int64, found bool, err error) {
	const query = `SELECT key, batch_id FROM debounce_records WHERE job_id = $1`

	err = q.db.QueryRow(ctx, query, jobID).Scan(&key, &batchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("lookup debounce key for job %s: %w", jobID, err)
	}
	return key, batchID, true, nil
}

package debounce

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/audit"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/keyresolver"
)

// Engine applies debouncing at the two hook points the submission and
// preprocessing layers call into (spec.md §4.4). Both share the core
// decision logic in apply; they differ only in which transaction boundary
// they run inside.
type Engine struct {
	pool    *pgxpool.Pool
	store   *Store
	batches *BatchTracker
	jobs    *JobCompleter
	audit   audit.Logger
	logger  *slog.Logger
}

func NewEngine(pool *pgxpool.Pool, store *Store, batches *BatchTracker, jobs *JobCompleter, auditLogger audit.Logger, logger *slog.Logger) *Engine {
	return &Engine{
		pool:    pool,
		store:   store,
		batches: batches,
		jobs:    jobs,
		audit:   auditLogger,
		logger:  logger.With("component", "debounce_engine"),
	}
}

// SubmitArgs bundles the inputs shared by both debouncing hooks.
type SubmitArgs struct {
	Settings     domain.DebouncingSettings
	WorkspaceID  uuid.UUID
	RunnablePath string
	JobID        uuid.UUID
	Args         domain.Args
}

// SubmissionTime debounces a job while the caller still holds the
// transaction that inserted it (spec.md §4.4.1). scheduledFor is updated
// in place using use-or semantics: an existing, later schedule wins.
func (e *Engine) SubmissionTime(ctx context.Context, tx Querier, a SubmitArgs, scheduledFor *time.Time, now time.Time) error {
	if !a.Settings.Enabled() {
		return nil
	}

	outcome, err := e.apply(ctx, tx, a, now)
	if err != nil {
		return err
	}

	*scheduledFor = laterOf(*scheduledFor, now.Add(time.Duration(a.Settings.DebounceDelayS)*time.Second))
	_ = outcome

	return nil
}

// PostPreprocessing debounces a job after a preprocessor has rewritten its
// args (spec.md §4.4.2). It owns its own transaction since the caller has
// already released theirs, and returns the schedule rather than mutating a
// reference. A nil return means debouncing did not apply.
func (e *Engine) PostPreprocessing(ctx context.Context, a SubmitArgs, now time.Time) (*time.Time, error) {
	if !a.Settings.Enabled() {
		return nil, nil
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := e.apply(ctx, tx, a, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	scheduledFor := now.Add(time.Duration(a.Settings.DebounceDelayS) * time.Second)
	return &scheduledFor, nil
}

type applyOutcome struct {
	key     string
	batchID int64
	reset   bool
}

// apply is the shared decision logic behind both hooks (spec.md §4.4.1
// steps 2-9).
func (e *Engine) apply(ctx context.Context, q Querier, a SubmitArgs, now time.Time) (*applyOutcome, error) {
	key, err := keyresolver.Resolve(a.Settings.DebounceKey, a.WorkspaceID, a.RunnablePath, a.Args)
	if err != nil {
		return nil, err
	}

	upserted, err := e.store.Upsert(ctx, q, a.WorkspaceID, key, a.JobID, now)
	if err != nil {
		return nil, err
	}

	effective := upserted
	reset := a.Settings.LimitsExceeded(upserted.DebouncedTimes, upserted.FirstStartedAt, now)

	if reset {
		resetResult, err := e.store.Reset(ctx, q, a.WorkspaceID, key, a.JobID, now)
		if err != nil {
			return nil, err
		}
		effective = resetResult

		e.audit.Log(ctx, audit.Event{
			WorkspaceID:    a.WorkspaceID,
			EventType:      audit.EventBatchReset,
			Key:            key,
			JobID:          a.JobID,
			BatchID:        effective.BatchID,
			DebouncedTimes: effective.DebouncedTimes,
		})
	} else if effective.PreviousJobID != nil {
		if err := e.jobs.CompleteDebounced(ctx, q, *effective.PreviousJobID, a.JobID, now); err != nil {
			if errors.Is(err, domain.ErrSurvivorAlreadyTerminal) {
				e.logger.WarnContext(ctx, "previous survivor already terminal, proceeding",
					"job_id", effective.PreviousJobID.String(), "new_survivor", a.JobID.String())
			} else {
				return nil, err
			}
		} else {
			if err := e.jobs.AppendLog(ctx, q, *effective.PreviousJobID, "Debounced by job "+a.JobID.String(), now); err != nil {
				return nil, err
			}
		}

		e.audit.Log(ctx, audit.Event{
			WorkspaceID:    a.WorkspaceID,
			EventType:      audit.EventBatchCoalesced,
			Key:            key,
			JobID:          a.JobID,
			PreviousJobID:  effective.PreviousJobID.String(),
			BatchID:        effective.BatchID,
			DebouncedTimes: effective.DebouncedTimes,
		})
	} else {
		e.audit.Log(ctx, audit.Event{
			WorkspaceID:    a.WorkspaceID,
			EventType:      audit.EventBatchOpened,
			Key:            key,
			JobID:          a.JobID,
			BatchID:        effective.BatchID,
			DebouncedTimes: effective.DebouncedTimes,
		})
	}

	if err := e.batches.Record(ctx, q, a.WorkspaceID, key, a.JobID, effective.BatchID, now); err != nil {
		if errors.Is(err, domain.ErrBatchMembershipConflict) {
			e.audit.Log(ctx, audit.Event{
				WorkspaceID: a.WorkspaceID,
				EventType:   audit.EventMembershipAbort,
				Key:         key,
				JobID:       a.JobID,
				BatchID:     effective.BatchID,
			})
		}
		return nil, err
	}

	if err := e.jobs.AppendLog(ctx, q, a.JobID, "debounce key: "+key, now); err != nil {
		return nil, err
	}

	return &applyOutcome{key: key, batchID: effective.BatchID, reset: reset}, nil
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

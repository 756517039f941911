// Package service orchestrates the debounce engine, the arg accumulator,
// and the isolate execution pipeline into the end-to-end flow spec.md §2
// describes: a script job becomes runnable, its batch's accumulated
// arguments are folded in, it executes against a pre-warmed isolate, and
// the outcome fans out to usage metrics, the notify outbox and connected
// debug-session websockets. Grounded on the teacher's internal/service
// package shape (one exported orchestrator per aggregate, constructed with
// its collaborators rather than a service locator).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/debounce"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/isolate"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/notify"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/streamhub"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/usagemetrics"
)

// ScriptRunSpec is what a caller (the worker loop, or a test) supplies to
// run one script job: the survivor job's identity plus everything the
// isolate needs to execute it.
type ScriptRunSpec struct {
	WorkspaceID  uuid.UUID
	JobID        uuid.UUID
	Key          string
	BatchID      int64
	RunnablePath string
	Args         domain.Args
	ArgNames     []string
	SpawnConfig  func(jobID string) isolate.SpawnConfig
	NextJobID    string
}

// JobService runs one script job to completion: accumulate -> execute ->
// stream logs -> record usage -> stream done -> append log -> notify.
type JobService struct {
	pool        *pgxpool.Pool
	accumulator *debounce.Accumulator
	jobs        *debounce.JobCompleter
	usage       *usagemetrics.Repository
	notify      *notify.Service
	hub         *streamhub.Hub
	logger      *slog.Logger

	mu        sync.Mutex
	pipelines map[uuid.UUID]*isolate.Pipeline
}

func NewJobService(
	pool *pgxpool.Pool,
	accumulator *debounce.Accumulator,
	jobs *debounce.JobCompleter,
	usage *usagemetrics.Repository,
	notifySvc *notify.Service,
	hub *streamhub.Hub,
	logger *slog.Logger,
) *JobService {
	return &JobService{
		pool:        pool,
		accumulator: accumulator,
		jobs:        jobs,
		usage:       usage,
		notify:      notifySvc,
		hub:         hub,
		logger:      logger.With("component", "job_service"),
		pipelines:   make(map[uuid.UUID]*isolate.Pipeline),
	}
}

// RunScript folds in the batch's accumulated arguments, executes the job
// against this job's pre-warmed pipeline, and fans the outcome out to
// usage metrics, the notify outbox and the streaming hub.
func (s *JobService) RunScript(ctx context.Context, spec ScriptRunSpec) (isolate.RunResult, error) {
	if err := s.accumulator.Accumulate(ctx, s.pool, spec.WorkspaceID, spec.Key, spec.BatchID, spec.ArgNames, spec.Args); err != nil {
		return isolate.RunResult{}, fmt.Errorf("accumulate args: %w", err)
	}

	pipeline, err := s.pipelineFor(ctx, spec)
	if err != nil {
		return isolate.RunResult{}, err
	}

	started := time.Now()
	result, err := pipeline.Run(ctx, spec.Args, spec.NextJobID)
	wallMs := time.Since(started).Milliseconds()

	if result.Logs != "" {
		s.hub.PublishLog(spec.WorkspaceID, spec.JobID, result.Logs)
	}

	runErr := err
	if runErr == nil && result.Err != nil {
		runErr = result.Err
	}
	memoryExhausted := isMemoryExhausted(runErr)

	if recordErr := s.usage.RecordExecution(ctx, usagemetrics.ExecutionRecord{
		WorkspaceID:     spec.WorkspaceID,
		JobID:           spec.JobID,
		WallMs:          wallMs,
		MemoryExhausted: memoryExhausted,
		HadResultStream: result.Result != nil,
		CreatedAt:       started,
	}); recordErr != nil {
		s.logger.WarnContext(ctx, "record execution usage failed", "error", recordErr, "job_id", spec.JobID.String())
	}

	s.hub.PublishDone(spec.WorkspaceID, spec.JobID, result.Result, result.Result != nil)

	logLine := fmt.Sprintf("execution finished in %dms", wallMs)
	if runErr != nil {
		logLine = fmt.Sprintf("execution failed after %dms: %v", wallMs, runErr)
	}
	if logErr := s.jobs.AppendLog(ctx, s.pool, spec.JobID, logLine, time.Now()); logErr != nil {
		s.logger.WarnContext(ctx, "append execution log failed", "error", logErr, "job_id", spec.JobID.String())
	}

	eventType := notify.EventCoalesced
	if runErr != nil {
		eventType = notify.EventReset
	}
	s.fanOutNotify(ctx, spec, eventType, runErr)

	return result, runErr
}

func isMemoryExhausted(err error) bool {
	return err != nil && err.Error() == "isolate exceeded its memory limit"
}

// fanOutNotify delivers the event to every webhook this workspace has
// subscribed to eventType; failures are logged, not returned, so a slow or
// dead webhook never fails the job itself.
func (s *JobService) fanOutNotify(ctx context.Context, spec ScriptRunSpec, eventType notify.EventType, runErr error) {
	webhooks, err := s.notify.WebhooksForWorkspaceEvent(ctx, spec.WorkspaceID, eventType)
	if err != nil {
		s.logger.WarnContext(ctx, "lookup webhooks failed", "error", err, "job_id", spec.JobID.String())
		return
	}

	payload := notify.EventPayload{
		Type:        eventType,
		WorkspaceID: spec.WorkspaceID,
		Key:         spec.Key,
		JobID:       spec.JobID,
		BatchID:     spec.BatchID,
		Timestamp:   time.Now().UTC(),
	}

	for _, wh := range webhooks {
		if sendErr := s.notify.Send(ctx, wh, payload); sendErr != nil {
			s.logger.WarnContext(ctx, "notify delivery failed", "error", sendErr, "webhook_id", wh.ID.String())
		}
	}
}

// pipelineFor returns this job's warm isolate pipeline, spawning it (and
// blocking until ready) on first use.
func (s *JobService) pipelineFor(ctx context.Context, spec ScriptRunSpec) (*isolate.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pipelines[spec.JobID]; ok {
		return p, nil
	}

	p, err := isolate.NewPipeline(ctx, spec.SpawnConfig, spec.JobID.String())
	if err != nil {
		return nil, fmt.Errorf("warm pipeline: %w", err)
	}
	s.pipelines[spec.JobID] = p
	return p, nil
}

// ReleasePipeline drops a job's warm-but-unused next isolate and forgets
// it, called once the worker loop has fully drained a job.
func (s *JobService) ReleasePipeline(jobID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pipelines[jobID]; ok {
		p.Close()
		delete(s.pipelines, jobID)
	}
}

// PoolStats reports every tracked pipeline's throughput, the admin/debug
// API's pre-warmed pool stats endpoint.
func (s *JobService) PoolStats() map[string]isolate.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]isolate.Stats, len(s.pipelines))
	for jobID, p := range s.pipelines {
		stats[jobID.String()] = p.Stats()
	}
	return stats
}

// Command worker polls the jobs table for due script jobs and runs them
// against the pre-warmed isolate pipeline. Grounded on the teacher's
// cmd/api/main.go wiring shape, with the HTTP router swapped for a polling
// loop modeled on internal/notify.Worker.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/config"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/debounce"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/isolate"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/notify"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/runnable"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/service"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/streamhub"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/usagemetrics"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting taskforge worker",
		slog.String("environment", cfg.Environment),
		slog.String("worker_name", cfg.WorkerName),
	)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	batches := debounce.NewBatchTracker()
	jobs := debounce.NewJobCompleter()
	accumulator := debounce.NewAccumulator(batches, jobs)

	usageRepo := usagemetrics.NewRepository(pool)
	notifySvc := notify.NewService(pool)
	hub := streamhub.NewHub()
	jobService := service.NewJobService(pool, accumulator, jobs, usageRepo, notifySvc, hub, logger)

	queue := worker.NewQueue(pool)
	loader := runnable.NewFileLoader(cfg.RunnablesDir, "")

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := &pollLoop{
		queue:  queue,
		loader: loader,
		jobs:   jobService,
		cfg:    cfg,
		logger: logger,
	}

	logger.Info("worker poll loop started", slog.Duration("interval", cfg.WorkerPollInterval))
	loop.run(shutdownCtx)
	logger.Info("worker stopped")
	return nil
}

type pollLoop struct {
	queue  *worker.Queue
	loader runnable.Loader
	jobs   *service.JobService
	cfg    *config.Config
	logger *slog.Logger
}

func (l *pollLoop) run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.WorkerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.pollOnce(ctx)
		}
	}
}

func (l *pollLoop) pollOnce(ctx context.Context) {
	claimed, err := l.queue.ClaimDue(ctx, l.cfg.WorkerName, l.cfg.WorkerBatchSize)
	if err != nil {
		l.logger.ErrorContext(ctx, "claim due jobs failed", "error", err)
		return
	}

	for _, job := range claimed {
		l.runJob(ctx, job)
	}
}

func (l *pollLoop) runJob(ctx context.Context, job domain.Job) {
	logger := l.logger.With("job_id", job.ID.String(), "workspace_id", job.WorkspaceID.String())

	module, err := l.loader.Load(ctx, job.RunnablePath)
	if err != nil {
		logger.ErrorContext(ctx, "load runnable failed", "error", err)
		l.fail(ctx, job, err)
		return
	}

	key, batchID, _, err := l.queue.DebounceKeyFor(ctx, job.ID)
	if err != nil {
		logger.WarnContext(ctx, "lookup debounce key failed", "error", err)
	}

	argNames := sortedArgNames(job.Args)
	nextJobID := uuid.New().String()

	spawnCfg := func(jobID string) isolate.SpawnConfig {
		return isolate.SpawnConfig{
			EnvPrelude:     module.EnvPrelude,
			UserCode:       module.UserCode,
			Entrypoint:     module.Entrypoint,
			ArgNames:       argNames,
			Annotation:     module.Annotation,
			JobID:          jobID,
			SnapshotDir:    l.cfg.IsolateSnapshotDir,
			SnapshotMax:    l.cfg.IsolateSnapshotMax,
			EnterpriseMode: l.cfg.IsolateEnterpriseMode,
			HeapLimitBytes: uint64(l.cfg.IsolateHeapLimitMB) * 1024 * 1024,
		}
	}

	result, runErr := l.jobs.RunScript(ctx, service.ScriptRunSpec{
		WorkspaceID:  job.WorkspaceID,
		JobID:        job.ID,
		Key:          key,
		BatchID:      batchID,
		RunnablePath: job.RunnablePath,
		Args:         job.Args,
		ArgNames:     nil,
		SpawnConfig:  spawnCfg,
		NextJobID:    nextJobID,
	})
	l.jobs.ReleasePipeline(job.ID)

	if runErr != nil {
		logger.WarnContext(ctx, "script execution failed", "error", runErr)
		l.fail(ctx, job, runErr)
		return
	}

	if err := l.queue.Complete(ctx, job.ID, domain.StatusSuccess, result.Result, time.Now()); err != nil {
		logger.ErrorContext(ctx, "mark job success failed", "error", err)
	}
}

func (l *pollLoop) fail(ctx context.Context, job domain.Job, runErr error) {
	result, err := json.Marshal(runErr.Error())
	if err != nil {
		result = []byte(`"execution failed"`)
	}
	if err := l.queue.Complete(ctx, job.ID, domain.StatusFailure, domain.RawJSON(result), time.Now()); err != nil {
		l.logger.ErrorContext(ctx, "mark job failure failed", "error", err, "job_id", job.ID.String())
	}
}

// sortedArgNames gives the isolate a deterministic positional-argument
// order when the caller hasn't declared one explicitly.
func sortedArgNames(args domain.Args) []string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Command server runs the admin/debug HTTP surface: health checks,
// read-only debounce inspection, and pre-warmed pipeline stats, guarded by
// admin JWT auth. Grounded on the teacher's cmd/api/main.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/admin"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/alert"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/api"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/config"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/debounce"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/notify"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/ratelimit"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/service"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/snapshot"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/streamhub"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/usagemetrics"
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

	logger.Info("starting taskforge admin server",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.AdminPort),
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

	store := debounce.NewStore()
	batches := debounce.NewBatchTracker()
	jobs := debounce.NewJobCompleter()
	accumulator := debounce.NewAccumulator(batches, jobs)

	usageRepo := usagemetrics.NewRepository(pool)
	notifySvc := notify.NewService(pool)
	hub := streamhub.NewHub()
	jobService := service.NewJobService(pool, accumulator, jobs, usageRepo, notifySvc, hub, logger)

	limiter := ratelimit.NewLimiter(pool, time.Minute)
	adminKeys := admin.NewKeyRepository(pool)
	adminJWT := admin.NewJWTService(cfg.AdminJWTSecret, "taskforge-admin", 24*time.Hour)

	snapshotUploader, err := snapshot.NewUploader(ctx, cfg.AWSRegion, cfg.SnapshotBucket, cfg.IsolateSnapshotDir, logger)
	if err != nil {
		return fmt.Errorf("build snapshot uploader: %w", err)
	}

	sweep := service.NewSweep(usageRepo, limiter, adminKeys, snapshotUploader, 30*24*time.Hour, logger)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go func() {
		if err := sweep.Start(sweepCtx); err != nil {
			logger.Error("sweep stopped", slog.Any("error", err))
		}
	}()
	defer cancelSweep()

	notifyWorker := notify.NewWorker(pool, notifySvc, logger)
	notifyCtx, cancelNotify := context.WithCancel(context.Background())
	go notifyWorker.Run(notifyCtx)
	defer cancelNotify()

	aggregator := usagemetrics.NewAggregator(usageRepo, logger, time.Hour, 30*24*time.Hour)
	aggCtx, cancelAgg := context.WithCancel(context.Background())
	go aggregator.Run(aggCtx)
	defer cancelAgg()

	alertRepo := alert.NewRepository(pool)
	alertEngine := alert.NewEngine(alert.NewMetricSource(pool))
	alertNotifier := alert.NewNotifier(notifySvc, logger)
	alertWorker := alert.NewWorker(alertRepo, alertEngine, alertNotifier, logger, time.Minute)
	alertCtx, cancelAlert := context.WithCancel(context.Background())
	go alertWorker.Run(alertCtx)
	defer cancelAlert()

	deps := &api.Dependencies{
		DB:           pool,
		DebounceRepo: store,
		AdminKeys:    adminKeys,
		AdminJWT:     adminJWT,
		Jobs:         jobService,
		Hub:          hub,
	}

	router := api.NewRouter(logger, deps)
	router.Setup()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.AdminPort)
		logger.Info("admin server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down admin server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	logger.Info("admin server stopped")
	return nil
}

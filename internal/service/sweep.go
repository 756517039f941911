package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/admin"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/ratelimit"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/snapshot"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/usagemetrics"
)

// Sweep runs the periodic housekeeping jobs named in SPEC_FULL.md's module
// map: roll up daily execution usage, drop execution history past its
// retention window, prune expired rate-limit counters, ship any crash
// snapshots the isolate runtime wrote locally off to object storage, and
// warn about admin keys unused for 90 days.
type Sweep struct {
	cron      *cron.Cron
	usage     *usagemetrics.Repository
	limiter   *ratelimit.Limiter
	keys      *admin.KeyRepository
	snapshots *snapshot.Uploader
	logger    *slog.Logger
	retention time.Duration
}

func NewSweep(usage *usagemetrics.Repository, limiter *ratelimit.Limiter, keys *admin.KeyRepository, snapshots *snapshot.Uploader, retention time.Duration, logger *slog.Logger) *Sweep {
	return &Sweep{
		cron:      cron.New(),
		usage:     usage,
		limiter:   limiter,
		keys:      keys,
		snapshots: snapshots,
		logger:    logger.With("component", "sweep"),
		retention: retention,
	}
}

// Start schedules the sweep to run every 15 minutes and blocks until ctx
// is canceled, at which point the scheduler is stopped.
func (s *Sweep) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("@every 15m", func() { s.run(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Sweep) run(ctx context.Context) {
	day := time.Now().UTC()
	if rolled, err := s.usage.RollupDaily(ctx, day); err != nil {
		s.logger.ErrorContext(ctx, "rollup daily usage failed", "error", err)
	} else {
		s.logger.InfoContext(ctx, "rolled up daily usage", "rows", rolled)
	}

	if deleted, err := s.usage.DeleteOldExecutions(ctx, s.retention); err != nil {
		s.logger.ErrorContext(ctx, "delete old executions failed", "error", err)
	} else if deleted > 0 {
		s.logger.InfoContext(ctx, "pruned old execution records", "deleted", deleted)
	}

	if deleted, err := s.limiter.CleanupExpired(ctx); err != nil {
		s.logger.ErrorContext(ctx, "cleanup rate limit counters failed", "error", err)
	} else if deleted > 0 {
		s.logger.InfoContext(ctx, "pruned expired rate limit counters", "deleted", deleted)
	}

	if s.snapshots != nil {
		if err := s.snapshots.Sync(ctx); err != nil {
			s.logger.ErrorContext(ctx, "sync crash snapshots failed", "error", err)
		}
	}

	s.warnStaleAdminKeys(ctx)
}

// warnStaleAdminKeys flags admin keys unused for 90 days so an operator
// can rotate them; it never revokes a key on its own.
func (s *Sweep) warnStaleAdminKeys(ctx context.Context) {
	keys, err := s.keys.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list admin api keys failed", "error", err)
		return
	}

	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	for _, key := range keys {
		if key.IsActive && (key.LastUsedAt == nil || key.LastUsedAt.Before(cutoff)) {
			s.logger.WarnContext(ctx, "admin api key unused past rotation window",
				"key_id", key.ID.String(), "name", key.Name, "key_prefix", key.KeyPrefix)
		}
	}
}

package usagemetrics

import (
	"context"
	"log/slog"
	"time"
)

// Aggregator periodically rolls raw execution records into daily
// aggregates and prunes old ones, grounded on the teacher's
// internal/metrics.Aggregator ticker-loop shape.
type Aggregator struct {
	repo      *Repository
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	done      chan struct{}
}

func NewAggregator(repo *Repository, logger *slog.Logger, interval, retention time.Duration) *Aggregator {
	if interval == 0 {
		interval = time.Hour
	}
	if retention == 0 {
		retention = 90 * 24 * time.Hour
	}

	return &Aggregator{
		repo:      repo,
		logger:    logger.With("component", "usagemetrics_aggregator"),
		interval:  interval,
		retention: retention,
		done:      make(chan struct{}),
	}
}

func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("usage metrics aggregator started", "interval", a.interval)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("usage metrics aggregator stopped")
			return
		case <-a.done:
			a.logger.Info("usage metrics aggregator stopped")
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Aggregator) Stop() {
	close(a.done)
}

func (a *Aggregator) tick(ctx context.Context) {
	today := time.Now().UTC()
	yesterday := today.Add(-24 * time.Hour)

	for _, day := range []time.Time{yesterday, today} {
		if _, err := a.repo.RollupDaily(ctx, day); err != nil {
			a.logger.Error("failed to roll up execution usage", "error", err, "day", day)
		}
	}

	deleted, err := a.repo.DeleteOldExecutions(ctx, a.retention)
	if err != nil {
		a.logger.Error("failed to prune old execution usage", "error", err)
	} else if deleted > 0 {
		a.logger.Info("pruned old execution usage", "count", deleted)
	}
}

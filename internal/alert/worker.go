package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Worker ticks over every enabled alert, evaluating and notifying on
// trigger, structurally unchanged from the teacher's alert.Worker.
type Worker struct {
	repo     *Repository
	engine   *Engine
	notifier *Notifier
	logger   *slog.Logger
	interval time.Duration
	done     chan struct{}
}

func NewWorker(repo *Repository, engine *Engine, notifier *Notifier, logger *slog.Logger, interval time.Duration) *Worker {
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &Worker{
		repo:     repo,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("alert worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("alert worker stopped")
			return
		case <-w.done:
			w.logger.Info("alert worker stopped")
			return
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

func (w *Worker) Stop() {
	close(w.done)
}

func (w *Worker) process(ctx context.Context) {
	alerts, err := w.repo.ListEnabled(ctx)
	if err != nil {
		w.logger.Error("failed to list enabled alerts", "error", err)
		return
	}

	for _, a := range alerts {
		if err := w.evaluateAlert(ctx, a); err != nil {
			w.logger.Error("failed to evaluate alert",
				"alert_id", a.ID,
				"alert_name", a.Name,
				"workspace_id", a.WorkspaceID,
				"error", err,
			)
		}
	}
}

func (w *Worker) evaluateAlert(ctx context.Context, a *Alert) error {
	now := time.Now()

	if !w.engine.ShouldTrigger(a, now) {
		return nil
	}

	triggered, metadata, err := w.engine.Evaluate(ctx, a)
	if err != nil {
		return err
	}

	if !triggered {
		return nil
	}

	w.logger.Info("alert triggered",
		"alert_id", a.ID,
		"alert_name", a.Name,
		"workspace_id", a.WorkspaceID,
		"severity", a.Severity,
	)

	history := &AlertHistory{
		ID:          uuid.New(),
		AlertID:     a.ID,
		WorkspaceID: a.WorkspaceID,
		TriggeredAt: now,
		Status:      "triggered",
		Metadata:    metadata,
	}

	if err := w.repo.SaveHistory(ctx, history); err != nil {
		w.logger.Error("failed to save alert history", "alert_id", a.ID, "error", err)
	}

	if err := w.repo.UpdateLastTriggered(ctx, a.ID); err != nil {
		w.logger.Error("failed to update last triggered", "alert_id", a.ID, "error", err)
	}

	if err := w.notifier.Send(ctx, a, history); err != nil {
		w.logger.Error("failed to send alert notification", "alert_id", a.ID, "error", err)
	}

	return nil
}

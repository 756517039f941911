package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker drains notify_outbox with FOR UPDATE SKIP LOCKED polling, the
// teacher's internal/webhook/worker.go delivery-retry shape.
type Worker struct {
	db      *pgxpool.Pool
	service *Service
	logger  *slog.Logger
	stopCh  chan struct{}
}

func NewWorker(db *pgxpool.Pool, service *Service, logger *slog.Logger) *Worker {
	return &Worker{db: db, service: service, logger: logger.With("component", "notify_worker"), stopCh: make(chan struct{})}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	w.logger.Info("notify worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notify worker stopped")
			return
		case <-w.stopCh:
			w.logger.Info("notify worker stopped")
			return
		case <-ticker.C:
			if err := w.processOutbox(ctx); err != nil {
				w.logger.Error("failed to process notify outbox", "error", err)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) processOutbox(ctx context.Context) error {
	const query = `
		SELECT id, webhook_id, event_type, payload, attempts, max_attempts
		FROM notify_outbox
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 10
	`

	rows, err := w.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query notify outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.WebhookID, &e.EventType, &e.Payload, &e.Attempts, &e.MaxAttempts); err != nil {
			w.logger.Error("failed to scan notify outbox entry", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	rows.Close()

	for _, e := range entries {
		if err := w.processEntry(ctx, &e); err != nil {
			w.logger.Error("failed to process notify outbox entry", "entry_id", e.ID, "error", err)
		}
	}

	return nil
}

func (w *Worker) processEntry(ctx context.Context, e *OutboxEntry) error {
	wh, err := w.getWebhook(ctx, e.WebhookID)
	if err != nil {
		return w.markFailed(ctx, e.ID, fmt.Sprintf("webhook not found: %v", err))
	}
	if !wh.Enabled {
		return w.markFailed(ctx, e.ID, "webhook disabled")
	}

	var event EventPayload
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return w.markFailed(ctx, e.ID, fmt.Sprintf("invalid payload: %v", err))
	}

	if err := w.service.Send(ctx, wh, event); err != nil {
		return w.scheduleRetry(ctx, e, err.Error())
	}
	return w.markDelivered(ctx, e.ID)
}

func (w *Worker) getWebhook(ctx context.Context, webhookID uuid.UUID) (*Webhook, error) {
	const query = `
		SELECT id, workspace_id, url, secret, events, enabled, last_triggered_at, created_at, updated_at
		FROM webhooks WHERE id = $1
	`
	var wh Webhook
	var eventsJSON []byte

	err := w.db.QueryRow(ctx, query, webhookID).Scan(&wh.ID, &wh.WorkspaceID, &wh.URL, &wh.Secret, &eventsJSON, &wh.Enabled, &wh.LastTriggeredAt, &wh.CreatedAt, &wh.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(eventsJSON, &wh.Events); err != nil {
		return nil, err
	}
	return &wh, nil
}

func (w *Worker) scheduleRetry(ctx context.Context, e *OutboxEntry, errMsg string) error {
	if e.Attempts >= e.MaxAttempts {
		return w.markFailed(ctx, e.ID, errMsg)
	}

	delay := time.Duration(1<<e.Attempts) * time.Second
	nextRetry := time.Now().Add(delay)

	const query = `
		UPDATE notify_outbox
		SET attempts = attempts + 1, next_retry_at = $1, last_error = $2, status = 'pending', updated_at = NOW()
		WHERE id = $3
	`
	_, err := w.db.Exec(ctx, query, nextRetry, errMsg, e.ID)
	return err
}

func (w *Worker) markDelivered(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE notify_outbox SET status = 'delivered', updated_at = NOW() WHERE id = $1`
	_, err := w.db.Exec(ctx, query, id)
	return err
}

func (w *Worker) markFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	const query = `UPDATE notify_outbox SET status = 'failed', last_error = $1, updated_at = NOW() WHERE id = $2`
	_, err := w.db.Exec(ctx, query, errMsg, id)
	return err
}

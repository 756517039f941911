package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service sends one webhook delivery attempt and falls back to the outbox
// table on failure, grounded on the teacher's internal/webhook/service.go.
type Service struct {
	db     *pgxpool.Pool
	client *http.Client
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db, client: &http.Client{Timeout: 10 * time.Second}}
}

// Send attempts immediate delivery; on transport failure or an HTTP status
// of 400 or above it enqueues the event in notify_outbox for the Worker to retry.
func (s *Service) Send(ctx context.Context, wh *Webhook, event EventPayload) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	signature := Sign(wh.Secret, payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Taskforge-Signature", signature)
	req.Header.Set("X-Taskforge-Event", string(event.Type))
	req.Header.Set("User-Agent", "taskforge-notify/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return s.enqueue(ctx, wh.ID, string(event.Type), payload, err.Error())
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return s.enqueue(ctx, wh.ID, string(event.Type), payload, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	return s.updateLastTriggered(ctx, wh.ID)
}

func (s *Service) enqueue(ctx context.Context, webhookID uuid.UUID, eventType string, payload []byte, errMsg string) error {
	const query = `
		INSERT INTO notify_outbox (webhook_id, event_type, payload, next_retry_at, last_error)
		VALUES ($1, $2, $3, NOW() + INTERVAL '1 second', $4)
	`
	if _, err := s.db.Exec(ctx, query, webhookID, eventType, payload, errMsg); err != nil {
		return fmt.Errorf("enqueue notify outbox: %w", err)
	}
	return nil
}

func (s *Service) updateLastTriggered(ctx context.Context, webhookID uuid.UUID) error {
	const query = `UPDATE webhooks SET last_triggered_at = NOW() WHERE id = $1`
	_, err := s.db.Exec(ctx, query, webhookID)
	return err
}

// WebhooksForWorkspaceEvent returns every enabled webhook subscribed to
// eventType for a workspace.
func (s *Service) WebhooksForWorkspaceEvent(ctx context.Context, workspaceID uuid.UUID, eventType EventType) ([]*Webhook, error) {
	const query = `
		SELECT id, workspace_id, url, secret, events, enabled, last_triggered_at, created_at, updated_at
		FROM webhooks
		WHERE workspace_id = $1 AND enabled = true AND events @> $2::jsonb
	`

	eventsJSON, _ := json.Marshal([]string{string(eventType)})

	rows, err := s.db.Query(ctx, query, workspaceID, eventsJSON)
	if err != nil {
		return nil, fmt.Errorf("query webhooks by event: %w", err)
	}
	defer rows.Close()

	var out []*Webhook
	for rows.Next() {
		wh, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

func scanWebhook(row pgx.Rows) (*Webhook, error) {
	var wh Webhook
	var eventsJSON []byte

	if err := row.Scan(&wh.ID, &wh.WorkspaceID, &wh.URL, &wh.Secret, &eventsJSON, &wh.Enabled, &wh.LastTriggeredAt, &wh.CreatedAt, &wh.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan webhook: %w", err)
	}
	if err := json.Unmarshal(eventsJSON, &wh.Events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	return &wh, nil
}

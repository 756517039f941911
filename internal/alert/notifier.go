package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/notify"
)

// Notifier delivers a triggered alert through internal/notify's webhook
// outbox, adapted from the teacher's alert.Notifier (which posted through
// internal/webhook directly) onto this system's internal/notify.Service.
type Notifier struct {
	notify *notify.Service
	logger *slog.Logger
}

func NewNotifier(notifySvc *notify.Service, logger *slog.Logger) *Notifier {
	return &Notifier{notify: notifySvc, logger: logger}
}

func (n *Notifier) Send(ctx context.Context, a *Alert, history *AlertHistory) error {
	hasWebhookChannel := false
	for _, ch := range a.Channels {
		if ch.Type == "webhook" {
			hasWebhookChannel = true
			break
		}
	}
	if !hasWebhookChannel {
		return nil
	}

	webhooks, err := n.notify.WebhooksForWorkspaceEvent(ctx, a.WorkspaceID, notify.EventAlertTriggered)
	if err != nil {
		return fmt.Errorf("list webhooks: %w", err)
	}

	var errs []error
	for _, wh := range webhooks {
		payload := notify.EventPayload{
			Type:        notify.EventAlertTriggered,
			WorkspaceID: a.WorkspaceID,
			Timestamp:   history.TriggeredAt,
			Data: map[string]interface{}{
				"alert_id":   a.ID,
				"alert_name": a.Name,
				"severity":   a.Severity,
				"history_id": history.ID,
				"metadata":   history.Metadata,
			},
		}
		if err := n.notify.Send(ctx, wh, payload); err != nil {
			n.logger.Error("failed to send alert notification",
				"webhook_id", wh.ID,
				"alert_id", a.ID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to send %d/%d notifications", len(errs), len(webhooks))
	}

	return nil
}

// Package audit records debounce-engine decisions for operators
// reconstructing why a batch coalesced, reset, or orphaned a survivor
// (spec.md §4.4.1 step 9).
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBatchOpened     EventType = "DEBOUNCE_BATCH_OPENED"
	EventBatchCoalesced  EventType = "DEBOUNCE_BATCH_COALESCED"
	EventBatchReset      EventType = "DEBOUNCE_BATCH_RESET"
	EventSurvivorOrphan  EventType = "DEBOUNCE_SURVIVOR_ALREADY_TERMINAL"
	EventMembershipAbort EventType = "DEBOUNCE_BATCH_MEMBERSHIP_CONFLICT"
)

// Event is one debounce-engine decision.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	WorkspaceID    uuid.UUID `json:"workspace_id"`
	EventType      EventType `json:"event_type"`
	Key            string    `json:"key"`
	JobID          uuid.UUID `json:"job_id"`
	PreviousJobID  string    `json:"previous_job_id,omitempty"`
	BatchID        int64     `json:"batch_id"`
	DebouncedTimes int       `json:"debounced_times"`
}

type Logger interface {
	Log(ctx context.Context, event Event)
}

type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger.With("component", "audit")}
}

func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to marshal audit event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(event.EventType)),
		)
		return
	}

	l.logger.InfoContext(ctx, "audit_event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.EventType)),
		slog.String("workspace_id", event.WorkspaceID.String()),
		slog.String("key", event.Key),
		slog.String("event_data", string(eventJSON)),
	)
}

// NoOpLogger discards events; used in unit tests that don't exercise audit.
type NoOpLogger struct{}

func (NoOpLogger) Log(context.Context, Event) {}

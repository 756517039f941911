// Package notify delivers an outbound side channel when the debounce
// engine force-flushes a batch or replaces a survivor, so external systems
// can observe coalescing without polling the debounce tables directly.
// Adapted from the teacher's internal/webhook package; this is explicitly
// not the job-submission API spec.md excludes.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// EventType names the debounce-engine decision being reported.
type EventType string

const (
	EventCoalesced      EventType = "debounce.coalesced"
	EventReset          EventType = "debounce.reset"
	EventAlertTriggered EventType = "alert.triggered"
)

// Webhook is a workspace-scoped delivery target.
type Webhook struct {
	ID              uuid.UUID  `json:"id"`
	WorkspaceID     uuid.UUID  `json:"workspace_id"`
	URL             string     `json:"url"`
	Secret          string     `json:"-"`
	Events          []string   `json:"events"`
	Enabled         bool       `json:"enabled"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// OutboxEntry is one queued delivery attempt.
type OutboxEntry struct {
	ID          uuid.UUID
	WebhookID   uuid.UUID
	EventType   string
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NextRetryAt *time.Time
	Status      string
	LastError   string
}

// EventPayload is what gets signed and POSTed to the webhook URL. Key,
// JobID and BatchID are populated for debounce events; no sender sets
// SurvivorID. Data
// carries the free-form body for event types that don't fit that shape
// (EventAlertTriggered).
type EventPayload struct {
	Type        EventType              `json:"type"`
	WorkspaceID uuid.UUID              `json:"workspace_id"`
	Key         string                 `json:"key,omitempty"`
	JobID       uuid.UUID              `json:"job_id,omitempty"`
	SurvivorID  uuid.UUID              `json:"survivor_id,omitempty"`
	BatchID     int64                  `json:"batch_id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

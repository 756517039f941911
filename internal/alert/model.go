// Package alert evaluates threshold rules against this system's own
// operational metrics (execution and debounce counters) and dispatches a
// notification when one trips, adapted from the teacher's tenant-metric
// alerting engine onto taskforge's usagemetrics/debounce schema.
package alert

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a threshold rule scoped to one workspace.
type Alert struct {
	ID              uuid.UUID   `json:"id"`
	WorkspaceID     uuid.UUID   `json:"workspace_id"`
	Name            string      `json:"name"`
	Conditions      []Condition `json:"conditions"`
	ConditionLogic  string      `json:"condition_logic"`
	WindowSeconds   int         `json:"window_seconds"`
	CooldownSeconds int         `json:"cooldown_seconds"`
	Severity        Severity    `json:"severity"`
	Channels        []Channel   `json:"channels"`
	Enabled         bool        `json:"enabled"`
	LastTriggeredAt *time.Time  `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Condition names one metric MetricSource knows how to compute:
// "executions", "memory_exhaustions", "avg_wall_ms", "forced_resets",
// "jobs_coalesced", "stale_batches".
type Condition struct {
	MetricName  string  `json:"metric_name"`
	Aggregation string  `json:"aggregation"`
	Operator    string  `json:"operator"`
	Threshold   float64 `json:"threshold"`
}

// Channel is a notification target. Only "webhook" is wired: it fans out
// through internal/notify to every webhook subscribed to
// notify.EventAlertTriggered for the alert's workspace.
type Channel struct {
	Type string `json:"type"`
}

type AlertHistory struct {
	ID          uuid.UUID              `json:"id"`
	AlertID     uuid.UUID              `json:"alert_id"`
	WorkspaceID uuid.UUID              `json:"workspace_id"`
	TriggeredAt time.Time              `json:"triggered_at"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
	Status      string                 `json:"status"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

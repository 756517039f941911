// Package usagemetrics persists per-execution and per-batch counters and
// aggregates them periodically, the observability surface spec.md §4.4.1
// step 9 ("Emit an audit event") and §8's testable properties imply but
// don't themselves define storage for.
package usagemetrics

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionRecord is one isolate run's resource footprint (spec.md §4.6's
// execute operation and §4.8's pipeline both produce one of these).
type ExecutionRecord struct {
	ID              uuid.UUID
	WorkspaceID     uuid.UUID
	JobID           uuid.UUID
	WallMs          int64
	MemoryExhausted bool
	HadResultStream bool
	CreatedAt       time.Time
}

// DailyExecutionUsage is the per-workspace-per-day rollup of ExecutionRecord.
type DailyExecutionUsage struct {
	WorkspaceID           uuid.UUID
	Day                   time.Time
	JobCount              int64
	TotalWallMs           int64
	MemoryExhaustionCount int64
}

// DailyDebounceMetrics is the per-workspace-per-day rollup of debounce
// engine decisions (spec.md §8 properties 1 and 4: coalescing and
// max-count reset counts).
type DailyDebounceMetrics struct {
	WorkspaceID    uuid.UUID
	Day            time.Time
	BatchesOpened  int64
	JobsCoalesced  int64
	ForcedResets   int64
}

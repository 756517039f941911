// Package streamhub fans out demultiplexed WM_STREAM:/user-log lines
// (spec.md §4.6, §6) to connected debug-session websocket clients — the
// network-observable half of the Error & Log Channel component. Adapted
// from the teacher's internal/ws hub.
package streamhub

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// EventUserLog carries one non-stream log line emitted by a job.
	EventUserLog EventType = "job.log"
	// EventStreamChunk carries one demultiplexed WM_STREAM: chunk.
	EventStreamChunk EventType = "job.stream_chunk"
	// EventJobDone is emitted once a job's isolate has finished executing.
	EventJobDone EventType = "job.done"
)

// Event is one line of output, scoped to the workspace (and within it, the
// job) that produced it.
type Event struct {
	WorkspaceID uuid.UUID   `json:"-"`
	JobID       uuid.UUID   `json:"job_id"`
	Type        EventType   `json:"type"`
	Data        interface{} `json:"data"`
	Timestamp   time.Time   `json:"timestamp"`
}

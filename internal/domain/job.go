package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job kinds the engine reasons about. Dedicated per-language workers (Bun,
// Python, Go, ...) consume the same Job shape but are external collaborators;
// only "script" jobs are executed in-process by the Isolate Runtime.
const (
	KindScript = "script"
	KindFlow   = "flow"
	KindNoop   = "noop"
)

// Job statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusCanceled  = "canceled"
	StatusSkipped   = "skipped"
)

// Args is the opaque name->value argument mapping the engine reads and
// writes. Values are kept as json.RawMessage so the engine never needs to
// understand a job's argument schema.
type Args map[string]RawJSON

// RawJSON is json.RawMessage under its own name so callers building an Args
// map don't need to import encoding/json. It keeps RawMessage's pass-through
// Marshal/Unmarshal behavior, which matters: map[string][]byte would
// base64-encode argument values instead of embedding them as JSON.
type RawJSON = json.RawMessage

// Job is the subset of job state the debounce/execution core reads and
// writes. The HTTP submission layer, SQL query builders for job listing,
// and the worker state machine beyond these fields are external collaborators.
type Job struct {
	ID            uuid.UUID  `json:"id"`
	WorkspaceID   uuid.UUID  `json:"workspace_id"`
	Kind          string     `json:"kind"`
	RunnablePath  string     `json:"runnable_path,omitempty"`
	Args          Args       `json:"args"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	Status        string     `json:"status"`
	Tag           string     `json:"tag,omitempty"`
	Worker        string     `json:"worker,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Result        RawJSON    `json:"result,omitempty"`
}

// DebouncedByResult builds the synthetic result a coalesced job is completed
// with: a JSON scalar string `"Debounced by <uuid>"`.
func DebouncedByResult(survivorID uuid.UUID) RawJSON {
	return []byte(`"Debounced by ` + survivorID.String() + `"`)
}

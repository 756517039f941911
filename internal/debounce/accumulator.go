package debounce

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

// Accumulator merges per-key argument arrays across a batch's members into
// the survivor's args just before it executes (spec.md §4.5).
type Accumulator struct {
	batches *BatchTracker
	jobs    *JobCompleter
}

func NewAccumulator(batches *BatchTracker, jobs *JobCompleter) *Accumulator {
	return &Accumulator{batches: batches, jobs: jobs}
}

// Accumulate rewrites survivorArgs in place, merging argNames across every
// member of (workspaceID, key, batchID) in insertion order. Members whose
// value for a name is missing or not a JSON array are skipped rather than
// aborting the merge.
func (a *Accumulator) Accumulate(ctx context.Context, q Querier, workspaceID uuid.UUID, key string, batchID int64, argNames []string, survivorArgs domain.Args) error {
	if len(argNames) == 0 {
		return nil
	}

	members, err := a.batches.Collect(ctx, q, workspaceID, key, batchID)
	if err != nil {
		return fmt.Errorf("accumulate: %w", err)
	}
	if len(members) == 0 {
		return nil
	}

	argsByMember, err := a.jobs.LoadArgs(ctx, q, members)
	if err != nil {
		return fmt.Errorf("accumulate: %w", err)
	}

	for _, name := range argNames {
		merged := make([]json.RawMessage, 0)

		for _, memberID := range members {
			memberArgs, ok := argsByMember[memberID]
			if !ok {
				continue
			}

			raw, ok := memberArgs[name]
			if !ok || len(raw) == 0 {
				continue
			}

			var chunk []json.RawMessage
			if err := json.Unmarshal(raw, &chunk); err != nil {
				continue
			}

			merged = append(merged, chunk...)
		}

		mergedJSON, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("accumulate: marshal merged %q: %w", name, err)
		}

		survivorArgs[name] = mergedJSON
	}

	return nil
}

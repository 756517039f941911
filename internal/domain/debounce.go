package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DebouncingSettings is content-addressed and reusable across many scripts:
// two jobs with identical settings share one cached row (see internal/cache).
type DebouncingSettings struct {
	DebounceDelayS            int64    `json:"debounce_delay_s"`
	DebounceKey               string   `json:"debounce_key,omitempty"`
	MaxTotalDebouncesAmount   *int64   `json:"max_total_debounces_amount,omitempty"`
	MaxTotalDebouncingTimeS   *int64   `json:"max_total_debouncing_time_s,omitempty"`
	DebounceArgsToAccumulate  []string `json:"debounce_args_to_accumulate,omitempty"`
}

// Enabled reports whether debouncing applies at all (spec.md §4.4.1 step 1).
func (s DebouncingSettings) Enabled() bool {
	return s.DebounceDelayS > 0
}

// ContentHash is the settings cache key: sha256 of the canonical JSON form.
func (s DebouncingSettings) ContentHash() (string, error) {
	canonical, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// DebounceRecord is the one row per (workspace, key) tracked by the Debounce
// Store (spec.md §3, §4.2).
type DebounceRecord struct {
	WorkspaceID     uuid.UUID
	Key             string
	JobID           uuid.UUID
	PreviousJobID   *uuid.UUID
	FirstStartedAt  time.Time
	BatchID         int64
	DebouncedTimes  int
}

// UpsertResult is what Store.Upsert hands back once this call's job has
// become the survivor: PreviousJobID is the survivor it replaced (nil for a
// new record), DebouncedTimes already includes this call's increment (0 for
// a new record), and BatchID and FirstStartedAt are the batch's values,
// which Upsert leaves unchanged.
type UpsertResult struct {
	IsNew          bool
	PreviousJobID  *uuid.UUID
	BatchID        int64
	DebouncedTimes int
	FirstStartedAt time.Time
}

// BatchMember is one row of the batch-membership table (spec.md §4.3).
type BatchMember struct {
	JobID       uuid.UUID
	WorkspaceID uuid.UUID
	Key         string
	BatchID     int64
	Seq         int64
	InsertedAt  time.Time
}

// LimitsExceeded implements spec.md §4.4.1 step 4: once debouncedTimes
// passes the cap M, i.e. on the (M+2)-th submission into a batch, the
// engine forces a flush instead of coalescing (S3 in spec.md §8).
func (s DebouncingSettings) LimitsExceeded(debouncedTimes int, firstStartedAt, now time.Time) bool {
	if s.MaxTotalDebouncesAmount != nil && int64(debouncedTimes) > *s.MaxTotalDebouncesAmount {
		return true
	}
	if s.MaxTotalDebouncingTimeS != nil {
		if now.Sub(firstStartedAt) > time.Duration(*s.MaxTotalDebouncingTimeS)*time.Second {
			return true
		}
	}
	return false
}

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/debounce"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

// DebounceHandler exposes read-only lookups over debounce state, the
// "read-only debounce-record lookup" surface named in SPEC_FULL.md's admin
// API — it never mutates debounce_records or debounce_batch_members.
type DebounceHandler struct {
	db    *pgxpool.Pool
	store *debounce.Store
}

func NewDebounceHandler(db *pgxpool.Pool, store *debounce.Store) *DebounceHandler {
	return &DebounceHandler{db: db, store: store}
}

type debounceRecordResponse struct {
	WorkspaceID    uuid.UUID  `json:"workspace_id"`
	Key            string     `json:"key"`
	JobID          uuid.UUID  `json:"job_id"`
	PreviousJobID  *uuid.UUID `json:"previous_job_id,omitempty"`
	FirstStartedAt string     `json:"first_started_at"`
	BatchID        int64      `json:"batch_id"`
	DebouncedTimes int        `json:"debounced_times"`
}

// GetRecord handles GET /admin/debounce/:workspace_id/:key.
func (h *DebounceHandler) GetRecord(c *fiber.Ctx) error {
	workspaceID, err := uuid.Parse(c.Params("workspace_id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}
	key := c.Params("key")
	if key == "" {
		return domain.ErrBadRequest
	}

	rec, err := h.store.Read(c.Context(), h.db, workspaceID, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return domain.ErrInternal.WithError(err)
	}

	return c.JSON(debounceRecordResponse{
		WorkspaceID:    rec.WorkspaceID,
		Key:            rec.Key,
		JobID:          rec.JobID,
		PreviousJobID:  rec.PreviousJobID,
		FirstStartedAt: rec.FirstStartedAt.Format("2006-01-02T15:04:05Z07:00"),
		BatchID:        rec.BatchID,
		DebouncedTimes: rec.DebouncedTimes,
	})
}

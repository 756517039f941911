package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/isolate"
)

// poolStatsProvider is the thin slice of *service.JobService this handler
// needs, kept as an interface so the handler doesn't import the service
// package's full dependency graph.
type poolStatsProvider interface {
	PoolStats() map[string]isolate.Stats
}

type PoolHandler struct {
	jobs poolStatsProvider
}

func NewPoolHandler(jobs poolStatsProvider) *PoolHandler {
	return &PoolHandler{jobs: jobs}
}

// Stats handles GET /admin/pool/stats, reporting every tracked pre-warmed
// pipeline's throughput.
func (h *PoolHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.jobs.PoolStats())
}

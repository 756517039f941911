// Package api assembles the admin/debug HTTP surface named in
// SPEC_FULL.md: health, read-only debounce-record lookup, pre-warmed-pool
// stats, and the admin login exchange. /health, /ready and /admin/login are
// public; every other /admin route sits behind JWT bearer auth. It is
// deliberately not the job-submission wire format spec.md places out of
// scope. Grounded on the teacher's internal/api/router.go, trimmed from
// its tenant-facing face-recognition routes to this system's read-only
// operator surface.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/admin"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/debounce"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/service"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/streamhub"
)

// Dependencies are the constructed collaborators the router wires into
// handlers; cmd/server builds these once at startup.
type Dependencies struct {
	DB           *pgxpool.Pool
	DebounceRepo *debounce.Store
	AdminKeys    *admin.KeyRepository
	AdminJWT     *admin.JWTService
	Jobs         *service.JobService
	Hub          *streamhub.Hub
}

type Router struct {
	app       *fiber.App
	logger    *slog.Logger
	deps      *Dependencies
	cancelHub context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Taskforge Admin API",
	})

	return &Router{app: app, logger: logger, deps: deps}
}

func (r *Router) Setup() {
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	healthHandler := handler.NewHealthHandler(r.deps.DB)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps.Hub != nil {
		hubCtx, cancel := context.WithCancel(context.Background())
		r.cancelHub = cancel
		go r.deps.Hub.Run(hubCtx)
	}

	adminAuthHandler := handler.NewAdminAuthHandler(admin.NewService(r.deps.AdminKeys, r.deps.AdminJWT))
	r.app.Post("/admin/login", adminAuthHandler.Login)

	admGroup := r.app.Group("/admin", middleware.AdminAuth(r.deps.AdminJWT, r.logger))

	debounceHandler := handler.NewDebounceHandler(r.deps.DB, r.deps.DebounceRepo)
	admGroup.Get("/debounce/:workspace_id/:key", debounceHandler.GetRecord)

	poolHandler := handler.NewPoolHandler(r.deps.Jobs)
	admGroup.Get("/pool/stats", poolHandler.Stats)

	if r.deps.Hub != nil {
		admGroup.Get("/stream/:workspace_id",
			parseWorkspaceID,
			streamhub.UpgradeMiddleware(),
			streamhub.Handler(r.deps.Hub),
		)
	}
}

// parseWorkspaceID resolves the :workspace_id path param into the
// uuid.UUID streamhub.Handler reads from c.Locals.
func parseWorkspaceID(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("workspace_id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}
	c.Locals("workspace_id", id)
	return c.Next()
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	if r.cancelHub != nil {
		r.cancelHub()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.app.ShutdownWithContext(ctx)
}

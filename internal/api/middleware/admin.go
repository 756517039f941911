// Package middleware holds the admin/debug API's fiber middlewares,
// adapted from the teacher's internal/api/middleware package.
package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/admin"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

const LocalAdminKeyID = "admin_key_id"

// AdminAuth validates the bearer JWT issued by admin.Service.Authenticate,
// trimmed from the teacher's AdminAuth to a single admin role (this surface
// has no tenant-scoped caller).
func AdminAuth(jwtService *admin.JWTService, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			logger.Debug("missing authorization header for admin request")
			return domain.ErrUnauthorized
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			logger.Warn("invalid admin token", "error", err)
			return domain.ErrUnauthorized
		}

		c.Locals(LocalAdminKeyID, claims.KeyID)
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func GetAdminKeyID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals(LocalAdminKeyID).(uuid.UUID)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return id, nil
}

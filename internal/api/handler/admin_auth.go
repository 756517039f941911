package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/taskforge/internal/admin"
	"github.com/saturnino-fabrica-de-software/taskforge/internal/domain"
)

type AdminAuthHandler struct {
	service *admin.Service
}

func NewAdminAuthHandler(service *admin.Service) *AdminAuthHandler {
	return &AdminAuthHandler{service: service}
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges a long-lived AdminAPIKey for a short-lived session JWT
// used as the bearer token on every other admin/debug endpoint.
func (h *AdminAuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil || req.APIKey == "" {
		return domain.ErrBadRequest.WithError(err)
	}

	token, err := h.service.Authenticate(c.Context(), req.APIKey)
	if err != nil {
		return domain.ErrUnauthorized.WithError(err)
	}

	return c.JSON(loginResponse{Token: token})
}

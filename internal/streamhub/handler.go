package streamhub

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Handler upgrades a connection to a websocket scoped to the workspace
// that upstream route middleware resolved from the :workspace_id path
// param (c.Locals("workspace_id")).
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		workspaceIDValue := c.Locals("workspace_id")
		if workspaceIDValue == nil {
			_ = c.Close()
			return
		}

		workspaceID, ok := workspaceIDValue.(uuid.UUID)
		if !ok {
			_ = c.Close()
			return
		}

		client := &Client{
			hub:         hub,
			conn:        c,
			workspaceID: workspaceID,
			send:        make(chan []byte, 256),
		}

		hub.register <- client

		go client.WritePump()
		client.ReadPump()
	})
}

func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

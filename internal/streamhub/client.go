package streamhub

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Client is one connected debug-session websocket, scoped to a single
// workspace (grounded on the teacher's internal/ws.Client).
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	workspaceID uuid.UUID
	send        chan []byte
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

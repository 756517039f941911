package streamhub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub fans Event values out to every client subscribed to a workspace,
// grounded on the teacher's internal/ws.Hub (register/unregister/broadcast
// goroutine, per-tenant client fan-out; here, per-workspace).
type Hub struct {
	clients    map[*Client]bool
	workspaces map[uuid.UUID]map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		workspaces: make(map[uuid.UUID]map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.broadcastToWorkspace(event)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	if h.workspaces[client.workspaceID] == nil {
		h.workspaces[client.workspaceID] = make(map[*Client]bool)
	}
	h.workspaces[client.workspaceID][client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		delete(h.workspaces[client.workspaceID], client)
		if len(h.workspaces[client.workspaceID]) == 0 {
			delete(h.workspaces, client.workspaceID)
		}
		close(client.send)
	}
}

func (h *Hub) broadcastToWorkspace(event Event) {
	h.mu.RLock()
	clients, ok := h.workspaces[event.WorkspaceID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clientList := make([]*Client, 0, len(clients))
	for c := range clients {
		clientList = append(clientList, c)
	}
	h.mu.RUnlock()

	message, err := json.Marshal(event)
	if err != nil {
		return
	}

	for _, c := range clientList {
		select {
		case c.send <- message:
		default:
			h.unregister <- c
		}
	}
}

// PublishLog and PublishStreamChunk are the Isolate Runtime's two outputs
// (spec.md §4.6 "Demultiplex log output"), surfaced as broadcasts rather
// than mutated state.
func (h *Hub) PublishLog(workspaceID, jobID uuid.UUID, line string) {
	h.publish(Event{WorkspaceID: workspaceID, JobID: jobID, Type: EventUserLog, Data: line})
}

func (h *Hub) PublishStreamChunk(workspaceID, jobID uuid.UUID, chunk string) {
	h.publish(Event{WorkspaceID: workspaceID, JobID: jobID, Type: EventStreamChunk, Data: chunk})
}

func (h *Hub) PublishDone(workspaceID, jobID uuid.UUID, result json.RawMessage, hadStream bool) {
	h.publish(Event{WorkspaceID: workspaceID, JobID: jobID, Type: EventJobDone, Data: map[string]interface{}{
		"result": result, "had_result_stream": hadStream,
	}})
}

func (h *Hub) publish(event Event) {
	event.Timestamp = time.Now()
	select {
	case h.broadcast <- event:
	default:
	}
}

// ConnectedClients reports how many live subscribers a workspace has,
// surfaced by the admin/debug API.
func (h *Hub) ConnectedClients(workspaceID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.workspaces[workspaceID])
}

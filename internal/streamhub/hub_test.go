package streamhub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.workspaces)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	hub := NewHub()
	go hub.Run(context.Background())

	workspaceID := uuid.New()
	client := &Client{hub: hub, workspaceID: workspaceID, send: make(chan []byte, 1)}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ConnectedClients(workspaceID))

	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.ConnectedClients(workspaceID))
}

func TestHub_PublishStreamChunk(t *testing.T) {
	hub := NewHub()
	go hub.Run(context.Background())

	workspaceID := uuid.New()
	jobID := uuid.New()
	client := &Client{hub: hub, workspaceID: workspaceID, send: make(chan []byte, 10)}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	hub.PublishStreamChunk(workspaceID, jobID, "chunk one")
	time.Sleep(50 * time.Millisecond)

	select {
	case msg := <-client.send:
		var event Event
		require := assert.New(t)
		require.NoError(json.Unmarshal(msg, &event))
		require.Equal(EventStreamChunk, event.Type)
		require.Equal(jobID, event.JobID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestHub_WorkspaceIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run(context.Background())

	ws1 := uuid.New()
	ws2 := uuid.New()

	c1 := &Client{hub: hub, workspaceID: ws1, send: make(chan []byte, 10)}
	c2 := &Client{hub: hub, workspaceID: ws2, send: make(chan []byte, 10)}

	hub.register <- c1
	hub.register <- c2
	time.Sleep(50 * time.Millisecond)

	hub.PublishLog(ws1, uuid.New(), "only for workspace one")
	time.Sleep(50 * time.Millisecond)

	select {
	case <-c1.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("c1 should receive the message")
	}

	select {
	case <-c2.send:
		t.Fatal("c2 should not receive a message scoped to workspace one")
	case <-time.After(100 * time.Millisecond):
	}
}

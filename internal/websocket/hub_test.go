package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *Client) (*Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		return msg, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil, false
	}
}

func TestHub_BroadcastReachesSubscribersOfRun(t *testing.T) {
	hub, _ := startHub(t)

	watcher := NewClient(hub, nil, "run-1")
	other := NewClient(hub, nil, "run-2")
	hub.Register(watcher)
	hub.Register(other)
	require.Eventually(t, func() bool { return hub.Subscribers("run-1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast("run-1", service.MessageTypeRunStatus, map[string]string{"status": "running"})

	msg, ok := receive(t, watcher)
	require.True(t, ok)
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, service.MessageTypeRunStatus, msg.Type)
	assert.Empty(t, other.send)
}

func TestHub_UnregisterClosesQueue(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient(hub, nil, "run-1")
	hub.Register(client)
	hub.Unregister(client)

	_, ok := receive(t, client)
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("run-1"))

	// a second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := startHub(t)

	client := NewClient(hub, nil, "run-1")
	hub.Register(client)
	cancel()

	_, ok := receive(t, client)
	assert.False(t, ok)

	late := NewClient(hub, nil, "run-1")
	hub.Register(late)
	_, ok = receive(t, late)
	assert.False(t, ok)
	hub.Unregister(late)
}

func TestHub_BroadcastWithoutSubscribers(t *testing.T) {
	hub, _ := startHub(t)
	assert.NotPanics(t, func() {
		hub.Broadcast("nobody", service.MessageTypeRunStatus, nil)
	})
}

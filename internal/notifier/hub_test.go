package notifier

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHubServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHubServer(t)

	first := dial(t, url)
	second := dial(t, url)
	waitForClients(t, hub, 2)

	hub.Broadcast(NewEvent(EventNewOrder, map[string]string{"order_id": "DGL-2026-000001"}))

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		var event Event
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, EventNewOrder, event.Type)
	}
}

func TestHubPrunesDeadConnections(t *testing.T) {
	hub, url := startHubServer(t)

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	conn.Close()

	// The reader goroutine notices the close; a broadcast afterwards must not
	// leave the dead connection registered.
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 {
		hub.Broadcast(NewEvent(EventOrderUpdate, nil))
		if time.Now().After(deadline) {
			t.Fatalf("dead connection not pruned, %d clients", hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubConcurrentBroadcasts(t *testing.T) {
	hub, url := startHubServer(t)

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	// Keep the client draining so broadcast writes never stall on a full
	// buffer while many goroutines are pushing events at once.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				hub.Broadcast(NewEvent(EventOrderUpdate, map[string]int{"n": i}))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hub.ClientCount())

	conn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not stop after close")
	}
}

func TestHubBroadcastWithNoClients(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	assert.NotPanics(t, func() {
		hub.Broadcast(NewEvent(EventBalanceUpdate, nil))
	})
	assert.Equal(t, 0, hub.ClientCount())
}

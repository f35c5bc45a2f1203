package notifier

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// Hub fans events out to every connected observer. Delivery is best-effort:
// dead connections are pruned on write failure and disconnected observers
// miss whatever happened while they were away.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*sync.Mutex
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades the request and registers the connection until
// the peer goes away.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.register(conn)
	logrus.WithField("clients", h.ClientCount()).Debug("websocket client connected")

	// Drain inbound frames so pings/pongs and close handshakes work; the
	// channel is server-to-client only.
	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &sync.Mutex{}
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// Broadcast pushes an event to every connected client, pruning any
// connection whose write fails. Broadcasts arrive from many goroutines
// (handlers, timer callbacks, the sweeper); the connection supports only one
// writer at a time, so each write holds that connection's write mutex.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, wmu := range h.clients {
		conns[conn] = wmu
	}
	h.mu.RUnlock()

	var dead []*websocket.Conn
	for conn, wmu := range conns {
		wmu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := conn.WriteJSON(event)
		wmu.Unlock()
		if err != nil {
			dead = append(dead, conn)
		}
	}

	for _, conn := range dead {
		h.unregister(conn)
	}

	if len(dead) > 0 {
		logrus.WithFields(logrus.Fields{
			"pruned": len(dead),
			"event":  event.Type,
		}).Debug("pruned dead websocket connections")
	}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

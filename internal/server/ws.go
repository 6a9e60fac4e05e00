package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/stylecam/internal/session"
)

const writeTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SnapshotSource supplies the current session state.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// EventsHandler broadcasts session snapshots via WebSocket.
type EventsHandler struct {
	source   SnapshotSource
	interval time.Duration
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	once     sync.Once
	stop     chan struct{}
	stopOnce sync.Once
}

// NewEventsHandler creates a new EventsHandler for the given source. The
// broadcast loop starts with the first client.
func NewEventsHandler(source SnapshotSource) *EventsHandler {
	return &EventsHandler{
		source:   source,
		interval: FrameInterval,
		clients:  make(map[*websocket.Conn]bool),
		stop:     make(chan struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.once.Do(func() { go h.broadcast() })

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcast loop.
func (h *EventsHandler) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// broadcast sends the session snapshot to all connected clients.
func (h *EventsHandler) broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		h.mu.RUnlock()

		msg, err := json.Marshal(map[string]any{
			"session":   h.source.Snapshot(),
			"timestamp": time.Now().UnixMilli(),
		})
		if err != nil {
			log.Printf("Error encoding snapshot: %v", err)
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// The read loop notices the closed connection and unregisters it.
				conn.Close()
			}
		}
		h.mu.RUnlock()
	}
}

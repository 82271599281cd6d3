package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"luminad/internal/worker"
)

const wsWriteTimeout = 5 * time.Second

// Hub fans worker events out to websocket subscribers on /ws. It implements
// worker.EventPublisher, so it can be installed directly as the pool's
// publisher.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the embedded page on the same
			// origin; cross-origin subscribers are governed by CORS config.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// wsMessage is the JSON frame pushed to subscribers.
type wsMessage struct {
	Event     string         `json:"event"`
	RequestID string         `json:"request_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Publish broadcasts a worker event to every subscriber. Connections that
// fail to accept the frame in time are dropped.
func (h *Hub) Publish(ev worker.Event) {
	msg := wsMessage{Event: ev.Name, RequestID: ev.RequestID, Fields: ev.Fields}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteJSON(msg); err != nil {
			delete(h.clients, c)
			_ = c.Close()
		}
	}
}

// handle upgrades the request and keeps the connection registered until the
// client goes away. Incoming frames are read and discarded so pings and
// close frames are processed.
func (h *Hub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
}

package api

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/talgya/terrasmith/internal/pipeline"
)

const (
	maxStreamConns = 8
	catchUpEvents  = 50
)

// Hub fans pipeline events out to WebSocket clients and keeps a short
// backlog for clients that connect mid-run.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex // per-connection write lock
	recent  []pipeline.Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*sync.Mutex)}
}

// add registers conn and sends it the backlog. It reports false when the
// hub is full. Registration and the backlog snapshot happen under one lock,
// so each event reaches conn exactly once: from the backlog or live.
func (h *Hub) add(conn *websocket.Conn) bool {
	connMu := &sync.Mutex{}
	connMu.Lock()
	defer connMu.Unlock()

	h.mu.Lock()
	if len(h.clients) >= maxStreamConns {
		h.mu.Unlock()
		return false
	}
	h.clients[conn] = connMu
	backlog := append([]pipeline.Event(nil), h.recent...)
	h.mu.Unlock()

	for _, e := range backlog {
		if err := conn.WriteJSON(e); err != nil {
			break
		}
	}
	return true
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Recent returns a copy of the event backlog.
func (h *Hub) Recent() []pipeline.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]pipeline.Event(nil), h.recent...)
}

// Broadcast records e in the backlog and writes it to every client. Clients
// whose write fails are closed and dropped.
func (h *Hub) Broadcast(e pipeline.Event) {
	type target struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}

	h.mu.Lock()
	h.recent = append(h.recent, e)
	if len(h.recent) > catchUpEvents {
		h.recent = h.recent[len(h.recent)-catchUpEvents:]
	}
	targets := make([]target, 0, len(h.clients))
	for conn, connMu := range h.clients {
		targets = append(targets, target{conn, connMu})
	}
	h.mu.Unlock()

	var failed []*websocket.Conn
	for _, t := range targets {
		t.mu.Lock()
		err := t.conn.WriteJSON(e)
		t.mu.Unlock()
		if err != nil {
			slog.Debug("stream write failed", "remote", t.conn.RemoteAddr().String(), "error", err)
			t.conn.Close()
			failed = append(failed, t.conn)
		}
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, conn := range failed {
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	}
}

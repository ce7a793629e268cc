// Package stream pushes job snapshots to websocket clients.
package stream

import (
	"sync"

	"github.com/kiranshivaraju/subrelay/internal/metrics"
	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// sendBuffer is how many snapshots a client may fall behind before it is dropped.
const sendBuffer = 16

type client struct {
	send chan models.JobView
}

// Hub fans snapshots out to connected clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Broadcast queues v for every client. It never blocks: a client whose
// buffer is full is disconnected. Use it as a jobstate observer.
func (h *Hub) Broadcast(v models.JobView) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- v:
		default:
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// subscribe returns nil once the hub is closed.
func (h *Hub) subscribe() *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	c := &client{send: make(chan models.JobView, sendBuffer)}
	h.clients[c] = struct{}{}
	metrics.StreamClients.Inc()
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.StreamClients.Dec()
}

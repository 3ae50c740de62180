package websocket

import (
	"sync"

	"github.com/dennisdiepolder/monti/frontdesk/internal/metrics"
	"github.com/rs/zerolog"
)

// Hub fans dashboard snapshots out to every connected viewer. The newest
// snapshot is kept so a viewer that connects between passes is not left blank.
type Hub struct {
	mu      sync.RWMutex
	viewers map[*Client]struct{}
	latest  []byte

	snapshots chan []byte
	join      chan *Client
	leave     chan *Client

	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		viewers:   make(map[*Client]struct{}),
		snapshots: make(chan []byte, 256),
		join:      make(chan *Client),
		leave:     make(chan *Client),
		logger:    logger.With().Str("component", "dashboard_hub").Logger(),
	}
}

// Run serializes joins, leaves and snapshot fan-out. It never returns.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.join:
			h.add(c)
		case c := <-h.leave:
			h.mu.Lock()
			h.drop(c, "client disconnected")
			h.mu.Unlock()
		case snapshot := <-h.snapshots:
			h.fanOut(snapshot)
		}
	}
}

// Broadcast queues a snapshot for every connected viewer
func (h *Hub) Broadcast(snapshot []byte) {
	h.snapshots <- snapshot
}

// LatestSnapshot returns the last snapshot handed to the viewers, or nil
func (h *Hub) LatestSnapshot() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// ClientCount returns the number of connected viewers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.viewers[c] = struct{}{}
	if h.latest != nil {
		c.offer(h.latest)
	}
	total := len(h.viewers)
	h.mu.Unlock()

	metrics.Get().RecordWebSocketConnect()
	h.logger.Info().
		Str("client_id", c.id).
		Str("user", c.user).
		Int("total_clients", total).
		Msg("client connected")
}

// drop removes c and closes its queue. Callers hold h.mu.
func (h *Hub) drop(c *Client, reason string) {
	if _, ok := h.viewers[c]; !ok {
		return
	}
	delete(h.viewers, c)
	close(c.queue)

	metrics.Get().RecordWebSocketDisconnect()
	h.logger.Info().
		Str("client_id", c.id).
		Int("total_clients", len(h.viewers)).
		Msg(reason)
}

func (h *Hub) fanOut(snapshot []byte) {
	m := metrics.Get()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = snapshot
	for c := range h.viewers {
		if c.offer(snapshot) {
			m.RecordWebSocketMessage()
			continue
		}
		m.RecordWebSocketError()
		h.drop(c, "client queue full, closing connection")
	}
}

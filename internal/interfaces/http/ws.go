package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 16
)

// ProgressEvent is pushed to WebSocket subscribers after every mutation.
// Completed lists the title ids whose requirements flipped from unmet to
// met by the triggering mutation, which is what drives the celebratory UI.
type ProgressEvent struct {
	XP        float64  `json:"xp"`
	Level     float64  `json:"level"`
	Events    int      `json:"events"`
	Completed []string `json:"completed,omitempty"`
}

// client pairs a connection with its outbound queue. All writes to the
// connection happen on the client's writer goroutine: gorilla/websocket
// allows only one concurrent writer per connection.
type client struct {
	conn *websocket.Conn
	send chan ProgressEvent
}

// Hub fans progress events out to connected WebSocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  zerolog.Logger

	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from another origin in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and keeps the connection registered until the
// peer goes away. Clients only listen; inbound frames are drained and
// discarded.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan ProgressEvent, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	go func() {
		defer h.drop(c)
		for {
			if _, _, err := c.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writeLoop is the single writer for one connection. It exits when the
// client's queue closes or a write fails.
func (h *Hub) writeLoop(c *client) {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			h.logger.Debug().Err(err).Msg("websocket write failed, dropping client")
			h.drop(c)
			return
		}
	}
}

// drop unregisters the client and closes its queue exactly once.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Broadcast queues the event for every connected client. A client whose
// queue is full is too far behind to be worth keeping and is dropped.
// Queueing happens under the lock so an event is never sent to a closed
// queue; the actual writes run on the per-client writer goroutines.
func (h *Hub) Broadcast(ev ProgressEvent) {
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.logger.Debug().Msg("dropping slow websocket client")
			delete(h.clients, c)
			close(c.send)
			c.conn.Close()
		}
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/satindergrewal/needledrop/internal/monitor"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps what a status client may send us
	maxMessageSize = 4 * 1024

	clientBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub holds the latest status snapshot and pushes each new one to every
// websocket client. Publish never blocks the caller.
type Hub struct {
	logger zerolog.Logger

	mu        sync.RWMutex
	latest    monitor.Snapshot
	encoded   []byte
	clients   map[*client]struct{}
	listeners func() int
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// SetListenerCount installs the function used to fill Snapshot.Listeners.
func (h *Hub) SetListenerCount(fn func() int) {
	h.mu.Lock()
	h.listeners = fn
	h.mu.Unlock()
}

// Publish stores snap as the latest snapshot and queues it for every
// client. Clients that are behind miss the update.
func (h *Hub) Publish(snap monitor.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listeners != nil {
		snap.Listeners = h.listeners()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode snapshot")
		return
	}
	h.latest = snap
	h.encoded = data

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Latest returns the most recent snapshot and whether one was published.
func (h *Hub) Latest() (monitor.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.encoded != nil
}

// ClientCount returns the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every websocket client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.encoded != nil {
		c.send <- h.encoded
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeHTTP upgrades the request and streams snapshots until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}
	h.register(c)
	h.logger.Debug().Str("remote", r.RemoteAddr).Int("clients", h.ClientCount()).Msg("status client connected")

	go c.writePump()
	c.readPump()
}

// client is one websocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump only drains the connection so pongs and disconnects are seen.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only goroutine that writes to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

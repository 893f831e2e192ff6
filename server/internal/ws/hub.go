package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/waterworm/waterworm/server/internal/alerts"
	"github.com/waterworm/waterworm/server/internal/api"
)

const (
	writeTimeout = 10 * time.Second

	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing frame buffer depth.
	sendBufSize = 16
)

// EventSnapshot is the only event the hub emits.
const EventSnapshot = "snapshot"

// SourceParam is the query parameter that narrows a stream to one source.
const SourceParam = "source"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// SnapshotSource produces the payload broadcast to clients.
type SnapshotSource interface {
	Snapshot() api.SnapshotResponse
}

// Hub streams progress snapshots to WebSocket clients. A client connected
// with ?source=<id> only receives that source and its alerts.
type Hub struct {
	source   SnapshotSource
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	source string // empty for every source
}

// New creates a Hub that reads from src and broadcasts every interval.
func New(src SnapshotSource, interval time.Duration) *Hub {
	return &Hub{
		source:   src,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run broadcasts on every tick until ctx is cancelled, then closes all
// connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast()
		}
	}
}

// ServeHTTP upgrades the connection, sends the current snapshot at once and
// then streams broadcasts until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		source: r.URL.Query().Get(SourceParam),
	}
	// Queue the current snapshot before registering so a broadcast cannot
	// close send first.
	if data, err := encode(h.source.Snapshot(), c.source); err == nil {
		c.send <- data
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Debug("ws: client connected", "remote", c.conn.RemoteAddr(), "source", c.source)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast sends one frame per client. Frames are encoded once per distinct
// source filter. Sends happen under the read lock because send channels are
// only closed under the write lock.
func (h *Hub) broadcast() {
	snap := h.source.Snapshot()
	frames := make(map[string][]byte)

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		data, ok := frames[c.source]
		if !ok {
			var err error
			if data, err = encode(snap, c.source); err != nil {
				slog.Warn("ws: encode snapshot", "source", c.source, "err", err)
				continue
			}
			frames[c.source] = data
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Debug("ws: dropping slow client", "remote", c.conn.RemoteAddr())
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// encode wraps snap in a Message, narrowed to sourceID when it is set.
func encode(snap api.SnapshotResponse, sourceID string) ([]byte, error) {
	if sourceID != "" {
		snap = filter(snap, sourceID)
	}
	return json.Marshal(Message{Event: EventSnapshot, Data: snap})
}

func filter(snap api.SnapshotResponse, sourceID string) api.SnapshotResponse {
	out := api.SnapshotResponse{
		Sources:     []api.ProgressResponse{},
		Alerts:      []*alerts.Alert{},
		GeneratedAt: snap.GeneratedAt,
	}
	for _, s := range snap.Sources {
		if s.SourceID == sourceID {
			out.Sources = append(out.Sources, s)
		}
	}
	for _, a := range snap.Alerts {
		if a.SourceID == sourceID {
			out.Alerts = append(out.Alerts, a)
		}
	}
	return out
}

// writePump forwards frames from send to the connection and pings the
// client. It owns all writes to conn.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and returns when the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
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

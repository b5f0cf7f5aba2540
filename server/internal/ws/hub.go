package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/regionpulse/regionpulse/pkg/types"
	"github.com/regionpulse/regionpulse/server/internal/api"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// maxFrameBytes caps one inbound request frame.
	maxFrameBytes = 64 << 10
)

// Reply events.
const (
	EventResult = "result"
	EventError  = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origins are enforced by the HTTP CORS policy, not at upgrade time.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Querier answers latency requests. *api.Handler implements it.
type Querier interface {
	Query(req types.LatencyRequest) (types.LatencyResponse, error)
}

// Message is the JSON envelope sent in reply to every request frame.
type Message struct {
	Event string                 `json:"event"`
	Data  *types.LatencyResponse `json:"data,omitempty"`
	Error string                 `json:"error,omitempty"`
}

// Hub manages WebSocket clients of the latency query stream. Each text frame
// a client sends is one latency request; the hub answers with one Message.
type Hub struct {
	q Querier

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that answers requests with q.
func New(q Querier) *Hub {
	return &Hub{
		q:       q,
		clients: make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client
// until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	slog.Debug("ws: client connected", "remote", r.RemoteAddr, "request_id", api.RequestID(r.Context()))

	go c.writePump()
	h.readPump(c) // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// deliver queues msg for c. It reports false if c is gone or its buffer is
// full, in which case c is disconnected.
func (h *Hub) deliver(c *client, msg []byte) bool {
	h.mu.RLock()
	_, ok := h.clients[c]
	if ok {
		select {
		case c.send <- msg:
		default:
			ok = false
		}
	}
	h.mu.RUnlock()

	if !ok {
		h.unregister(c)
	}
	return ok
}

// answer turns one request frame into an encoded reply.
func (h *Hub) answer(frame []byte) []byte {
	var msg Message
	req, err := api.DecodeLatencyRequestBytes(frame)
	if err == nil {
		var resp types.LatencyResponse
		resp, err = h.q.Query(req)
		if err == nil {
			msg = Message{Event: EventResult, Data: &resp}
		}
	}
	if err != nil {
		msg = Message{Event: EventError, Error: err.Error()}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("ws: encode reply", "err", err)
		data, _ = json.Marshal(Message{Event: EventError, Error: "internal error"})
	}
	return data
}

// readPump reads request frames and answers each in order. Blocks until the
// connection closes.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws: read", "err", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		if kind != websocket.TextMessage {
			continue
		}
		if !h.deliver(c, h.answer(frame)) {
			return
		}
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package websocket is the broadcast bridge half of spec.md §4.6: a hub
// draining a buffered channel on the reactor goroutine and fanning frames
// out to every connected dashboard client.
package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/cache"
)

// Frame is what goes out on the wire: either a full cache snapshot on
// connect, or a single `{node_id: payload}` object thereafter (spec.md
// §4.6, §6.4).
type Frame map[string]cache.Payload

// sendBuffer is the per-client channel depth. Adapted from the teacher's
// unbounded broadcast into the drop-oldest policy spec.md §9's "cross-thread
// bridge" design note calls for: live telemetry favors the newest value
// over guaranteed delivery of every intermediate one.
const sendBuffer = 32

// Client is one connected dashboard websocket.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan Frame
	hub  *Hub
}

// Hub maintains the set of connected clients and the broadcast channel fed
// by Publish. Run must be started once on its own goroutine.
type Hub struct {
	log *zap.Logger

	clients    map[string]*Client
	broadcast  chan Frame
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub constructs a hub. log may be nil in tests.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:        log,
		clients:    make(map[string]*Client),
		broadcast:  make(chan Frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the hub's single reactor loop: register/unregister/broadcast never
// touch client state from any other goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()

		case frame := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				enqueueDropOldest(client.send, frame)
			}
			h.mu.RUnlock()
		}
	}
}

// enqueueDropOldest pushes frame onto ch, discarding the oldest queued
// frame first if the channel is full, so one slow client falls behind on
// history rather than blocking the reactor (spec.md §4.6, §9).
func enqueueDropOldest(ch chan Frame, frame Frame) {
	select {
	case ch <- frame:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- frame:
	default:
	}
}

// Publish enqueues a single-entry frame for broadcast. Safe to call from
// any goroutine (poller or OPC UA write handler).
func (h *Hub) Publish(nodeID string, payload cache.Payload) {
	h.broadcast <- Frame{nodeID: payload}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection registers a new client, sends the snapshot, and blocks
// pumping frames until the connection closes. snapshot is captured at
// connect time so it reflects the cache as of registration, per spec.md
// §4.6 "current cache snapshot is sent before the normal stream begins".
func (h *Hub) HandleConnection(c *websocket.Conn, snapshot Frame) {
	client := &Client{
		id:   uuid.NewString(),
		conn: c,
		send: make(chan Frame, sendBuffer),
		hub:  h,
	}

	h.register <- client

	if len(snapshot) > 0 {
		if data, err := json.Marshal(snapshot); err == nil {
			c.WriteMessage(websocket.TextMessage, data)
		}
	}

	go client.writePump()
	client.readPump()
}

// readPump discards client frames (keepalive only, per spec.md §6.4) until
// the connection errors or closes.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump serializes each frame to JSON and writes it out, ending the
// connection on the first write error.
func (c *Client) writePump() {
	defer c.conn.Close()

	for frame := range c.send {
		data, err := json.Marshal(frame)
		if err != nil {
			c.hub.log.Warn("websocket frame marshal failed", zap.Error(err))
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

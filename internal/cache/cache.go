// Package cache holds the process-wide tag-state map shared by the poller,
// the OPC UA write path, and the websocket endpoint (spec.md §4.6).
package cache

import "sync"

// Direction is the origin of a Payload update.
type Direction string

const (
	DirRead  Direction = "read"
	DirWrite Direction = "write"
	DirInit  Direction = "init"
)

// Status is the link-health label carried alongside a tag's value.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// ErrValue is the sentinel value substituted for a tag's value on read
// failure (spec.md §3 tag state: "the sentinel string ERR").
const ErrValue = "ERR"

// Writer identifies who last produced a Payload's value. Not consulted by
// the echo-suppression check (which remains value-equality per spec.md
// §4.5) — carried so a future, writer-identity-based suppression rule
// (spec.md §9 design note) can be adopted without a data model change.
type Writer string

const (
	WriterPoll   Writer = "poll"
	WriterClient Writer = "client"
)

// Payload is one tag's displayable state — the shape broadcast over the
// websocket and returned by GET /api/tags, per spec.md §4.4 step 2/3.
type Payload struct {
	Name       string      `json:"name"`
	Value      interface{} `json:"value"`
	Time       string      `json:"time"`
	Dir        Direction   `json:"dir"`
	Status     Status      `json:"status"`
	LastWriter Writer      `json:"-"`
}

// Cache is the single-lock map `node_id -> payload` spec.md §3 and §4.6
// require. Every mutation and read goes through the one RWMutex; callers
// must never hold it across I/O (spec.md §5).
type Cache struct {
	mu   sync.RWMutex
	data map[string]Payload
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{data: make(map[string]Payload)}
}

// Set stores payload under nodeID, replacing any previous payload. It does
// not compare against the old value; echo suppression uses ValueEquals.
func (c *Cache) Set(nodeID string, payload Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[nodeID] = payload
}

// Get returns the current payload for nodeID, if any.
func (c *Cache) Get(nodeID string) (Payload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.data[nodeID]
	return p, ok
}

// ValueEquals reports whether nodeID's cached value equals v — the
// echo-suppression primitive of spec.md §4.5 step 1. A tag with no cached
// value yet never suppresses.
func (c *Cache) ValueEquals(nodeID string, v interface{}) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.data[nodeID]
	if !ok {
		return false
	}
	return p.Value == v
}

// Snapshot returns a copy of the full cache, used for the websocket
// connect-time snapshot and GET /api/tags (spec.md §4.6).
func (c *Cache) Snapshot() map[string]Payload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Payload, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

package opcua

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/cache"
	"github.com/neoedge/gateway/internal/gateway"
	"github.com/neoedge/gateway/internal/modbus"
)

// Broadcaster publishes one node's payload to connected websocket clients.
type Broadcaster interface {
	Publish(nodeID string, payload cache.Payload)
}

// WriteHandler is the OPC UA integration's data-change consumer (spec.md
// §4.5), grounded on original_source/neo_opcua.py's WriteHandler class.
// Runs on its own worker(s), parallel to the polling scheduler.
type WriteHandler struct {
	registry *gateway.Registry
	links    map[string]modbus.Link
	cache    *cache.Cache
	bus      Broadcaster
	log      *zap.Logger

	now func() time.Time
}

// NewWriteHandler wires the registry, link set, cache, and broadcast bus a
// write handler needs to turn client writes into Modbus commands.
func NewWriteHandler(reg *gateway.Registry, links map[string]modbus.Link, c *cache.Cache, bus Broadcaster, log *zap.Logger) *WriteHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WriteHandler{registry: reg, links: links, cache: c, bus: bus, log: log, now: time.Now}
}

// Run drains events until ctx is cancelled or the channel closes. Typically
// started as several goroutines sharing one channel, modeling the OPC UA
// stack's own internal worker pool (spec.md §5).
func (h *WriteHandler) Run(ctx context.Context, events <-chan DataChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.handle(ev)
		}
	}
}

// handle implements spec.md §4.5's write-handler steps 1-5.
func (h *WriteHandler) handle(ev DataChangeEvent) {
	// Step 1: echo suppression. The poller writes the cache after setting
	// the node, so by the time this fires the cache already matches
	// (poller echo) or differs (true client write).
	if h.cache.ValueEquals(ev.NodeID, ev.Value) {
		return
	}

	// Step 2: look up the tag mapping; input registers are never writable.
	entry, ok := h.registry.Lookup(ev.NodeID)
	if !ok {
		h.log.Warn("opcua write: unknown node", zap.String("node_id", ev.NodeID))
		return
	}
	if entry.Mapping.Function == modbus.FunctionInput {
		return
	}

	// Step 3: resolve the link.
	link, ok := h.links[entry.Mapping.Link]
	if !ok {
		h.log.Error("opcua write: link not found", zap.String("node_id", ev.NodeID), zap.String("link", entry.Mapping.Link))
		return
	}

	// Step 4: issue the Modbus write. On failure, log and leave the cache
	// alone; the next poll reconciles.
	if err := link.WriteTag(context.Background(), entry.Mapping, ev.Value); err != nil {
		h.log.Error("opcua write: modbus write failed", zap.String("node_id", ev.NodeID), zap.Error(err))
		return
	}

	// Step 5: publish the write-origin payload.
	payload := cache.Payload{
		Name:       entry.Name,
		Value:      ev.Value,
		Time:       h.now().Format("15:04:05"),
		Dir:        cache.DirWrite,
		Status:     cache.StatusOnline,
		LastWriter: cache.WriterClient,
	}
	h.cache.Set(ev.NodeID, payload)
	h.bus.Publish(ev.NodeID, payload)
}

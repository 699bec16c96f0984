package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/cache"
	"github.com/neoedge/gateway/internal/modbus"
)

// NodeSetter is the OPC UA server's side of the scheduler contract: set a
// node's current value. The resulting data-change still reaches the write
// handler, whose echo check keeps it from being re-issued. Satisfied by
// *internal/opcua.Server; declared here to keep internal/gateway from
// importing internal/opcua.
type NodeSetter interface {
	SetValue(nodeID string, value interface{}) error
}

// Broadcaster publishes one node's payload to connected websocket clients.
// Satisfied by *internal/websocket.Hub.
type Broadcaster interface {
	Publish(nodeID string, payload cache.Payload)
}

// Scheduler is the polling loop of spec.md §4.4: one goroutine, dedicated,
// never suspending cooperatively except on I/O and its own ticker.
type Scheduler struct {
	registry *Registry
	links    map[string]modbus.Link
	nodes    NodeSetter
	cache    *cache.Cache
	bus      Broadcaster
	interval time.Duration
	log      *zap.Logger

	now func() time.Time // overridable in tests
}

// NewScheduler wires the registry, link set, OPC UA node setter, cache, and
// broadcast bus into a ready-to-run scheduler.
func NewScheduler(reg *Registry, links map[string]modbus.Link, nodes NodeSetter, c *cache.Cache, bus Broadcaster, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		registry: reg,
		links:    links,
		nodes:    nodes,
		cache:    c,
		bus:      bus,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run blocks, polling every tag once per interval, until ctx is cancelled.
// Grounded on original_source/main.py's poll_loop: iterate, read, update
// node + cache, broadcast, sleep — with per-tag failure isolation
// (invariant 7: a failing tag never skips or delays its neighbors).
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce visits every registry entry exactly once, in registry order.
func (s *Scheduler) pollOnce(ctx context.Context) {
	for _, entry := range s.registry.Entries() {
		s.pollTag(ctx, entry)
	}
}

func (s *Scheduler) pollTag(ctx context.Context, entry Entry) {
	link, ok := s.links[entry.Mapping.Link]
	if !ok {
		s.log.Error("poll: link not found", zap.String("node_id", entry.NodeID), zap.String("link", entry.Mapping.Link))
		return
	}

	value, err := link.ReadTag(ctx, entry.Mapping)
	ts := s.now().Format("15:04:05")

	if err != nil {
		s.log.Warn("poll: read failed", zap.String("node_id", entry.NodeID), zap.String("link", link.Name()), zap.Error(err))
		payload := cache.Payload{Name: entry.Name, Value: cache.ErrValue, Time: ts, Dir: cache.DirRead, Status: cache.StatusOffline, LastWriter: cache.WriterPoll}
		s.cache.Set(entry.NodeID, payload)
		s.bus.Publish(entry.NodeID, payload)
		return
	}

	if err := s.nodes.SetValue(entry.NodeID, value); err != nil {
		s.log.Error("poll: set node value failed", zap.String("node_id", entry.NodeID), zap.Error(err))
	}

	payload := cache.Payload{Name: entry.Name, Value: value, Time: ts, Dir: cache.DirRead, Status: cache.StatusOnline, LastWriter: cache.WriterPoll}
	s.cache.Set(entry.NodeID, payload)
	s.bus.Publish(entry.NodeID, payload)
}

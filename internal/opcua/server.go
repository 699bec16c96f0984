// Package opcua models the OPC UA server role spec.md §4.5/§6.3 requires:
// an address space, data-change dispatch, and the security/auth surface.
// No OPC UA *server* Go library exists in the dependency pack (gopcua is
// client-only — see DESIGN.md), so the address space and subscription
// dispatch here are hand-rolled; the ua subpackage of gopcua is still used
// throughout for standard vocabulary (variant types, status codes, security
// policy URIs) instead of inventing one.
package opcua

import (
	"fmt"
	"sync"

	"github.com/gopcua/opcua/ua"
	"go.uber.org/zap"
)

// node is one address-space variable (spec.md §3 "OPC UA node objects are
// owned by the OPC UA server").
type node struct {
	mu          sync.Mutex
	name        string
	value       interface{}
	writable    bool
	variantType ua.VariantType
}

// DataChangeEvent is what a node publishes on every value change,
// regardless of who set it — the write handler is what distinguishes an
// echo from a true client write (spec.md §4.5).
type DataChangeEvent struct {
	NodeID string
	Value  interface{}
}

// Server is the hand-rolled address space: a node table plus a bounded feed
// of data-change events consumed by a write-handler worker pool running
// "parallel" to the polling scheduler (spec.md §5).
type Server struct {
	log       *zap.Logger
	Endpoint  string
	Namespace string
	Security  SecurityConfig

	mu    sync.RWMutex
	nodes map[string]*node

	changes chan DataChangeEvent
}

// NewServer constructs a server with its subscription feed ready but not
// yet draining; callers start the write-handler workers against Changes().
func NewServer(endpoint, namespace string, security SecurityConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:       log,
		Endpoint:  endpoint,
		Namespace: namespace,
		Security:  security,
		nodes:     make(map[string]*node),
		changes:   make(chan DataChangeEvent, 256),
	}
}

// AddNode registers a new address-space variable under the Objects node
// (spec.md §4.3/§6.3: one namespace, writable iff function != input).
func (s *Server) AddNode(nodeID, name string, initial interface{}, writable bool, vt ua.VariantType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[nodeID]; exists {
		return fmt.Errorf("opcua: duplicate node id %q", nodeID)
	}
	s.nodes[nodeID] = &node{name: name, value: initial, writable: writable, variantType: vt}
	return nil
}

// SetValue sets a node's value and fires its data-change subscription.
// Used by the polling scheduler (it satisfies gateway.NodeSetter) and by
// ClientWrite below — both paths converge here because a real OPC UA
// server fires data-change on every Write regardless of origin; it is the
// write handler's job, not the server's, to tell poller echoes from true
// client writes apart.
func (s *Server) SetValue(nodeID string, value interface{}) error {
	n, ok := s.lookup(nodeID)
	if !ok {
		return fmt.Errorf("opcua: unknown node %q", nodeID)
	}
	n.mu.Lock()
	n.value = value
	n.mu.Unlock()

	s.changes <- DataChangeEvent{NodeID: nodeID, Value: value}
	return nil
}

// ClientWrite is the entry point a real OPC UA binary-protocol session
// would call on receiving a Write service request from a connected client.
// No such transport listener exists in this repo (see DESIGN.md); tests and
// any future transport adapter call this directly to model an inbound
// client write.
func (s *Server) ClientWrite(nodeID string, value interface{}) error {
	n, ok := s.lookup(nodeID)
	if !ok {
		return fmt.Errorf("opcua: unknown node %q", nodeID)
	}
	if !n.writable {
		return fmt.Errorf("opcua: node %q is not writable", nodeID)
	}
	return s.SetValue(nodeID, value)
}

// Value returns a node's current value, for tests and the HTTP snapshot API.
func (s *Server) Value(nodeID string) (interface{}, bool) {
	n, ok := s.lookup(nodeID)
	if !ok {
		return nil, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value, true
}

// DisplayName returns a node's configured name.
func (s *Server) DisplayName(nodeID string) (string, bool) {
	n, ok := s.lookup(nodeID)
	if !ok {
		return "", false
	}
	return n.name, true
}

// Changes exposes the data-change feed for the write-handler workers.
func (s *Server) Changes() <-chan DataChangeEvent {
	return s.changes
}

func (s *Server) lookup(nodeID string) (*node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[nodeID]
	return n, ok
}

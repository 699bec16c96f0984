package opcua

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/cache"
	"github.com/neoedge/gateway/internal/gateway"
	"github.com/neoedge/gateway/internal/modbus"
)

type fakeLink struct {
	mu     sync.Mutex
	writes []interface{}
}

func (f *fakeLink) Name() string { return "plc1" }
func (f *fakeLink) ReadTag(ctx context.Context, tag modbus.TagMapping) (interface{}, error) {
	return nil, nil
}
func (f *fakeLink) WriteTag(ctx context.Context, tag modbus.TagMapping, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, value)
	return nil
}
func (f *fakeLink) Close() error { return nil }

type fakeBus struct {
	mu        sync.Mutex
	published []cache.Payload
}

func (b *fakeBus) Publish(nodeID string, payload cache.Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, payload)
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func newTestHandler(t *testing.T) (*WriteHandler, *fakeLink, *cache.Cache, *fakeBus) {
	t.Helper()
	specs := []gateway.TagSpec{
		{NodeID: "ns=2;s=Temp", Name: "Temp", Link: "plc1", Function: modbus.FunctionHolding, Address: 6, DataType: modbus.DataTypeInt16},
		{NodeID: "ns=2;s=Input1", Name: "Input1", Link: "plc1", Function: modbus.FunctionInput, Address: 1, DataType: modbus.DataTypeUint16},
	}
	link := &fakeLink{}
	reg, err := gateway.Build(specs, map[string]modbus.Link{"plc1": link})
	require.NoError(t, err)

	c := cache.New()
	bus := &fakeBus{}
	h := NewWriteHandler(reg, map[string]modbus.Link{"plc1": link}, c, bus, zap.NewNop())
	return h, link, c, bus
}

// TestWriteHandlerClientWrite exercises S3: a client write issues the
// Modbus write and broadcasts a dir="write" payload.
func TestWriteHandlerClientWrite(t *testing.T) {
	h, link, c, bus := newTestHandler(t)

	h.handle(DataChangeEvent{NodeID: "ns=2;s=Temp", Value: int16(42)})

	require.Len(t, link.writes, 1)
	assert.Equal(t, int16(42), link.writes[0])

	payload, ok := c.Get("ns=2;s=Temp")
	require.True(t, ok)
	assert.Equal(t, cache.DirWrite, payload.Dir)
	assert.Equal(t, cache.WriterClient, payload.LastWriter)
	assert.Equal(t, 1, bus.count())
}

// TestWriteHandlerEchoSuppression exercises invariant 5 / S4: a
// data-change carrying the value the poller already committed produces no
// Modbus write.
func TestWriteHandlerEchoSuppression(t *testing.T) {
	h, link, c, _ := newTestHandler(t)

	c.Set("ns=2;s=Temp", cache.Payload{Value: int16(7), LastWriter: cache.WriterPoll})

	h.handle(DataChangeEvent{NodeID: "ns=2;s=Temp", Value: int16(7)})

	assert.Empty(t, link.writes)
}

func TestWriteHandlerDropsInputFunctionWrites(t *testing.T) {
	h, link, _, bus := newTestHandler(t)

	h.handle(DataChangeEvent{NodeID: "ns=2;s=Input1", Value: uint16(5)})

	assert.Empty(t, link.writes)
	assert.Equal(t, 0, bus.count())
}

func TestWriteHandlerUnknownNodeIsIgnored(t *testing.T) {
	h, link, _, bus := newTestHandler(t)

	h.handle(DataChangeEvent{NodeID: "does-not-exist", Value: 1})

	assert.Empty(t, link.writes)
	assert.Equal(t, 0, bus.count())
}

func TestServerSetValueFiresChangeEvent(t *testing.T) {
	s := NewServer("opc.tcp://0.0.0.0:4840", "urn:test", SecurityConfig{}, zap.NewNop())
	require.NoError(t, s.AddNode("n1", "Tag1", int16(0), true, 0))

	require.NoError(t, s.SetValue("n1", int16(9)))

	select {
	case ev := <-s.Changes():
		assert.Equal(t, "n1", ev.NodeID)
		assert.Equal(t, int16(9), ev.Value)
	case <-time.After(time.Second):
		t.Fatal("expected a data-change event")
	}

	val, ok := s.Value("n1")
	require.True(t, ok)
	assert.Equal(t, int16(9), val)
}

func TestServerClientWriteRejectsReadOnlyNode(t *testing.T) {
	s := NewServer("opc.tcp://0.0.0.0:4840", "urn:test", SecurityConfig{}, zap.NewNop())
	require.NoError(t, s.AddNode("n1", "Tag1", uint16(0), false, 0))

	err := s.ClientWrite("n1", uint16(1))
	assert.Error(t, err)
}

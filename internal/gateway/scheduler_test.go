package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/cache"
	"github.com/neoedge/gateway/internal/modbus"
)

type fakeLink struct {
	mu      sync.Mutex
	name    string
	values  map[uint16]interface{}
	failFor map[uint16]bool
}

func newFakeLink(name string) *fakeLink {
	return &fakeLink{name: name, values: make(map[uint16]interface{}), failFor: make(map[uint16]bool)}
}

func (f *fakeLink) Name() string { return f.name }

func (f *fakeLink) ReadTag(ctx context.Context, tag modbus.TagMapping) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[tag.Address] {
		return nil, errors.New("boom: transport failure")
	}
	return f.values[tag.Address], nil
}

func (f *fakeLink) WriteTag(ctx context.Context, tag modbus.TagMapping, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[tag.Address] = value
	return nil
}

func (f *fakeLink) Close() error { return nil }

type fakeNodeSetter struct {
	mu     sync.Mutex
	values map[string]interface{}
}

func newFakeNodeSetter() *fakeNodeSetter {
	return &fakeNodeSetter{values: make(map[string]interface{})}
}

func (n *fakeNodeSetter) SetValue(nodeID string, value interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values[nodeID] = value
	return nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []cache.Payload
}

func (b *fakeBus) Publish(nodeID string, payload cache.Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, payload)
}

func TestSchedulerPollOnceUpdatesCacheAndNode(t *testing.T) {
	link := newFakeLink("plc1")
	link.values[100] = uint16(123)

	specs := []TagSpec{{NodeID: "n1", Name: "Tag1", Link: "plc1", Function: modbus.FunctionHolding, Address: 100, DataType: modbus.DataTypeUint16}}
	reg, err := Build(specs, map[string]modbus.Link{"plc1": link})
	require.NoError(t, err)

	nodes := newFakeNodeSetter()
	c := cache.New()
	bus := &fakeBus{}

	sched := NewScheduler(reg, map[string]modbus.Link{"plc1": link}, nodes, c, bus, time.Second, zap.NewNop())
	sched.pollOnce(context.Background())

	payload, ok := c.Get("n1")
	require.True(t, ok)
	assert.Equal(t, cache.StatusOnline, payload.Status)
	assert.Equal(t, uint16(123), payload.Value)
	assert.Equal(t, uint16(123), nodes.values["n1"])
	require.Len(t, bus.published, 1)
}

func TestSchedulerFailureIsolation(t *testing.T) {
	link := newFakeLink("plc1")
	link.values[1] = uint16(1)
	link.failFor[51] = true
	link.values[100] = uint16(2)

	specs := []TagSpec{
		{NodeID: "good1", Name: "Good1", Link: "plc1", Function: modbus.FunctionHolding, Address: 1, DataType: modbus.DataTypeUint16},
		{NodeID: "bad", Name: "Bad", Link: "plc1", Function: modbus.FunctionHolding, Address: 51, DataType: modbus.DataTypeUint16},
		{NodeID: "good2", Name: "Good2", Link: "plc1", Function: modbus.FunctionHolding, Address: 100, DataType: modbus.DataTypeUint16},
	}
	reg, err := Build(specs, map[string]modbus.Link{"plc1": link})
	require.NoError(t, err)

	nodes := newFakeNodeSetter()
	c := cache.New()
	bus := &fakeBus{}

	sched := NewScheduler(reg, map[string]modbus.Link{"plc1": link}, nodes, c, bus, time.Second, zap.NewNop())
	sched.pollOnce(context.Background())

	good1, ok := c.Get("good1")
	require.True(t, ok)
	assert.Equal(t, cache.StatusOnline, good1.Status)

	bad, ok := c.Get("bad")
	require.True(t, ok)
	assert.Equal(t, cache.StatusOffline, bad.Status)
	assert.Equal(t, cache.ErrValue, bad.Value)

	good2, ok := c.Get("good2")
	require.True(t, ok)
	assert.Equal(t, cache.StatusOnline, good2.Status)

	require.Len(t, bus.published, 3)
}

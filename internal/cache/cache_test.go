package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New()
	c.Set("ns=2;s=Temp", Payload{Name: "Temp", Value: 3.14, Time: "10:00:00", Dir: DirRead, Status: StatusOnline})

	p, ok := c.Get("ns=2;s=Temp")
	assert.True(t, ok)
	assert.Equal(t, 3.14, p.Value)
}

func TestGetMissingNode(t *testing.T) {
	c := New()
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestValueEqualsFalseWhenUnset(t *testing.T) {
	c := New()
	assert.False(t, c.ValueEquals("unset", 7))
}

func TestValueEqualsDetectsEcho(t *testing.T) {
	c := New()
	c.Set("n1", Payload{Value: 7})
	assert.True(t, c.ValueEquals("n1", 7))
	assert.False(t, c.ValueEquals("n1", 8))
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	c := New()
	c.Set("n1", Payload{Value: 1})
	snap := c.Snapshot()
	c.Set("n1", Payload{Value: 2})
	assert.Equal(t, 1, snap["n1"].Value)
}

// TestMonotonicVisibility exercises invariant 6 under concurrent writers:
// the value observed via Get after the Sets is one of the payloads a Set
// committed in full, never a torn state.
func TestMonotonicVisibility(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("n1", Payload{Value: i})
		}(i)
	}
	wg.Wait()

	p, ok := c.Get("n1")
	assert.True(t, ok)
	v, isInt := p.Value.(int)
	assert.True(t, isInt)
	assert.True(t, v >= 0 && v < 50)
}

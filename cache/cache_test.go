package cache

import (
	"expvar"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCachePutGet(t *testing.T) {
	c := NewLRUCache[uint32, string](2, nil)

	c.Put(1, "one")
	c.Put(2, "two")

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	var evictedKeys []uint32
	c := NewLRUCache(2, func(key uint32, _ string) {
		evictedKeys = append(evictedKeys, key)
	})

	c.Put(1, "one")
	c.Put(2, "two")
	c.Get(1) // 2 becomes the LRU entry
	c.Put(3, "three")

	assert.Equal(t, []uint32{2}, evictedKeys)
	_, ok := c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(1)
	assert.True(t, ok)
}

func TestLRUCacheDisabled(t *testing.T) {
	c := NewLRUCache[uint32, string](0, nil)
	c.Put(1, "one")
	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUCacheMetricsAndHitRate(t *testing.T) {
	c := NewLRUCache[uint32, string](4, nil)
	c.SetMetrics(new(expvar.Int), new(expvar.Int))

	c.Put(7, "seven")
	c.Get(7)
	c.Get(8)
	c.Get(7)

	assert.InDelta(t, 2.0/3.0, c.GetHitRate(), 1e-9)
}

func TestLRUCacheClear(t *testing.T) {
	evicted := 0
	c := NewLRUCache(4, func(uint32, string) { evicted++ })
	c.SetMetrics(new(expvar.Int), new(expvar.Int))

	c.Put(1, "a")
	c.Put(2, "b")
	c.Get(1)
	c.Clear()

	assert.Equal(t, 2, evicted)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0.0, c.GetHitRate())
}

func TestLRUCacheUpdateExisting(t *testing.T) {
	c := NewLRUCache[uint32, string](2, nil)
	c.Put(1, "old")
	c.Put(1, "new")

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.Len())
}

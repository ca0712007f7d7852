package translate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_PutGet(t *testing.T) {
	c := newMemoryCache(4)

	c.Put("k1", "hello", "ru")

	text, src, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "ru", src)

	_, _, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestMemoryCache_OverwriteKeepsSize(t *testing.T) {
	c := newMemoryCache(4)

	c.Put("k1", "old", "ru")
	c.Put("k1", "new", "uk")

	assert.Equal(t, 1, c.Len())
	text, src, _ := c.Get("k1")
	assert.Equal(t, "new", text)
	assert.Equal(t, "uk", src)
}

func TestMemoryCache_EvictsOldestWhenFull(t *testing.T) {
	c := newMemoryCache(3)

	for i := 1; i <= 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), "v", "ru")
	}
	c.Put("k4", "v", "ru")

	assert.Equal(t, 3, c.Len())
	_, _, ok := c.Get("k1")
	assert.False(t, ok, "oldest entry should be evicted")
	_, _, ok = c.Get("k4")
	assert.True(t, ok)
}

func TestMemoryCache_GetRefreshesRecency(t *testing.T) {
	c := newMemoryCache(3)

	c.Put("k1", "v", "ru")
	c.Put("k2", "v", "ru")
	c.Put("k3", "v", "ru")

	// Touch k1 so k2 becomes the eviction candidate.
	c.Get("k1")
	c.Put("k4", "v", "ru")

	_, _, ok := c.Get("k1")
	assert.True(t, ok)
	_, _, ok = c.Get("k2")
	assert.False(t, ok)
}

func TestMemoryCache_ZeroCapacity(t *testing.T) {
	c := newMemoryCache(0)

	c.Put("k1", "v", "ru")
	assert.Equal(t, 1, c.Len())

	c.Put("k2", "v", "ru")
	assert.Equal(t, 1, c.Len())
}

package translate

import (
	"container/list"
	"sync"
)

type memoryEntry struct {
	key  string
	text string
	src  string
}

// memoryCache is the hot in-process tier: a fixed-capacity map plus an
// access-order list. Insertion evicts the oldest entry once full; a Get
// moves the entry to the back to approximate LRU.
type memoryCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = oldest
}

func newMemoryCache(capacity int) *memoryCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &memoryCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *memoryCache) Get(key string) (text, src string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", "", false
	}
	c.order.MoveToBack(elem)
	e := elem.Value.(*memoryEntry)
	return e.text, e.src, true
}

func (c *memoryCache) Put(key, text, src string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*memoryEntry)
		e.text, e.src = text, src
		c.order.MoveToBack(elem)
		return
	}

	if len(c.entries) >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*memoryEntry).key)
		}
	}

	c.entries[key] = c.order.PushBack(&memoryEntry{key: key, text: text, src: src})
}

func (c *memoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Package channellock provides per-channel mutual exclusion from a
// bounded registry, so two workers in one process never fetch the same
// channel concurrently while memory stays bounded for an unbounded key
// space.
package channellock

import (
	"container/list"
	"sync"
)

// Registry hands out one lock per key, evicting the least-recently
// requested idle entry once capacity distinct keys exist. Entries with
// outstanding holders are never evicted.
type Registry struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*entry
	order    *list.List // front = least recently requested
}

type entry struct {
	key  string
	lock *KeyLock
	elem *list.Element
}

// KeyLock is a mutual-exclusion handle for one key. Unlock releases both
// the mutex and the registry reference.
type KeyLock struct {
	mu   sync.Mutex
	reg  *Registry
	key  string
	refs int
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 1
	}
	return &Registry{
		capacity: capacity,
		entries:  make(map[string]*entry, capacity),
		order:    list.New(),
	}
}

// Acquire returns the lock for key, creating it on first use. The caller
// must Lock and eventually Unlock the returned handle.
func (r *Registry) Acquire(key string) *KeyLock {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.lock.refs++
		r.order.MoveToBack(e.elem)
		return e.lock
	}

	if len(r.entries) >= r.capacity {
		r.evictIdle()
	}

	lock := &KeyLock{reg: r, key: key, refs: 1}
	e := &entry{key: key, lock: lock}
	e.elem = r.order.PushBack(e)
	r.entries[key] = e
	return lock
}

// evictIdle removes the least-recently-requested entry with no holders.
// Caller holds r.mu.
func (r *Registry) evictIdle() {
	for elem := r.order.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		if e.lock.refs == 0 {
			r.order.Remove(elem)
			delete(r.entries, e.key)
			return
		}
	}
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (l *KeyLock) Lock() {
	l.mu.Lock()
}

func (l *KeyLock) Unlock() {
	l.mu.Unlock()

	l.reg.mu.Lock()
	l.refs--
	l.reg.mu.Unlock()
}

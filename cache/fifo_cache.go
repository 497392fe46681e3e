// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"sync"
)

// FetchFunc is the function signature for fetching values
type FetchFunc[K comparable, V any] func(key K) (V, error)

// FIFOCache is a bounded cache that evicts in insertion order. It suits
// values that never change once computed, such as decryptions of immutable
// ciphertexts.
type FIFOCache[K comparable, V any] struct {
	lk       sync.RWMutex
	cache    map[K]V
	queue    []K
	capacity int

	inflight   map[K]*call[V]
	inflightLk sync.Mutex
}

// call is a fetch in progress
type call[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// NewFIFOCache creates a cache holding at most capacity entries. A
// non-positive capacity caches nothing.
func NewFIFOCache[K comparable, V any](capacity int) *FIFOCache[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	return &FIFOCache[K, V]{
		cache:    make(map[K]V),
		queue:    make([]K, 0, capacity),
		capacity: capacity,
		inflight: make(map[K]*call[V]),
	}
}

// Get returns the cached value or fetches it. Concurrent callers asking for
// the same key share one fetch.
func (c *FIFOCache[K, V]) Get(key K, fetchFunc FetchFunc[K, V]) (V, error) {
	if val, ok := c.Peek(key); ok {
		return val, nil
	}

	c.inflightLk.Lock()
	if cl, ok := c.inflight[key]; ok {
		c.inflightLk.Unlock()
		cl.wg.Wait()
		return cl.val, cl.err
	}
	cl := &call[V]{}
	cl.wg.Add(1)
	c.inflight[key] = cl
	c.inflightLk.Unlock()

	cl.val, cl.err = fetchFunc(key)
	if cl.err == nil {
		c.lk.Lock()
		c.set(key, cl.val)
		c.lk.Unlock()
	}

	c.inflightLk.Lock()
	delete(c.inflight, key)
	c.inflightLk.Unlock()
	cl.wg.Done()

	return cl.val, cl.err
}

// Peek returns the cached value without fetching.
func (c *FIFOCache[K, V]) Peek(key K) (V, bool) {
	c.lk.RLock()
	defer c.lk.RUnlock()

	val, ok := c.cache[key]
	return val, ok
}

// set adds a key-value pair to the cache (caller must hold write lock)
func (c *FIFOCache[K, V]) set(key K, val V) {
	if c.capacity == 0 {
		return
	}
	if _, exists := c.cache[key]; exists {
		c.cache[key] = val
		return
	}
	if len(c.queue) >= c.capacity {
		oldest := c.queue[0]
		c.queue = c.queue[1:]
		delete(c.cache, oldest)
	}
	c.cache[key] = val
	c.queue = append(c.queue, key)
}

// Len returns the current number of items in the cache
func (c *FIFOCache[K, V]) Len() int {
	c.lk.RLock()
	defer c.lk.RUnlock()
	return len(c.cache)
}

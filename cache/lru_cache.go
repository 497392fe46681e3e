// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache is a read-through cache for immutable data. It has the same Get
// shape as TTLCache but entries only leave by eviction or invalidation.
type LRUCache[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

func NewLRUCache[K comparable, V any](size int) (*LRUCache[K, V], error) {
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache[K, V]{cache: c}, nil
}

// Get returns the cached value for key or fetches and caches it.
// If [invalidate] is true, the value is cleared from the cache prior to fetching.
func (c *LRUCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.cache.Remove(key)
	} else if value, found := c.cache.Get(key); found {
		return value, nil
	}

	newValue, err := fetchFunc(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.cache.Add(key, newValue)
	return newValue, nil
}

// Add stores value for key, replacing any cached value.
func (c *LRUCache[K, V]) Add(key K, value V) {
	c.cache.Add(key, value)
}

// Len returns the number of cached entries.
func (c *LRUCache[K, V]) Len() int {
	return c.cache.Len()
}

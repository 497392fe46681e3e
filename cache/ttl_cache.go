// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type TTLCacheItem[V any] struct {
	value     V
	timestamp time.Time
}

// TTLCache keeps each value for ttl and deduplicates concurrent fetches of
// the same key. A zero ttl never serves cached values.
type TTLCache[K comparable, V any] struct {
	data    map[K]TTLCacheItem[V]
	ttl     time.Duration
	now     func() time.Time
	lock    sync.RWMutex
	sfGroup singleflight.Group
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return NewTTLCacheWithClock[K, V](ttl, time.Now)
}

// NewTTLCacheWithClock is NewTTLCache with an injectable clock.
func NewTTLCacheWithClock[K comparable, V any](ttl time.Duration, now func() time.Time) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data: make(map[K]TTLCacheItem[V]),
		ttl:  ttl,
		now:  now,
	}
}

// Get returns the cached value for key if it is younger than the ttl and
// otherwise fetches it with fetchFunc. Failed fetches are not cached.
// If [invalidate] is true, the value is cleared before fetching so no
// concurrent caller can observe the stale entry.
func (c *TTLCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.Invalidate(key)
	} else {
		c.lock.RLock()
		item, exists := c.data[key]
		c.lock.RUnlock()
		if exists && c.now().Sub(item.timestamp) < c.ttl {
			return item.value, nil
		}
	}

	v, err, _ := c.sfGroup.Do(keyToString(key), func() (interface{}, error) {
		newValue, fetchErr := fetchFunc(key)
		if fetchErr != nil {
			return *new(V), fetchErr
		}

		c.lock.Lock()
		c.data[key] = TTLCacheItem[V]{
			value:     newValue,
			timestamp: c.now(),
		}
		c.lock.Unlock()

		return newValue, nil
	})
	if err != nil {
		return *new(V), err
	}
	return v.(V), nil
}

// Invalidate drops the entry for key.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.lock.Lock()
	delete(c.data, key)
	c.lock.Unlock()
}

// keyToString is defined to allow for both fmt.Stringer and primitive string types.
func keyToString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}

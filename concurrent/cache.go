// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package concurrent provides goroutine safe collection primitives used
// throughout the telemetry pipeline.
package concurrent

import "sync"

// Cache is a goroutine safe map. The signal APIs use it to remember the
// most recent payload fingerprint per signal type for deduplication.
type Cache[K comparable, V any] struct {
	mu   sync.Mutex
	data map[K]V
}

// NewCache
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]V),
	}
}

// Get
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[k]
	return v, ok
}

// Set
func (c *Cache[K, V]) Set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[k] = v
}

// CompareAndSet stores v under k if cmp reports that the currently cached
// value should be replaced. The zero value of V and false are passed to cmp
// when no value is cached yet. It returns true if the value was stored.
func (c *Cache[K, V]) CompareAndSet(k K, v V, cmp func(old V, ok bool) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.data[k]
	if !cmp(old, ok) {
		return false
	}

	c.data[k] = v
	return true
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package concurrent

import "sync"

// Buffer is an ordered, append-only collection of pending telemetry items.
// It backs user action correlation, where items are held back from the
// transports until the action settles.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewBuffer
func NewBuffer[T any]() *Buffer[T] {
	return &Buffer[T]{}
}

// AddItem appends item to the buffer.
func (b *Buffer[T]) AddItem(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, item)
}

// FlushBuffer invokes f once per buffered item, in insertion order, and
// then empties the buffer. A nil f simply clears the buffer.
func (b *Buffer[T]) FlushBuffer(f func(T)) {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()

	if f == nil {
		return
	}
	for _, item := range items {
		f(item)
	}
}

// Size returns the number of buffered items.
func (b *Buffer[T]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.items)
}

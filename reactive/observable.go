// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package reactive implements a small typed pub/sub primitive.
//
// It backs the user action state notifications and the meta store
// listeners. Subscriptions are explicit tokens so callers can always
// release them, avoiding leak-prone implicit registrations.
package reactive

import "sync"

// Subscription represents a single registered callback on an [Observable].
type Subscription struct {
	unsubscribe func()
}

// Unsubscribe removes the callback from the observable. It is safe to call
// multiple times.
func (s *Subscription) Unsubscribe() {
	s.unsubscribe()
}

// Observable notifies registered callbacks of emitted values.
// The zero value is ready to use.
type Observable[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
}

// NewObservable
func NewObservable[T any]() *Observable[T] {
	return &Observable[T]{}
}

// Subscribe registers f to be called for every value emitted via [Observable.Notify].
func (o *Observable[T]) Subscribe(f func(T)) *Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.subs == nil {
		o.subs = make(map[int]func(T))
	}

	id := o.nextID
	o.nextID++
	o.subs[id] = f

	return &Subscription{
		unsubscribe: func() {
			o.mu.Lock()
			defer o.mu.Unlock()

			delete(o.subs, id)
		},
	}
}

// First registers f to be called for the next emitted value only.
func (o *Observable[T]) First(f func(T)) *Subscription {
	var once sync.Once
	var sub *Subscription
	sub = o.Subscribe(func(v T) {
		once.Do(func() {
			f(v)
			sub.Unsubscribe()
		})
	})
	return sub
}

// Notify emits v to all current subscribers. Callbacks run on the calling
// goroutine, in unspecified order, and may unsubscribe themselves.
func (o *Observable[T]) Notify(v T) {
	o.mu.Lock()
	subs := make([]func(T), 0, len(o.subs))
	for _, f := range o.subs {
		subs = append(subs, f)
	}
	o.mu.Unlock()

	for _, f := range subs {
		f(v)
	}
}

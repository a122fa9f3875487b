// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package meta

import (
	"reflect"
	"sync"

	"github.com/z5labs/rum/reactive"
)

// Provider contributes one or more meta namespaces to a [Store].
//
// Providers are evaluated on every read so they may return different
// values over time, e.g. the currently active view.
type Provider interface {
	Meta() Meta
}

// ProviderFunc is an adapter to allow the use of ordinary functions as [Provider]s.
type ProviderFunc func() Meta

// Meta implements the [Provider] interface.
func (f ProviderFunc) Meta() Meta {
	return f()
}

type fixedProvider struct {
	m Meta
}

// Meta implements the [Provider] interface.
func (p *fixedProvider) Meta() Meta {
	return p.m
}

// Value is a simple helper for registering a fixed [Meta] as a [Provider].
// Every call returns a distinct provider so it can be removed by identity.
func Value(m Meta) Provider {
	return &fixedProvider{m: m}
}

// Store holds the registered meta providers.
//
// The current snapshot is recomputed on every call to [Store.Value] by
// shallow merging all providers in registration order, so later providers
// override earlier ones for the same namespace. The zero value is ready to use.
type Store struct {
	mu        sync.Mutex
	providers []Provider

	changes reactive.Observable[Meta]
}

// NewStore
func NewStore() *Store {
	return &Store{}
}

// Add registers the given providers. Listeners are notified with the new
// snapshot.
func (s *Store) Add(ps ...Provider) {
	s.mu.Lock()
	s.providers = append(s.providers, ps...)
	s.mu.Unlock()

	s.changes.Notify(s.Value())
}

// Remove unregisters providers by identity. Removing a provider which was
// never registered is a no-op.
func (s *Store) Remove(ps ...Provider) {
	s.mu.Lock()
	remaining := s.providers[:0:0]
	for _, existing := range s.providers {
		removed := false
		for _, p := range ps {
			if sameProvider(existing, p) {
				removed = true
				break
			}
		}
		if !removed {
			remaining = append(remaining, existing)
		}
	}
	s.providers = remaining
	s.mu.Unlock()

	s.changes.Notify(s.Value())
}

// Value computes the current snapshot by merging all providers in
// registration order. No caching is performed.
func (s *Store) Value() Meta {
	s.mu.Lock()
	providers := make([]Provider, len(s.providers))
	copy(providers, s.providers)
	s.mu.Unlock()

	var m Meta
	for _, p := range providers {
		m.merge(p.Meta())
	}
	return m
}

// Subscribe registers f to be notified with a fresh snapshot whenever
// providers are added or removed.
func (s *Store) Subscribe(f func(Meta)) *reactive.Subscription {
	return s.changes.Subscribe(f)
}

// sameProvider reports identity between two providers. Func based
// providers are not comparable with == so they are compared by code pointer.
func sameProvider(a, b Provider) bool {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Kind() != bv.Kind() {
		return false
	}
	if av.Kind() == reflect.Func {
		return av.Pointer() == bv.Pointer()
	}
	if !av.Type().Comparable() || !bv.Type().Comparable() {
		return false
	}
	return a == b
}

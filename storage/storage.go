// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package storage abstracts the durable client side key/value store used
// to persist state across application restarts, e.g. the error signature
// cache.
package storage

import "errors"

// ErrUnavailable is returned when the underlying store cannot be used at
// all. Consumers should degrade gracefully instead of propagating it to
// telemetry producers.
var ErrUnavailable = errors.New("storage: unavailable")

// Storage is a minimal durable key/value store.
type Storage interface {
	// GetItem returns the stored value for key. The second return value
	// reports whether the key was present.
	GetItem(key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(key, value string) error

	// RemoveItem deletes the value stored under key. Removing a missing
	// key is not an error.
	RemoveItem(key string) error
}

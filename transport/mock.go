// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"context"
	"sync"

	"github.com/z5labs/rum/telemetry"
)

// Mock records every item it receives. It is meant for tests.
type Mock struct {
	// TransportName is returned by Name. Defaults to "mock".
	TransportName string

	// Batched is returned by IsBatched.
	Batched bool

	// SendErr, if set, is returned by every Send call.
	SendErr error

	mu    sync.Mutex
	items []telemetry.Item
	sends int
}

// Name implements the [Transport] interface.
func (t *Mock) Name() string {
	if t.TransportName == "" {
		return "mock"
	}
	return t.TransportName
}

// IsBatched implements the [Transport] interface.
func (t *Mock) IsBatched() bool {
	return t.Batched
}

// Send implements the [Transport] interface.
func (t *Mock) Send(_ context.Context, items []telemetry.Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = append(t.items, items...)
	t.sends += 1
	return t.SendErr
}

// Items returns a snapshot of all recorded items.
func (t *Mock) Items() []telemetry.Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]telemetry.Item, len(t.items))
	copy(out, t.items)
	return out
}

// Sends returns how many times Send was called.
func (t *Mock) Sends() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.sends
}

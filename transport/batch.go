// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/z5labs/rum/telemetry"
)

const (
	// DefaultBatchItemLimit is the buffered item count which triggers an
	// immediate flush.
	DefaultBatchItemLimit = 50

	// DefaultBatchSendTimeout is the cadence of the recurring flush timer.
	DefaultBatchSendTimeout = 250 * time.Millisecond
)

// SendFunc receives one meta-homogeneous group of items per call.
type SendFunc func([]telemetry.Item)

// BatchExecutorOptions are configurable parameters of a [BatchExecutor].
type BatchExecutorOptions struct {
	itemLimit   int
	sendTimeout time.Duration
	paused      bool
}

// BatchExecutorOption sets a value on [BatchExecutorOptions].
type BatchExecutorOption interface {
	ApplyBatchExecutorOption(*BatchExecutorOptions)
}

type batchExecutorOptionFunc func(*BatchExecutorOptions)

func (f batchExecutorOptionFunc) ApplyBatchExecutorOption(bo *BatchExecutorOptions) {
	f(bo)
}

// ItemLimit overrides [DefaultBatchItemLimit].
func ItemLimit(n int) BatchExecutorOption {
	return batchExecutorOptionFunc(func(bo *BatchExecutorOptions) {
		bo.itemLimit = n
	})
}

// SendTimeout overrides [DefaultBatchSendTimeout]. A zero or negative
// timeout disables the recurring flush timer.
func SendTimeout(d time.Duration) BatchExecutorOption {
	return batchExecutorOptionFunc(func(bo *BatchExecutorOptions) {
		bo.sendTimeout = d
	})
}

// Paused constructs the executor in paused state; no items are accepted
// until [BatchExecutor.Start] is called.
func Paused() BatchExecutorOption {
	return batchExecutorOptionFunc(func(bo *BatchExecutorOptions) {
		bo.paused = true
	})
}

// BatchExecutor accumulates items into time and size bounded batches.
//
// On flush, items are grouped by a hash of their meta snapshot so every
// group shares identical meta, then each group is handed to the send
// function. The buffer is cleared regardless of send outcome.
type BatchExecutor struct {
	itemLimit   int
	sendTimeout time.Duration
	send        SendFunc

	mu     sync.Mutex
	buf    []telemetry.Item
	paused bool
	stopc  chan struct{}
}

// NewBatchExecutor initializes a [BatchExecutor]. Unless constructed with
// [Paused], the recurring flush timer starts immediately.
func NewBatchExecutor(send SendFunc, opts ...BatchExecutorOption) *BatchExecutor {
	bo := &BatchExecutorOptions{
		itemLimit:   DefaultBatchItemLimit,
		sendTimeout: DefaultBatchSendTimeout,
	}
	for _, opt := range opts {
		opt.ApplyBatchExecutorOption(bo)
	}

	b := &BatchExecutor{
		itemLimit:   bo.itemLimit,
		sendTimeout: bo.sendTimeout,
		send:        send,
		paused:      true,
	}
	if !bo.paused {
		b.Start()
	}
	return b
}

// AddItem appends item to the buffer unless the executor is paused.
// Reaching the item limit flushes immediately.
func (b *BatchExecutor) AddItem(item telemetry.Item) {
	b.mu.Lock()
	if b.paused {
		b.mu.Unlock()
		return
	}

	b.buf = append(b.buf, item)
	full := len(b.buf) >= b.itemLimit
	b.mu.Unlock()

	if full {
		b.Flush()
	}
}

// Start unpauses the executor and starts the recurring flush timer.
func (b *BatchExecutor) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.paused {
		return
	}
	b.paused = false

	if b.sendTimeout <= 0 {
		return
	}

	stopc := make(chan struct{})
	b.stopc = stopc

	go func() {
		ticker := time.NewTicker(b.sendTimeout)
		defer ticker.Stop()

		for {
			select {
			case <-stopc:
				return
			case <-ticker.C:
				b.Flush()
			}
		}
	}()
}

// Pause stops the recurring flush timer and rejects new items.
func (b *BatchExecutor) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused {
		return
	}
	b.paused = true

	if b.stopc != nil {
		close(b.stopc)
		b.stopc = nil
	}
}

// Flush sends all buffered items immediately, grouped by meta. Hosts
// should call this when the application is about to background or exit
// so pending telemetry is delivered best-effort.
func (b *BatchExecutor) Flush() {
	b.mu.Lock()
	if b.paused || len(b.buf) == 0 {
		b.mu.Unlock()
		return
	}
	items := b.buf
	b.buf = nil
	b.mu.Unlock()

	for _, group := range groupItems(items) {
		b.send(group)
	}
}

// groupItems partitions items by meta hash, preserving arrival order
// within each group and first-seen order across groups.
func groupItems(items []telemetry.Item) [][]telemetry.Item {
	var groups [][]telemetry.Item
	index := make(map[uint64]int)

	for _, item := range items {
		key := metaHash(item.Meta)

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], item)
	}
	return groups
}

func metaHash(m any) uint64 {
	b, err := json.Marshal(m)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"errors"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// ErrQueueFull is returned by [SendQueue.Add] when the number of pending
// sends has reached the queue's size; the send is dropped rather than
// queued unbounded.
var ErrQueueFull = errors.New("transport: send queue full")

const (
	// DefaultSendQueueSize bounds the number of in-flight plus pending sends.
	DefaultSendQueueSize = 30

	// DefaultSendConcurrency bounds how many sends run in parallel.
	DefaultSendConcurrency = 5
)

// SendQueue runs send tasks with bounded concurrency and a bounded
// backlog. It is shared by the HTTP based transports.
type SendQueue struct {
	size    int
	pending atomic.Int64
	pool    *pool.Pool
}

// NewSendQueue initializes a [SendQueue]. Non-positive arguments fall
// back to the defaults.
func NewSendQueue(size, concurrency int) *SendQueue {
	if size <= 0 {
		size = DefaultSendQueueSize
	}
	if concurrency <= 0 {
		concurrency = DefaultSendConcurrency
	}

	return &SendQueue{
		size: size,
		pool: pool.New().WithMaxGoroutines(concurrency),
	}
}

// Add schedules f to run on the queue. [ErrQueueFull] is returned, and f
// is not run, if the backlog is full.
func (q *SendQueue) Add(f func()) error {
	if int(q.pending.Load()) >= q.size {
		return ErrQueueFull
	}

	q.pending.Add(1)
	q.pool.Go(func() {
		defer q.pending.Add(-1)
		f()
	})
	return nil
}

// Wait blocks until all scheduled tasks have completed. The queue must
// not be reused afterwards.
func (q *SendQueue) Wait() {
	q.pool.Wait()
}

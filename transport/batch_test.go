// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/z5labs/rum/meta"
	"github.com/z5labs/rum/telemetry"
)

type sendRecorder struct {
	mu     sync.Mutex
	groups [][]telemetry.Item
}

func (r *sendRecorder) send(items []telemetry.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.groups = append(r.groups, items)
}

func (r *sendRecorder) Groups() [][]telemetry.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]telemetry.Item, len(r.groups))
	copy(out, r.groups)
	return out
}

func TestBatchExecutor_AddItem(t *testing.T) {
	t.Run("will flush immediately", func(t *testing.T) {
		t.Run("if the item limit is reached", func(t *testing.T) {
			var rec sendRecorder
			b := NewBatchExecutor(rec.send, ItemLimit(3), SendTimeout(0))
			defer b.Pause()

			m := meta.Meta{App: &meta.App{Name: "test"}}
			for i := 0; i < 3; i++ {
				b.AddItem(telemetry.NewItem(telemetry.Log{Message: "hello"}, m))
			}

			groups := rec.Groups()
			if !assert.Len(t, groups, 1) {
				return
			}
			if !assert.Len(t, groups[0], 3) {
				return
			}
		})
	})

	t.Run("will not buffer the item", func(t *testing.T) {
		t.Run("if the executor is paused", func(t *testing.T) {
			var rec sendRecorder
			b := NewBatchExecutor(rec.send, ItemLimit(1), SendTimeout(0), Paused())

			m := meta.Meta{App: &meta.App{Name: "test"}}
			b.AddItem(telemetry.NewItem(telemetry.Log{Message: "hello"}, m))

			if !assert.Empty(t, rec.Groups()) {
				return
			}
		})
	})
}

func TestBatchExecutor_Flush(t *testing.T) {
	t.Run("will send one group per meta", func(t *testing.T) {
		t.Run("if buffered items carry different meta snapshots", func(t *testing.T) {
			var rec sendRecorder
			b := NewBatchExecutor(rec.send, SendTimeout(0))
			defer b.Pause()

			metaA := meta.Meta{App: &meta.App{Name: "a"}}
			metaB := meta.Meta{App: &meta.App{Name: "b"}}

			b.AddItem(telemetry.NewItem(telemetry.Log{Message: "one"}, metaA))
			b.AddItem(telemetry.NewItem(telemetry.Log{Message: "two"}, metaB))
			b.AddItem(telemetry.NewItem(telemetry.Log{Message: "three"}, metaA))
			b.Flush()

			groups := rec.Groups()
			if !assert.Len(t, groups, 2) {
				return
			}
			if !assert.Len(t, groups[0], 2) {
				return
			}
			if !assert.Len(t, groups[1], 1) {
				return
			}

			first, ok := groups[0][0].Payload.(telemetry.Log)
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, "one", first.Message) {
				return
			}
		})
	})

	t.Run("will not call the send func", func(t *testing.T) {
		t.Run("if the buffer is empty", func(t *testing.T) {
			var rec sendRecorder
			b := NewBatchExecutor(rec.send, SendTimeout(0))
			defer b.Pause()

			b.Flush()

			if !assert.Empty(t, rec.Groups()) {
				return
			}
		})
	})
}

func TestBatchExecutor_Start(t *testing.T) {
	t.Run("will flush on the recurring timer", func(t *testing.T) {
		t.Run("if the send timeout elapses", func(t *testing.T) {
			var rec sendRecorder
			b := NewBatchExecutor(rec.send, SendTimeout(10*time.Millisecond))
			defer b.Pause()

			m := meta.Meta{App: &meta.App{Name: "test"}}
			b.AddItem(telemetry.NewItem(telemetry.Log{Message: "hello"}, m))

			assert.Eventually(t, func() bool {
				return len(rec.Groups()) == 1
			}, time.Second, 10*time.Millisecond)
		})
	})
}

func TestGroupItems(t *testing.T) {
	t.Run("will preserve arrival order", func(t *testing.T) {
		t.Run("if all items share one meta snapshot", func(t *testing.T) {
			m := meta.Meta{Session: &meta.Session{ID: "abc"}}

			items := []telemetry.Item{
				telemetry.NewItem(telemetry.Log{Message: "one"}, m),
				telemetry.NewItem(telemetry.Log{Message: "two"}, m),
				telemetry.NewItem(telemetry.Log{Message: "three"}, m),
			}

			groups := groupItems(items)
			if !assert.Len(t, groups, 1) {
				return
			}
			if !assert.Equal(t, items, groups[0]) {
				return
			}
		})
	})
}

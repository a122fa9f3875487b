// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/z5labs/rum/telemetry"
)

func TestAPI_StartUserAction(t *testing.T) {
	t.Run("will return nil", func(t *testing.T) {
		t.Run("if another action is already in flight", func(t *testing.T) {
			a, _ := newTestAPI()

			first := a.StartUserAction("checkout")
			if !assert.NotNil(t, first) {
				return
			}
			defer first.Cancel(context.Background())

			second := a.StartUserAction("search")
			if !assert.Nil(t, second) {
				return
			}
		})
	})

	t.Run("will allow a new action", func(t *testing.T) {
		t.Run("if the previous one has ended", func(t *testing.T) {
			a, _ := newTestAPI()

			first := a.StartUserAction("checkout")
			if !assert.NotNil(t, first) {
				return
			}
			first.End(context.Background())

			second := a.StartUserAction("search")
			if !assert.NotNil(t, second) {
				return
			}
			second.Cancel(context.Background())
		})
	})
}

func TestUserAction_End(t *testing.T) {
	t.Run("will tag buffered items", func(t *testing.T) {
		t.Run("if items were pushed while the action was in flight", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout", Trigger("click"))
			if !assert.NotNil(t, action) {
				return
			}

			a.PushLog(context.Background(), "submitting order")
			if !assert.Empty(t, mock.Items()) {
				return
			}

			action.End(context.Background())

			items := mock.Items()
			if !assert.Len(t, items, 2) {
				return
			}

			p, ok := items[0].Payload.(telemetry.Log)
			if !assert.True(t, ok) {
				return
			}
			if !assert.NotNil(t, p.Action) {
				return
			}
			if !assert.Equal(t, action.ID(), p.Action.ParentID) {
				return
			}
			if !assert.Equal(t, "checkout", p.Action.Name) {
				return
			}
		})
	})

	t.Run("will emit a summary event", func(t *testing.T) {
		t.Run("if the action grouped at least one item", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout", Trigger("click"))
			if !assert.NotNil(t, action) {
				return
			}

			a.PushLog(context.Background(), "submitting order")
			action.End(context.Background())

			items := mock.Items()
			if !assert.Len(t, items, 2) {
				return
			}

			event, ok := items[1].Payload.(telemetry.Event)
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, UserActionEventName, event.Name) {
				return
			}
			if !assert.Equal(t, "checkout", event.Attributes["userActionName"]) {
				return
			}
			if !assert.Equal(t, "click", event.Attributes["userActionTrigger"]) {
				return
			}
			if !assert.NotNil(t, event.Action) {
				return
			}
			if !assert.Equal(t, action.ID(), event.Action.ID) {
				return
			}
		})
	})

	t.Run("will emit a summary event", func(t *testing.T) {
		t.Run("if the action grouped no items", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout")
			if !assert.NotNil(t, action) {
				return
			}
			action.End(context.Background())

			items := mock.Items()
			if !assert.Len(t, items, 1) {
				return
			}

			event, ok := items[0].Payload.(telemetry.Event)
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, UserActionEventName, event.Name) {
				return
			}
		})
	})

	t.Run("will report the severity", func(t *testing.T) {
		t.Run("if none was configured", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout")
			if !assert.NotNil(t, action) {
				return
			}
			action.End(context.Background())

			items := mock.Items()
			if !assert.Len(t, items, 1) {
				return
			}

			event, ok := items[0].Payload.(telemetry.Event)
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, string(SeverityNormal), event.Attributes["userActionSeverity"]) {
				return
			}
		})

		t.Run("if one was configured", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout", ActionSeverity(SeverityCritical))
			if !assert.NotNil(t, action) {
				return
			}
			action.End(context.Background())

			items := mock.Items()
			if !assert.Len(t, items, 1) {
				return
			}

			event, ok := items[0].Payload.(telemetry.Event)
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, string(SeverityCritical), event.Attributes["userActionSeverity"]) {
				return
			}
		})
	})

	t.Run("will flush web vitals untagged", func(t *testing.T) {
		t.Run("if they were pushed while the action was in flight", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout")
			if !assert.NotNil(t, action) {
				return
			}

			a.PushMeasurement(context.Background(), telemetry.MeasurementTypeWebVitals, map[string]float64{"lcp": 2500})
			a.PushLog(context.Background(), "submitting order")
			if !assert.Empty(t, mock.Items()) {
				return
			}

			action.End(context.Background())

			items := mock.Items()
			if !assert.Len(t, items, 3) {
				return
			}

			m, ok := items[0].Payload.(telemetry.Measurement)
			if !assert.True(t, ok) {
				return
			}
			if !assert.Nil(t, m.Action) {
				return
			}

			p, ok := items[1].Payload.(telemetry.Log)
			if !assert.True(t, ok) {
				return
			}
			if !assert.NotNil(t, p.Action) {
				return
			}
		})
	})

	t.Run("will reject new items", func(t *testing.T) {
		t.Run("if the action already ended", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout")
			if !assert.NotNil(t, action) {
				return
			}
			action.End(context.Background())

			item := telemetry.NewItem(telemetry.Log{Message: "late"}, a.metas.Value())
			if !assert.False(t, action.addItem(item)) {
				return
			}

			// only the summary event made it out, the late item is the
			// caller's to dispatch
			if !assert.Len(t, mock.Items(), 1) {
				return
			}
		})
	})
}

func TestUserAction_Cancel(t *testing.T) {
	t.Run("will dispatch buffered items untagged", func(t *testing.T) {
		t.Run("if the action is cancelled", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout")
			if !assert.NotNil(t, action) {
				return
			}

			a.PushLog(context.Background(), "submitting order")
			action.Cancel(context.Background())

			items := mock.Items()
			if !assert.Len(t, items, 1) {
				return
			}

			p, ok := items[0].Payload.(telemetry.Log)
			if !assert.True(t, ok) {
				return
			}
			if !assert.Nil(t, p.Action) {
				return
			}
		})
	})
}

func TestUserAction_Halt(t *testing.T) {
	t.Run("will keep accepting items", func(t *testing.T) {
		t.Run("if the action is halted", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout")
			if !assert.NotNil(t, action) {
				return
			}
			action.Halt()

			a.PushLog(context.Background(), "request still pending")
			if !assert.Empty(t, mock.Items()) {
				return
			}

			action.End(context.Background())
			if !assert.Len(t, mock.Items(), 2) {
				return
			}
		})
	})

	t.Run("will end the action automatically", func(t *testing.T) {
		t.Run("if the halt timeout elapses", func(t *testing.T) {
			a, mock := newTestAPI()

			action := a.StartUserAction("checkout", HaltTimeout(10*time.Millisecond))
			if !assert.NotNil(t, action) {
				return
			}

			a.PushLog(context.Background(), "submitting order")
			action.Halt()

			assert.Eventually(t, func() bool {
				return len(mock.Items()) == 2
			}, time.Second, 10*time.Millisecond)

			if !assert.False(t, action.Active()) {
				return
			}
		})
	})
}

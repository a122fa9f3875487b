// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package uniqueness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/z5labs/rum/telemetry"
)

func TestNormalizeMessage(t *testing.T) {
	t.Run("will collapse dynamic values", func(t *testing.T) {
		t.Run("if the message contains numeric ids", func(t *testing.T) {
			a := NormalizeMessage("User 123456 not found")
			b := NormalizeMessage("User 789012 not found")

			assert.Equal(t, "User <ID> not found", a)
			assert.Equal(t, a, b)
		})

		t.Run("if the message contains a uuid", func(t *testing.T) {
			out := NormalizeMessage("entity 123e4567-e89b-12d3-a456-426614174000 is gone")
			assert.Equal(t, "entity <UUID> is gone", out)
		})

		t.Run("if the message contains a url", func(t *testing.T) {
			out := NormalizeMessage("failed to fetch https://example.com/api/users")
			assert.Equal(t, "failed to fetch <URL>", out)
		})

		t.Run("if the message contains a source path", func(t *testing.T) {
			out := NormalizeMessage("boom in /src/app/checkout.ts somewhere")
			assert.Equal(t, "boom in <PATH> somewhere", out)
		})

		t.Run("if the message contains a 13 digit timestamp", func(t *testing.T) {
			out := NormalizeMessage("expired at 1234567890123 exactly")
			assert.Equal(t, "expired at <TIMESTAMP> exactly", out)
		})

		t.Run("if the message contains quoted substrings", func(t *testing.T) {
			out := NormalizeMessage(`unknown key "foo" and 'bar'`)
			assert.Equal(t, "unknown key <STRING> and <STRING>", out)
		})
	})

	t.Run("will truncate the message", func(t *testing.T) {
		t.Run("if it exceeds 500 characters", func(t *testing.T) {
			out := NormalizeMessage(strings.Repeat("x", 600))

			assert.Len(t, out, 503)
			assert.True(t, strings.HasSuffix(out, "..."))
		})
	})

	t.Run("will return empty", func(t *testing.T) {
		t.Run("if the message is empty", func(t *testing.T) {
			assert.Equal(t, "", NormalizeMessage(""))
		})
	})
}

func TestStackSignature(t *testing.T) {
	t.Run("will reduce filenames to their basename", func(t *testing.T) {
		t.Run("if frames carry unix paths", func(t *testing.T) {
			sig := StackSignature([]telemetry.StackFrame{
				{Filename: "/static/js/app.js", Function: "submitOrder", Lineno: 10, Colno: 4},
			}, 5)

			assert.Equal(t, "app.js:submitOrder:10:4", sig)
		})

		t.Run("if frames carry windows paths", func(t *testing.T) {
			sig := StackSignature([]telemetry.StackFrame{
				{Filename: `C:\static\js\app.js`, Function: "submitOrder", Lineno: 10},
			}, 5)

			assert.Equal(t, "app.js:submitOrder:10", sig)
		})
	})

	t.Run("will omit the function segment", func(t *testing.T) {
		t.Run("if a frame has no function name", func(t *testing.T) {
			sig := StackSignature([]telemetry.StackFrame{
				{Filename: "app.js", Lineno: 3, Colno: 7},
			}, 5)

			assert.Equal(t, "app.js:3:7", sig)
		})
	})

	t.Run("will only use the top frames", func(t *testing.T) {
		t.Run("if more frames than depth are given", func(t *testing.T) {
			frames := []telemetry.StackFrame{
				{Filename: "a.js", Lineno: 1},
				{Filename: "b.js", Lineno: 2},
				{Filename: "c.js", Lineno: 3},
			}

			sig := StackSignature(frames, 2)

			assert.Equal(t, "a.js:1|b.js:2", sig)
		})
	})
}

func TestSignature(t *testing.T) {
	frames := []telemetry.StackFrame{
		{Filename: "/js/app.js", Function: "render", Lineno: 10, Colno: 2},
		{Filename: "/js/app.js", Function: "update", Lineno: 20, Colno: 8},
	}

	t.Run("will produce identical signatures", func(t *testing.T) {
		t.Run("if two exceptions differ only in dynamic values", func(t *testing.T) {
			a := Signature(telemetry.Exception{
				Type:       "TypeError",
				Value:      "User 123456 not found",
				Stacktrace: &telemetry.Stacktrace{Frames: frames},
			})
			b := Signature(telemetry.Exception{
				Type:       "TypeError",
				Value:      "User 789012 not found",
				Stacktrace: &telemetry.Stacktrace{Frames: frames},
			})

			assert.Equal(t, a, b)
			assert.Equal(t, Hash(a), Hash(b))
		})
	})

	t.Run("will produce distinct signatures", func(t *testing.T) {
		t.Run("if the exception types differ", func(t *testing.T) {
			a := Signature(telemetry.Exception{Type: "TypeError", Value: "boom"})
			b := Signature(telemetry.Exception{Type: "RangeError", Value: "boom"})

			assert.NotEqual(t, a, b)
		})

		t.Run("if the stack frames differ", func(t *testing.T) {
			a := Signature(telemetry.Exception{
				Type:       "TypeError",
				Value:      "boom",
				Stacktrace: &telemetry.Stacktrace{Frames: frames},
			})
			b := Signature(telemetry.Exception{
				Type:  "TypeError",
				Value: "boom",
				Stacktrace: &telemetry.Stacktrace{
					Frames: []telemetry.StackFrame{{Filename: "/js/other.js", Function: "main", Lineno: 1}},
				},
			})

			assert.NotEqual(t, a, b)
		})
	})

	t.Run("will include sorted context keys", func(t *testing.T) {
		t.Run("if context attributes are present", func(t *testing.T) {
			sig := Signature(telemetry.Exception{
				Type:    "TypeError",
				Value:   "boom",
				Context: map[string]string{"b": "2", "a": "1"},
			})

			assert.True(t, strings.HasSuffix(sig, "::context:a,b"))
		})

		t.Run("unless context keys are excluded", func(t *testing.T) {
			sig := Signature(telemetry.Exception{
				Type:    "TypeError",
				Value:   "boom",
				Context: map[string]string{"a": "1"},
			}, ExcludeContextKeys())

			assert.NotContains(t, sig, "context:")
		})
	})
}

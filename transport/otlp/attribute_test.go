// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

func TestAttributeValue(t *testing.T) {
	t.Run("will encode as a string", func(t *testing.T) {
		t.Run("if the value is a string", func(t *testing.T) {
			v := AttributeValue("hello")
			if !assert.NotNil(t, v) {
				return
			}
			if !assert.Equal(t, "hello", v.GetStringValue()) {
				return
			}
		})
	})

	t.Run("will encode as an integer", func(t *testing.T) {
		t.Run("if the value is an int", func(t *testing.T) {
			v := AttributeValue(42)
			if !assert.NotNil(t, v) {
				return
			}
			if !assert.Equal(t, int64(42), v.GetIntValue()) {
				return
			}
		})

		t.Run("if the value is an integer valued float", func(t *testing.T) {
			v := AttributeValue(float64(3))
			if !assert.NotNil(t, v) {
				return
			}
			if !assert.Equal(t, int64(3), v.GetIntValue()) {
				return
			}
		})
	})

	t.Run("will encode as a double", func(t *testing.T) {
		t.Run("if the value is a fractional float", func(t *testing.T) {
			v := AttributeValue(3.14)
			if !assert.NotNil(t, v) {
				return
			}
			if !assert.Equal(t, 3.14, v.GetDoubleValue()) {
				return
			}
		})
	})

	t.Run("will encode as a boolean", func(t *testing.T) {
		t.Run("if the value is a bool", func(t *testing.T) {
			v := AttributeValue(true)
			if !assert.NotNil(t, v) {
				return
			}
			if !assert.True(t, v.GetBoolValue()) {
				return
			}
		})
	})

	t.Run("will return nil", func(t *testing.T) {
		t.Run("if the value is nil", func(t *testing.T) {
			if !assert.Nil(t, AttributeValue(nil)) {
				return
			}
		})

		t.Run("if the value is NaN", func(t *testing.T) {
			if !assert.Nil(t, AttributeValue(math.NaN())) {
				return
			}
		})

		t.Run("if the value is infinite", func(t *testing.T) {
			if !assert.Nil(t, AttributeValue(math.Inf(1))) {
				return
			}
		})

		t.Run("if the value has no otlp representation", func(t *testing.T) {
			if !assert.Nil(t, AttributeValue(struct{}{})) {
				return
			}
		})
	})

	t.Run("will encode as an array", func(t *testing.T) {
		t.Run("if the value is a slice", func(t *testing.T) {
			v := AttributeValue([]any{"a", 1, math.NaN()})
			if !assert.NotNil(t, v) {
				return
			}

			values := v.GetArrayValue().GetValues()
			if !assert.Len(t, values, 2) {
				return
			}
			if !assert.Equal(t, "a", values[0].GetStringValue()) {
				return
			}
			if !assert.Equal(t, int64(1), values[1].GetIntValue()) {
				return
			}
		})
	})

	t.Run("will encode as a sorted key value list", func(t *testing.T) {
		t.Run("if the value is a map", func(t *testing.T) {
			v := AttributeValue(map[string]any{
				"b": 2,
				"a": "one",
				"c": nil,
			})
			if !assert.NotNil(t, v) {
				return
			}

			kvs := v.GetKvlistValue().GetValues()
			if !assert.Len(t, kvs, 2) {
				return
			}
			if !assert.Equal(t, "a", kvs[0].Key) {
				return
			}
			if !assert.Equal(t, "b", kvs[1].Key) {
				return
			}
		})
	})
}

func TestAttribute(t *testing.T) {
	t.Run("will return nil", func(t *testing.T) {
		t.Run("if the value has no otlp representation", func(t *testing.T) {
			if !assert.Nil(t, Attribute("key", nil)) {
				return
			}
		})
	})

	t.Run("will return a key value pair", func(t *testing.T) {
		t.Run("if the value is encodable", func(t *testing.T) {
			kv := Attribute("key", "value")
			if !assert.NotNil(t, kv) {
				return
			}
			if !assert.Equal(t, &commonpb.KeyValue{
				Key: "key",
				Value: &commonpb.AnyValue{
					Value: &commonpb.AnyValue_StringValue{StringValue: "value"},
				},
			}, kv) {
				return
			}
		})
	})
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringifyValues(t *testing.T) {
	t.Run("will stringify every value", func(t *testing.T) {
		t.Run("if the map mixes value types", func(t *testing.T) {
			out := StringifyValues(map[string]any{
				"a": 1,
				"b": map[string]any{"c": 2},
				"d": "foo",
				"e": true,
				"f": []any{true, "a", 1},
				"g": nil,
			})

			assert.Equal(t, map[string]string{
				"a": "1",
				"b": `{"c":2}`,
				"d": "foo",
				"e": "true",
				"f": `[true,"a",1]`,
				"g": "null",
			}, out)
		})
	})

	t.Run("will return an empty map", func(t *testing.T) {
		t.Run("if the input is nil", func(t *testing.T) {
			out := StringifyValues(nil)
			assert.NotNil(t, out)
			assert.Empty(t, out)
		})
	})
}

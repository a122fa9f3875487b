// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package jsonx contains small JSON helpers shared across the SDK.
package jsonx

import "encoding/json"

// StringifyValues converts every value of the given map into its string
// form: strings are passed through as-is, everything else is JSON encoded.
// Values which cannot be encoded are dropped. A nil map yields an empty,
// non-nil map.
func StringifyValues(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}

		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k] = string(b)
	}
	return out
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlp

import (
	"math"
	"sort"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

// Attribute encodes a key and an arbitrary value as an OTLP key value
// pair. It returns nil if the value has no OTLP representation.
func Attribute(key string, v any) *commonpb.KeyValue {
	value := AttributeValue(v)
	if value == nil {
		return nil
	}

	return &commonpb.KeyValue{
		Key:   key,
		Value: value,
	}
}

// AttributeValue encodes an arbitrary value as an OTLP value.
//
// Strings, booleans, integers, finite floats, slices and string keyed
// maps are supported. Integer valued floats are encoded as integers.
// Nil, non-finite floats and values of any other type return nil and
// should be omitted by the caller.
func AttributeValue(v any) *commonpb.AnyValue {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return &commonpb.AnyValue{
			Value: &commonpb.AnyValue_StringValue{StringValue: x},
		}
	case bool:
		return &commonpb.AnyValue{
			Value: &commonpb.AnyValue_BoolValue{BoolValue: x},
		}
	case int:
		return intValue(int64(x))
	case int8:
		return intValue(int64(x))
	case int16:
		return intValue(int64(x))
	case int32:
		return intValue(int64(x))
	case int64:
		return intValue(x)
	case uint:
		return intValue(int64(x))
	case uint8:
		return intValue(int64(x))
	case uint16:
		return intValue(int64(x))
	case uint32:
		return intValue(int64(x))
	case uint64:
		return intValue(int64(x))
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case []any:
		return sliceValue(x)
	case map[string]any:
		return mapValue(x)
	case map[string]string:
		m := make(map[string]any, len(x))
		for k, s := range x {
			m[k] = s
		}
		return mapValue(m)
	default:
		return nil
	}
}

func intValue(n int64) *commonpb.AnyValue {
	return &commonpb.AnyValue{
		Value: &commonpb.AnyValue_IntValue{IntValue: n},
	}
}

func floatValue(f float64) *commonpb.AnyValue {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return intValue(int64(f))
	}

	return &commonpb.AnyValue{
		Value: &commonpb.AnyValue_DoubleValue{DoubleValue: f},
	}
}

func sliceValue(xs []any) *commonpb.AnyValue {
	values := make([]*commonpb.AnyValue, 0, len(xs))
	for _, x := range xs {
		value := AttributeValue(x)
		if value == nil {
			continue
		}
		values = append(values, value)
	}

	return &commonpb.AnyValue{
		Value: &commonpb.AnyValue_ArrayValue{
			ArrayValue: &commonpb.ArrayValue{Values: values},
		},
	}
}

// mapValue encodes entries in lexical key order so equal maps always
// produce equal payload bytes.
func mapValue(m map[string]any) *commonpb.AnyValue {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]*commonpb.KeyValue, 0, len(keys))
	for _, k := range keys {
		kv := Attribute(k, m[k])
		if kv == nil {
			continue
		}
		kvs = append(kvs, kv)
	}

	return &commonpb.AnyValue{
		Value: &commonpb.AnyValue_KvlistValue{
			KvlistValue: &commonpb.KeyValueList{Values: kvs},
		},
	}
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package deepequal implements the structural equality primitive used by
// the dedup filters and the OTLP resource grouping.
//
// It differs from [reflect.DeepEqual] in one important way: NaN compares
// equal to itself, so payloads carrying NaN measurements still dedupe.
package deepequal

import (
	"math"
	"reflect"
)

// Equal reports whether a and b are structurally equal.
//
// Pointers and interfaces are followed, slices and maps are compared
// element-wise and must not be conflated with each other, and floating
// point NaN is considered equal to NaN.
func Equal(a, b any) bool {
	return equalValue(indirect(reflect.ValueOf(a)), indirect(reflect.ValueOf(b)))
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func equalValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		if math.IsNaN(a.Float()) {
			return math.IsNaN(b.Float())
		}
		return a.Float() == b.Float()
	case reflect.String:
		return a.String() == b.String()
	case reflect.Slice, reflect.Array:
		if a.Kind() == reflect.Slice && (a.IsNil() != b.IsNil()) {
			return false
		}
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !equalValue(indirect(a.Index(i)), indirect(b.Index(i))) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.IsNil() != b.IsNil() {
			return false
		}
		if a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() {
				return false
			}
			if !equalValue(indirect(iter.Value()), indirect(bv)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !equalValue(indirect(a.Field(i)), indirect(b.Field(i))) {
				return false
			}
		}
		return true
	default:
		// funcs, channels and the like carry no payload semantics
		return false
	}
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"os"
)

// Value is the result of reading a configuration value. It distinguishes
// a set value from an absent one.
type Value[T any] struct {
	value T
	set   bool
}

// ValueOf returns a set [Value] holding v.
func ValueOf[T any](v T) Value[T] {
	return Value[T]{
		value: v,
		set:   true,
	}
}

// Get returns the held value and whether it was set.
func (v Value[T]) Get() (T, bool) {
	return v.value, v.set
}

// Reader reads a configuration value from some source.
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is an adapter to allow the use of ordinary functions as [Reader]s.
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// EmptyReader returns a [Reader] which always reads an absent value.
func EmptyReader[T any]() Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, nil
	})
}

// Constant returns a [Reader] which always reads v.
func Constant[T any](v T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(v), nil
	})
}

// Env returns a [Reader] which reads the environment variable key. An
// unset variable reads as an absent value.
func Env(key string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (Value[string], error) {
		s, ok := os.LookupEnv(key)
		if !ok {
			return Value[string]{}, nil
		}
		return ValueOf(s), nil
	})
}

// Or returns a [Reader] which reads from each of rs in order and returns
// the first set value.
func Or[T any](rs ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range rs {
			v, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, ok := v.Get(); ok {
				return v, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Map returns a [Reader] which transforms the value read from r with f.
// Absent values pass through untransformed.
func Map[A, B any](r Reader[A], f func(A) (B, error)) Reader[B] {
	return ReaderFunc[B](func(ctx context.Context) (Value[B], error) {
		av, err := r.Read(ctx)
		if err != nil {
			return Value[B]{}, err
		}

		a, ok := av.Get()
		if !ok {
			return Value[B]{}, nil
		}

		b, err := f(a)
		if err != nil {
			return Value[B]{}, err
		}
		return ValueOf(b), nil
	})
}

// MustOr reads from r and returns the value, or def if the value is
// absent or the read fails.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	v, err := r.Read(ctx)
	if err != nil {
		return def
	}

	t, ok := v.Get()
	if !ok {
		return def
	}
	return t
}

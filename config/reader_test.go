// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnv(t *testing.T) {
	t.Run("will read the value", func(t *testing.T) {
		t.Run("if the variable is set", func(t *testing.T) {
			t.Setenv("RUM_TEST_VALUE", "hello")

			v, err := Env("RUM_TEST_VALUE").Read(context.Background())
			if !assert.Nil(t, err) {
				return
			}

			s, ok := v.Get()
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, "hello", s) {
				return
			}
		})
	})

	t.Run("will read an absent value", func(t *testing.T) {
		t.Run("if the variable is unset", func(t *testing.T) {
			v, err := Env("RUM_TEST_UNSET_VALUE").Read(context.Background())
			if !assert.Nil(t, err) {
				return
			}

			_, ok := v.Get()
			if !assert.False(t, ok) {
				return
			}
		})
	})
}

func TestOr(t *testing.T) {
	t.Run("will return the first set value", func(t *testing.T) {
		t.Run("if an earlier reader is absent", func(t *testing.T) {
			r := Or(
				EmptyReader[string](),
				Constant("fallback"),
				Constant("never"),
			)

			v, err := r.Read(context.Background())
			if !assert.Nil(t, err) {
				return
			}

			s, ok := v.Get()
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, "fallback", s) {
				return
			}
		})
	})
}

func TestMap(t *testing.T) {
	t.Run("will transform the value", func(t *testing.T) {
		t.Run("if the underlying reader returns one", func(t *testing.T) {
			r := Map(Constant("8080"), strconv.Atoi)

			v, err := r.Read(context.Background())
			if !assert.Nil(t, err) {
				return
			}

			n, ok := v.Get()
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, 8080, n) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the transform fails", func(t *testing.T) {
			r := Map(Constant("not a number"), strconv.Atoi)

			_, err := r.Read(context.Background())
			if !assert.NotNil(t, err) {
				return
			}
		})
	})

	t.Run("will pass the absent value through", func(t *testing.T) {
		t.Run("if the underlying reader is empty", func(t *testing.T) {
			r := Map(EmptyReader[string](), strconv.Atoi)

			v, err := r.Read(context.Background())
			if !assert.Nil(t, err) {
				return
			}

			_, ok := v.Get()
			if !assert.False(t, ok) {
				return
			}
		})
	})
}

func TestMustOr(t *testing.T) {
	t.Run("will return the default", func(t *testing.T) {
		t.Run("if the reader is empty", func(t *testing.T) {
			s := MustOr(context.Background(), "def", EmptyReader[string]())

			if !assert.Equal(t, "def", s) {
				return
			}
		})
	})

	t.Run("will return the read value", func(t *testing.T) {
		t.Run("if the reader returns one", func(t *testing.T) {
			s := MustOr(context.Background(), "def", Constant("read"))

			if !assert.Equal(t, "read", s) {
				return
			}
		})
	})
}

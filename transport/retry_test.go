// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryAfterDeadline(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	t.Run("will return now plus the delta", func(t *testing.T) {
		t.Run("if the header is an integer number of seconds", func(t *testing.T) {
			deadline := RetryAfterDeadline("30", now, DefaultRateLimitBackoff)

			if !assert.Equal(t, now.Add(30*time.Second), deadline) {
				return
			}
		})
	})

	t.Run("will return the parsed date", func(t *testing.T) {
		t.Run("if the header is an http date", func(t *testing.T) {
			deadline := RetryAfterDeadline("Sat, 01 Mar 2025 12:01:00 GMT", now, DefaultRateLimitBackoff)

			if !assert.Equal(t, now.Add(time.Minute), deadline.UTC()) {
				return
			}
		})
	})

	t.Run("will fall back to the default backoff", func(t *testing.T) {
		t.Run("if the header is empty", func(t *testing.T) {
			deadline := RetryAfterDeadline("", now, DefaultRateLimitBackoff)

			if !assert.Equal(t, now.Add(DefaultRateLimitBackoff), deadline) {
				return
			}
		})

		t.Run("if the header is malformed", func(t *testing.T) {
			deadline := RetryAfterDeadline("whenever", now, DefaultRateLimitBackoff)

			if !assert.Equal(t, now.Add(DefaultRateLimitBackoff), deadline) {
				return
			}
		})
	})
}

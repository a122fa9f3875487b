// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"net/http"
	"strconv"
	"time"
)

// DefaultRateLimitBackoff is applied after a 429 response carrying no
// Retry-After header.
const DefaultRateLimitBackoff = 5 * time.Second

// RetryAfterDeadline computes the time until which sending should stay
// disabled, from a Retry-After header value. The header may be an
// integer seconds delta or an HTTP-date; anything else falls back to
// now+fallback.
func RetryAfterDeadline(header string, now time.Time, fallback time.Duration) time.Time {
	if header != "" {
		delay, err := strconv.Atoi(header)
		if err == nil {
			return now.Add(time.Duration(delay) * time.Second)
		}

		date, err := http.ParseTime(header)
		if err == nil {
			return date
		}
	}

	return now.Add(fallback)
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package api

import (
	"time"

	"github.com/z5labs/rum/internal/deepequal"
	"github.com/z5labs/rum/telemetry"
)

var zeroTime time.Time

// fingerprint strips the volatile parts of a payload, timestamp and
// trace context, so back to back identical signals compare equal.
func fingerprint(p telemetry.Payload) any {
	switch x := p.(type) {
	case telemetry.Log:
		x.Timestamp = zeroTime
		x.Trace = nil
		return x
	case telemetry.Event:
		x.Timestamp = zeroTime
		x.Trace = nil
		return x
	case telemetry.Measurement:
		x.Timestamp = zeroTime
		x.Trace = nil
		return x
	case telemetry.Exception:
		x.Timestamp = zeroTime
		x.Trace = nil
		return x
	default:
		return p
	}
}

// isDuplicate reports whether p deeply equals the previously pushed
// payload of the same type. The new payload always becomes the next
// comparison baseline, even when deduplication is skipped for this call.
func (a *API) isDuplicate(p telemetry.Payload, skip bool) bool {
	if !a.dedupe {
		return false
	}

	fp := fingerprint(p)

	duplicate := false
	a.lastPayload.CompareAndSet(p.ItemType(), fp, func(old any, ok bool) bool {
		duplicate = ok && deepequal.Equal(old, fp)
		return true
	})

	if skip {
		return false
	}
	return duplicate
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/z5labs/rum/meta"
	"github.com/z5labs/rum/telemetry"
)

// Body is the wire format of the plain JSON transport. Signals are
// grouped by type under one shared meta snapshot.
type Body struct {
	Meta         meta.Meta               `json:"meta"`
	Logs         []telemetry.Log         `json:"logs,omitempty"`
	Events       []telemetry.Event       `json:"events,omitempty"`
	Measurements []telemetry.Measurement `json:"measurements,omitempty"`
	Exceptions   []telemetry.Exception   `json:"exceptions,omitempty"`
	Traces       *telemetry.Traces       `json:"traces,omitempty"`
}

// NewBody groups the given items into a [Body]. The meta snapshot of the
// first item is used for the whole body, which is safe because the batch
// executor only groups items sharing identical meta.
func NewBody(items []telemetry.Item) Body {
	var body Body
	if len(items) == 0 {
		return body
	}
	body.Meta = items[0].Meta

	for _, item := range items {
		switch p := item.Payload.(type) {
		case telemetry.Log:
			body.Logs = append(body.Logs, p)
		case telemetry.Event:
			body.Events = append(body.Events, p)
		case telemetry.Measurement:
			body.Measurements = append(body.Measurements, p)
		case telemetry.Exception:
			body.Exceptions = append(body.Exceptions, p)
		case telemetry.Traces:
			body.Traces = mergeResourceSpans(body.Traces, p.ResourceSpans)
		}
	}
	return body
}

// mergeResourceSpans folds additional resource spans into the current
// trace payload by appending their scope spans onto the first resource
// entry, keeping the body to a single resource.
func mergeResourceSpans(current *telemetry.Traces, rs []*tracepb.ResourceSpans) *telemetry.Traces {
	if len(rs) == 0 {
		return current
	}
	if current == nil {
		return &telemetry.Traces{ResourceSpans: rs}
	}
	if len(current.ResourceSpans) == 0 {
		return current
	}

	first := current.ResourceSpans[0]
	for _, r := range rs {
		first.ScopeSpans = append(first.ScopeSpans, r.GetScopeSpans()...)
	}
	return current
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package transport moves telemetry items from the push APIs to their
// configured sinks, optionally batching them on the way.
package transport

import (
	"context"

	"github.com/z5labs/rum/telemetry"
)

// Transport delivers telemetry items to a sink.
//
// Send receives a batch when the transport reports itself as batched,
// otherwise a single-item slice. Implementations must never panic on
// malformed items; delivery failures are returned for logging but are
// never surfaced to telemetry producers.
type Transport interface {
	Name() string
	IsBatched() bool
	Send(context.Context, []telemetry.Item) error
}

// IgnoreURLLister is optionally implemented by transports which issue
// their own HTTP traffic. Instrumentation sources use the reported URLs
// to avoid capturing the SDK's own requests.
type IgnoreURLLister interface {
	IgnoreURLs() []string
}

// Shutdowner is optionally implemented by transports which hold
// resources that should be released on SDK shutdown.
type Shutdowner interface {
	Shutdown(context.Context) error
}

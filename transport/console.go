// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"context"
	"log/slog"

	"github.com/z5labs/rum/telemetry"
)

// Console writes every item to a [log/slog.Handler] instead of a
// collector. It is meant for local development.
type Console struct {
	log *slog.Logger
}

// NewConsole initializes a [Console] transport writing to h.
func NewConsole(h slog.Handler) *Console {
	if h == nil {
		h = slog.DiscardHandler
	}
	return &Console{
		log: slog.New(h),
	}
}

// Name implements the [Transport] interface.
func (t *Console) Name() string {
	return "console"
}

// IsBatched implements the [Transport] interface. Console output is more
// useful item by item, so it opts out of batching.
func (t *Console) IsBatched() bool {
	return false
}

// Send implements the [Transport] interface.
func (t *Console) Send(ctx context.Context, items []telemetry.Item) error {
	for _, item := range items {
		t.log.InfoContext(
			ctx,
			"new telemetry item",
			slog.String("type", string(item.Type)),
			slog.Any("payload", item.Payload),
		)
	}
	return nil
}

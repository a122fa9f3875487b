// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/z5labs/rum"
	"github.com/z5labs/rum/api"
	"github.com/z5labs/rum/meta"
	"github.com/z5labs/rum/storage"
	"github.com/z5labs/rum/telemetry"
	"github.com/z5labs/rum/transport"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))

	sdk := rum.New(
		rum.App(meta.App{
			Name:        "webshop",
			Version:     "1.4.2",
			Environment: "production",
		}),
		rum.User(meta.User{ID: "u-123", Username: "ada"}),
		rum.Transports(
			transport.NewHTTP("http://localhost:12347/collect"),
			transport.NewConsole(log.Handler()),
		),
		rum.ErrorStorage(&storage.Memory{}),
		rum.IgnoreErrors(transport.Contains("context canceled")),
		rum.LogHandler(log.Handler()),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := sdk.Shutdown(ctx)
		if err != nil {
			log.Error("failed to shutdown agent", slog.Any("error", err))
		}
	}()

	ctx := context.Background()

	sdk.SetView("catalog")
	sdk.PushEvent(ctx, "page_loaded")

	action := sdk.StartUserAction("checkout", api.Trigger("click"))
	sdk.PushLog(ctx, "submitting order", api.Level(telemetry.LogLevelInfo))
	sdk.PushMeasurement(ctx, "checkout", map[string]float64{"cart_size": 3})
	if action != nil {
		action.End(ctx)
	}

	sdk.PushError(ctx, errors.New("failed to load recommendations"))

	sdk.Flush()
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlp delivers telemetry to an OpenTelemetry collector over
// OTLP/HTTP with JSON encoding.
package otlp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/z5labs/rum/telemetry"
	"github.com/z5labs/rum/transport"
)

// Options are configurable parameters of a [Transport].
type Options struct {
	log              *slog.Logger
	client           transport.HTTPClient
	apiKey           string
	headers          map[string]string
	queueSize        int
	concurrency      int
	rateLimitBackoff time.Duration
	now              func() time.Time
}

// Option sets a value on [Options].
type Option interface {
	ApplyOption(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) ApplyOption(o *Options) {
	f(o)
}

// LogHandler configures internal logging for the transport. By default
// all internal logs are discarded.
func LogHandler(h slog.Handler) Option {
	return optionFunc(func(o *Options) {
		o.log = slog.New(h)
	})
}

// Client overrides the underlying HTTP client.
func Client(c transport.HTTPClient) Option {
	return optionFunc(func(o *Options) {
		o.client = c
	})
}

// APIKey sets the value of the x-api-key request header.
func APIKey(key string) Option {
	return optionFunc(func(o *Options) {
		o.apiKey = key
	})
}

// Headers sets extra request headers sent with every request.
func Headers(headers map[string]string) Option {
	return optionFunc(func(o *Options) {
		o.headers = headers
	})
}

// QueueSize bounds the number of pending sends.
func QueueSize(n int) Option {
	return optionFunc(func(o *Options) {
		o.queueSize = n
	})
}

// Concurrency bounds how many sends run in parallel.
func Concurrency(n int) Option {
	return optionFunc(func(o *Options) {
		o.concurrency = n
	})
}

// RateLimitBackoff overrides [transport.DefaultRateLimitBackoff].
func RateLimitBackoff(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.rateLimitBackoff = d
	})
}

// Transport delivers batched items as OTLP/HTTP JSON export requests.
// Log family signals and traces are exported to separate endpoints and
// rate limits are tracked per endpoint.
type Transport struct {
	log     *slog.Logger
	client  transport.HTTPClient
	handler slog.Handler

	logsURL   string
	tracesURL string

	apiKey  string
	headers map[string]string
	backoff time.Duration
	now     func() time.Time
	queue   *transport.SendQueue

	mu            sync.Mutex
	disabledUntil map[string]time.Time
}

// New initializes a [Transport] exporting logs to logsURL and traces to
// tracesURL. Either url may be empty to disable that signal family.
func New(logsURL, tracesURL string, opts ...Option) *Transport {
	o := &Options{
		log:              slog.New(slog.DiscardHandler),
		client:           http.DefaultClient,
		queueSize:        transport.DefaultSendQueueSize,
		concurrency:      transport.DefaultSendConcurrency,
		rateLimitBackoff: transport.DefaultRateLimitBackoff,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt.ApplyOption(o)
	}

	return &Transport{
		log:           o.log,
		client:        o.client,
		handler:       o.log.Handler(),
		logsURL:       logsURL,
		tracesURL:     tracesURL,
		apiKey:        o.apiKey,
		headers:       o.headers,
		backoff:       o.rateLimitBackoff,
		now:           o.now,
		queue:         transport.NewSendQueue(o.queueSize, o.concurrency),
		disabledUntil: make(map[string]time.Time),
	}
}

// Name implements the [transport.Transport] interface.
func (t *Transport) Name() string {
	return "otlp"
}

// IsBatched implements the [transport.Transport] interface.
func (t *Transport) IsBatched() bool {
	return true
}

// IgnoreURLs implements the [transport.IgnoreURLLister] interface.
func (t *Transport) IgnoreURLs() []string {
	var urls []string
	if t.logsURL != "" {
		urls = append(urls, t.logsURL)
	}
	if t.tracesURL != "" {
		urls = append(urls, t.tracesURL)
	}
	return urls
}

// Send implements the [transport.Transport] interface.
func (t *Transport) Send(ctx context.Context, items []telemetry.Item) error {
	if len(items) == 0 {
		return nil
	}

	payload := NewPayload(t.handler)
	for _, item := range items {
		payload.AddResourceItem(item)
	}

	if payload.HasLogs() && t.logsURL != "" {
		err := t.export(ctx, t.logsURL, payload.LogsRequest())
		if err != nil {
			return err
		}
	}
	if payload.HasTraces() && t.tracesURL != "" {
		err := t.export(ctx, t.tracesURL, payload.TracesRequest())
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) export(ctx context.Context, url string, req proto.Message) error {
	t.mu.Lock()
	until := t.disabledUntil[url]
	t.mu.Unlock()

	if now := t.now(); now.Before(until) {
		t.log.Warn(
			"endpoint is rate limited",
			slog.String("url", url),
			slog.Time("disabled_until", until),
		)
		return nil
	}

	b, err := protojson.Marshal(req)
	if err != nil {
		return fmt.Errorf("otlp: encode request: %w", err)
	}

	err = t.queue.Add(func() {
		t.post(ctx, url, b)
	})
	if err != nil {
		t.log.Warn("dropping items", slog.String("url", url), slog.Any("error", err))
	}
	return nil
}

func (t *Transport) post(ctx context.Context, url string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.log.Error("failed to build request", slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("x-api-key", t.apiKey)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		t.log.Error("failed to export telemetry", slog.Any("error", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		until := transport.RetryAfterDeadline(resp.Header.Get("Retry-After"), t.now(), t.backoff)

		t.mu.Lock()
		t.disabledUntil[url] = until
		t.mu.Unlock()

		t.log.Warn("rate limited by collector", slog.String("url", url), slog.Time("disabled_until", until))
		return
	}
	if resp.StatusCode >= 400 {
		t.log.Error("collector rejected telemetry", slog.String("url", url), slog.Int("status", resp.StatusCode))
	}
}

// Shutdown implements the [transport.Shutdowner] interface. It waits for
// all pending exports to complete.
func (t *Transport) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.queue.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

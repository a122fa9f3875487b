// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/z5labs/rum/telemetry"
)

// HTTPClient is the subset of [net/http.Client] used by the HTTP based
// transports.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPOptions are configurable parameters of a [HTTP] transport.
type HTTPOptions struct {
	log              *slog.Logger
	client           HTTPClient
	apiKey           string
	headers          map[string]string
	queueSize        int
	concurrency      int
	rateLimitBackoff time.Duration
	now              func() time.Time
}

// HTTPOption sets a value on [HTTPOptions].
type HTTPOption interface {
	ApplyHTTPOption(*HTTPOptions)
}

type httpOptionFunc func(*HTTPOptions)

func (f httpOptionFunc) ApplyHTTPOption(ho *HTTPOptions) {
	f(ho)
}

// HTTPLogHandler configures internal logging for the transport. By
// default all internal logs are discarded.
func HTTPLogHandler(h slog.Handler) HTTPOption {
	return httpOptionFunc(func(ho *HTTPOptions) {
		ho.log = slog.New(h)
	})
}

// Client overrides the underlying HTTP client.
func Client(c HTTPClient) HTTPOption {
	return httpOptionFunc(func(ho *HTTPOptions) {
		ho.client = c
	})
}

// APIKey sets the value of the x-api-key request header.
func APIKey(key string) HTTPOption {
	return httpOptionFunc(func(ho *HTTPOptions) {
		ho.apiKey = key
	})
}

// Headers sets extra request headers sent with every request.
func Headers(headers map[string]string) HTTPOption {
	return httpOptionFunc(func(ho *HTTPOptions) {
		ho.headers = headers
	})
}

// QueueSize bounds the number of pending sends. Defaults to
// [DefaultSendQueueSize].
func QueueSize(n int) HTTPOption {
	return httpOptionFunc(func(ho *HTTPOptions) {
		ho.queueSize = n
	})
}

// Concurrency bounds how many sends run in parallel. Defaults to
// [DefaultSendConcurrency].
func Concurrency(n int) HTTPOption {
	return httpOptionFunc(func(ho *HTTPOptions) {
		ho.concurrency = n
	})
}

// RateLimitBackoff overrides [DefaultRateLimitBackoff].
func RateLimitBackoff(d time.Duration) HTTPOption {
	return httpOptionFunc(func(ho *HTTPOptions) {
		ho.rateLimitBackoff = d
	})
}

// HTTP delivers batched items as a single JSON [Body] per request.
//
// A 429 response disables the transport until the deadline derived from
// the Retry-After header; items arriving during that window are dropped
// with a warning. Other failures are logged and never propagated to the
// caller, losing telemetry must not disturb the host application.
type HTTP struct {
	log     *slog.Logger
	client  HTTPClient
	url     string
	apiKey  string
	headers map[string]string
	backoff time.Duration
	now     func() time.Time
	queue   *SendQueue

	mu            sync.Mutex
	disabledUntil time.Time
}

// NewHTTP initializes a [HTTP] transport delivering to url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	ho := &HTTPOptions{
		log:              slog.New(slog.DiscardHandler),
		client:           http.DefaultClient,
		queueSize:        DefaultSendQueueSize,
		concurrency:      DefaultSendConcurrency,
		rateLimitBackoff: DefaultRateLimitBackoff,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt.ApplyHTTPOption(ho)
	}

	return &HTTP{
		log:     ho.log,
		client:  ho.client,
		url:     url,
		apiKey:  ho.apiKey,
		headers: ho.headers,
		backoff: ho.rateLimitBackoff,
		now:     ho.now,
		queue:   NewSendQueue(ho.queueSize, ho.concurrency),
	}
}

// Name implements the [Transport] interface.
func (t *HTTP) Name() string {
	return "http"
}

// IsBatched implements the [Transport] interface.
func (t *HTTP) IsBatched() bool {
	return true
}

// IgnoreURLs implements the [IgnoreURLLister] interface so instrumented
// network capture does not report the transport's own requests.
func (t *HTTP) IgnoreURLs() []string {
	return []string{t.url}
}

// Send implements the [Transport] interface.
func (t *HTTP) Send(ctx context.Context, items []telemetry.Item) error {
	if len(items) == 0 {
		return nil
	}

	t.mu.Lock()
	until := t.disabledUntil
	t.mu.Unlock()

	if now := t.now(); now.Before(until) {
		t.log.Warn(
			"transport is rate limited",
			slog.String("transport", t.Name()),
			slog.Time("disabled_until", until),
		)
		return nil
	}

	b, err := json.Marshal(NewBody(items))
	if err != nil {
		return fmt.Errorf("transport: encode body: %w", err)
	}

	err = t.queue.Add(func() {
		t.post(ctx, b)
	})
	if err != nil {
		t.log.Warn("dropping items", slog.String("transport", t.Name()), slog.Any("error", err))
	}
	return nil
}

func (t *HTTP) post(ctx context.Context, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
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
		t.log.Error("failed to send telemetry", slog.Any("error", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		until := RetryAfterDeadline(resp.Header.Get("Retry-After"), t.now(), t.backoff)

		t.mu.Lock()
		t.disabledUntil = until
		t.mu.Unlock()

		t.log.Warn("rate limited by collector", slog.Time("disabled_until", until))
		return
	}
	if resp.StatusCode >= 400 {
		t.log.Error("collector rejected telemetry", slog.Int("status", resp.StatusCode))
	}
}

// Shutdown implements the [Shutdowner] interface. It waits for all
// pending sends to complete.
func (t *HTTP) Shutdown(ctx context.Context) error {
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

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/z5labs/rum/telemetry"
)

// BeforeSendHook may transform an item before it reaches any transport,
// or drop it entirely by returning false.
type BeforeSendHook func(telemetry.Item) (telemetry.Item, bool)

// Pattern matches an exception's "{type}: {value}" string for the ignore
// errors filter.
type Pattern interface {
	Match(string) bool
}

type containsPattern string

func (p containsPattern) Match(s string) bool {
	return strings.Contains(s, string(p))
}

// Contains builds a [Pattern] matching any string containing substr.
func Contains(substr string) Pattern {
	return containsPattern(substr)
}

type regexpPattern struct {
	re *regexp.Regexp
}

func (p regexpPattern) Match(s string) bool {
	return p.re.MatchString(s)
}

// Regexp builds a [Pattern] from a compiled regular expression.
func Regexp(re *regexp.Regexp) Pattern {
	return regexpPattern{re: re}
}

// RegistryOptions are configurable parameters of a [Registry].
type RegistryOptions struct {
	log         *slog.Logger
	batching    bool
	itemLimit   int
	sendTimeout time.Duration
	paused      bool
}

// RegistryOption sets a value on [RegistryOptions].
type RegistryOption interface {
	ApplyRegistryOption(*RegistryOptions)
}

type registryOptionFunc func(*RegistryOptions)

func (f registryOptionFunc) ApplyRegistryOption(ro *RegistryOptions) {
	f(ro)
}

// LogHandler configures internal logging. By default all internal logs
// are discarded.
func LogHandler(h slog.Handler) RegistryOption {
	return registryOptionFunc(func(ro *RegistryOptions) {
		ro.log = slog.New(h)
	})
}

// DisableBatching makes every item dispatch immediately instead of being
// accumulated by the batch executor.
func DisableBatching() RegistryOption {
	return registryOptionFunc(func(ro *RegistryOptions) {
		ro.batching = false
	})
}

// BatchItemLimit overrides the batch executor's item limit.
func BatchItemLimit(n int) RegistryOption {
	return registryOptionFunc(func(ro *RegistryOptions) {
		ro.itemLimit = n
	})
}

// BatchSendTimeout overrides the batch executor's flush cadence.
func BatchSendTimeout(d time.Duration) RegistryOption {
	return registryOptionFunc(func(ro *RegistryOptions) {
		ro.sendTimeout = d
	})
}

// StartPaused constructs the registry in paused state; items are dropped
// until [Registry.Unpause] is called.
func StartPaused() RegistryOption {
	return registryOptionFunc(func(ro *RegistryOptions) {
		ro.paused = true
	})
}

// Registry holds the configured transports and is the single entry point
// through which the push APIs dispatch items.
type Registry struct {
	log *slog.Logger

	mu         sync.Mutex
	transports []Transport
	hooks      []BeforeSendHook
	paused     bool

	batching bool
	batch    *BatchExecutor
}

// NewRegistry initializes a [Registry]. Batching is enabled by default.
func NewRegistry(opts ...RegistryOption) *Registry {
	ro := &RegistryOptions{
		log:         slog.New(slog.DiscardHandler),
		batching:    true,
		itemLimit:   DefaultBatchItemLimit,
		sendTimeout: DefaultBatchSendTimeout,
	}
	for _, opt := range opts {
		opt.ApplyRegistryOption(ro)
	}

	r := &Registry{
		log:      ro.log,
		paused:   ro.paused,
		batching: ro.batching,
	}

	if ro.batching {
		batchOpts := []BatchExecutorOption{
			ItemLimit(ro.itemLimit),
			SendTimeout(ro.sendTimeout),
		}
		if ro.paused {
			batchOpts = append(batchOpts, Paused())
		}
		r.batch = NewBatchExecutor(r.batchedSend, batchOpts...)
	}
	return r
}

// Add registers transports. A transport whose name is already registered
// is ignored with a warning.
func (r *Registry) Add(transports ...Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range transports {
		exists := false
		for _, existing := range r.transports {
			if existing.Name() == t.Name() {
				exists = true
				break
			}
		}
		if exists {
			r.log.Warn("transport is already added", slog.String("transport", t.Name()))
			continue
		}

		r.log.Debug("adding transport", slog.String("transport", t.Name()))
		r.transports = append(r.transports, t)
	}
}

// Remove unregisters transports by name. Removing an unknown transport
// warns and is otherwise a no-op.
func (r *Registry) Remove(transports ...Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range transports {
		idx := -1
		for i, existing := range r.transports {
			if existing.Name() == t.Name() {
				idx = i
				break
			}
		}
		if idx == -1 {
			r.log.Warn("transport is not added", slog.String("transport", t.Name()))
			continue
		}

		r.transports = append(r.transports[:idx], r.transports[idx+1:]...)
	}
}

// Transports returns a snapshot of the registered transports.
func (r *Registry) Transports() []Transport {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Transport, len(r.transports))
	copy(out, r.transports)
	return out
}

// AddBeforeSendHooks registers payload mutating/filtering hooks, applied
// in registration order on every send.
func (r *Registry) AddBeforeSendHooks(hooks ...BeforeSendHook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		r.hooks = append(r.hooks, hook)
	}
}

// AddIgnoreErrorsPatterns registers patterns which drop exception items
// whose "{type}: {value}" string matches.
func (r *Registry) AddIgnoreErrorsPatterns(patterns ...Pattern) {
	if len(patterns) == 0 {
		return
	}

	r.AddBeforeSendHooks(func(item telemetry.Item) (telemetry.Item, bool) {
		e, ok := item.Payload.(telemetry.Exception)
		if !ok {
			return item, true
		}

		msg := fmt.Sprintf("%s: %s", e.Type, e.Value)
		for _, pattern := range patterns {
			if pattern.Match(msg) {
				r.log.Debug("ignoring error matching configured pattern", slog.String("error", msg))
				return item, false
			}
		}
		return item, true
	})
}

// Execute dispatches a single item. Items are dropped while the registry
// is paused. With batching enabled the item is queued on the batch
// executor; unbatched transports always receive it immediately.
func (r *Registry) Execute(ctx context.Context, item telemetry.Item) {
	r.mu.Lock()
	paused := r.paused
	r.mu.Unlock()

	if paused {
		return
	}

	if r.batching {
		r.batch.AddItem(item)
	}

	r.instantSend(ctx, item)
}

func (r *Registry) applyBeforeSendHooks(items []telemetry.Item) []telemetry.Item {
	r.mu.Lock()
	hooks := make([]BeforeSendHook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	filtered := items
	for _, hook := range hooks {
		next := make([]telemetry.Item, 0, len(filtered))
		for _, item := range filtered {
			out, keep := hook(item)
			if !keep {
				continue
			}
			next = append(next, out)
		}
		if len(next) == 0 {
			return nil
		}
		filtered = next
	}
	return filtered
}

// batchedSend is the batch executor's send function: it runs the
// before-send pipeline once per group and fans the group out to all
// batched transports.
func (r *Registry) batchedSend(items []telemetry.Item) {
	filtered := r.applyBeforeSendHooks(items)
	if len(filtered) == 0 {
		return
	}

	for _, t := range r.Transports() {
		if !t.IsBatched() {
			continue
		}

		r.log.Debug("transporting items", slog.String("transport", t.Name()), slog.Int("items", len(filtered)))

		err := t.Send(context.Background(), filtered)
		if err != nil {
			r.log.Error("failed to send telemetry", slog.String("transport", t.Name()), slog.Any("error", err))
		}
	}
}

func (r *Registry) instantSend(ctx context.Context, item telemetry.Item) {
	transports := r.Transports()

	// with batching enabled the batch executor covers all batched
	// transports; skip the hook pipeline if nothing else would receive
	// the item
	if r.batching {
		allBatched := true
		for _, t := range transports {
			if !t.IsBatched() {
				allBatched = false
				break
			}
		}
		if allBatched {
			return
		}
	}

	filtered := r.applyBeforeSendHooks([]telemetry.Item{item})
	if len(filtered) == 0 {
		return
	}

	for _, t := range transports {
		if t.IsBatched() && r.batching {
			continue
		}

		r.log.Debug("transporting item", slog.String("transport", t.Name()))

		err := t.Send(ctx, filtered)
		if err != nil {
			r.log.Error("failed to send telemetry", slog.String("transport", t.Name()), slog.Any("error", err))
		}
	}
}

// IsPaused reports whether items are currently dropped.
func (r *Registry) IsPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.paused
}

// Pause drops all subsequently executed items and pauses the batch
// executor.
func (r *Registry) Pause() {
	r.log.Debug("pausing transports")

	if r.batch != nil {
		r.batch.Pause()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
}

// Unpause resumes dispatch.
func (r *Registry) Unpause() {
	r.log.Debug("unpausing transports")

	if r.batch != nil {
		r.batch.Start()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
}

// Flush forces the batch executor to deliver all buffered items now.
func (r *Registry) Flush() {
	if r.batch != nil {
		r.batch.Flush()
	}
}

// Shutdown flushes buffered items, stops the batch executor and shuts
// down all transports which hold resources.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.Flush()

	if r.batch != nil {
		r.batch.Pause()
	}

	var errs []error
	for _, t := range r.Transports() {
		s, ok := t.(Shutdowner)
		if !ok {
			continue
		}
		err := s.Shutdown(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("transport: shutdown: %v", errs)
}

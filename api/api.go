// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package api implements the push surface through which host
// applications record telemetry.
package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/z5labs/rum/api/uniqueness"
	"github.com/z5labs/rum/concurrent"
	"github.com/z5labs/rum/meta"
	"github.com/z5labs/rum/telemetry"
	"github.com/z5labs/rum/transport"
)

// DefaultEventDomain is attached to events pushed without an explicit
// domain.
const DefaultEventDomain = "browser"

// Options are configurable parameters of an [API].
type Options struct {
	log         *slog.Logger
	dedupe      bool
	tracker     *uniqueness.Tracker
	eventDomain string
	exclude     func(telemetry.Item) bool
	now         func() time.Time
}

// Option sets a value on [Options].
type Option interface {
	ApplyOption(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) ApplyOption(o *Options) {
	f(o)
}

// LogHandler configures internal logging. By default all internal logs
// are discarded.
func LogHandler(h slog.Handler) Option {
	return optionFunc(func(o *Options) {
		o.log = slog.New(h)
	})
}

// DisableDedupe turns off duplicate signal filtering.
func DisableDedupe() Option {
	return optionFunc(func(o *Options) {
		o.dedupe = false
	})
}

// WithTracker enables first occurrence tracking of errors across
// sessions.
func WithTracker(t *uniqueness.Tracker) Option {
	return optionFunc(func(o *Options) {
		o.tracker = t
	})
}

// EventDomain overrides [DefaultEventDomain].
func EventDomain(domain string) Option {
	return optionFunc(func(o *Options) {
		o.eventDomain = domain
	})
}

// ExcludeFromUserActions configures a predicate deciding which items a
// completed user action flushes without an action reference.
func ExcludeFromUserActions(f func(telemetry.Item) bool) Option {
	return optionFunc(func(o *Options) {
		o.exclude = f
	})
}

// API builds telemetry items from pushed signals, filters duplicates
// and routes items to the transports, or to the active user action's
// buffer while one is in flight.
type API struct {
	log         *slog.Logger
	metas       *meta.Store
	registry    *transport.Registry
	dedupe      bool
	lastPayload *concurrent.Cache[telemetry.ItemType, any]
	tracker     *uniqueness.Tracker
	eventDomain string
	exclude     func(telemetry.Item) bool
	now         func() time.Time

	mu     sync.Mutex
	action *UserAction
}

// New initializes an [API]. Signal deduplication is enabled by default.
func New(metas *meta.Store, registry *transport.Registry, opts ...Option) *API {
	o := &Options{
		log:         slog.New(slog.DiscardHandler),
		dedupe:      true,
		eventDomain: DefaultEventDomain,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt.ApplyOption(o)
	}

	return &API{
		log:         o.log,
		metas:       metas,
		registry:    registry,
		dedupe:      o.dedupe,
		lastPayload: concurrent.NewCache[telemetry.ItemType, any](),
		tracker:     o.tracker,
		eventDomain: o.eventDomain,
		exclude:     o.exclude,
		now:         o.now,
	}
}

// trackFirstOccurrence marks an exception's context when its signature
// has never been seen within the current session.
func (a *API) trackFirstOccurrence(p telemetry.Exception) telemetry.Exception {
	if a.tracker == nil || a.tracker.Disabled() {
		return p
	}

	hash := uniqueness.Hash(uniqueness.Signature(p))
	if !a.tracker.IsUnique(hash) {
		return p
	}
	a.tracker.MarkAsSeen(hash)

	ctx := make(map[string]string, len(p.Context)+1)
	for k, v := range p.Context {
		ctx[k] = v
	}
	ctx["first_occurrence"] = "true"
	p.Context = ctx
	return p
}

// excluded reports whether an item is flushed without an action
// reference when the user action which buffered it ends. Web vitals
// always are so their timings stay independent of any action.
func (a *API) excluded(item telemetry.Item) bool {
	if m, ok := item.Payload.(telemetry.Measurement); ok && m.Type == telemetry.MeasurementTypeWebVitals {
		return true
	}
	if a.exclude != nil {
		return a.exclude(item)
	}
	return false
}

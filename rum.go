// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package rum implements a real user monitoring agent. It collects
// logs, events, measurements, errors and traces from a client
// application and ships them, batched and deduplicated, to a collector.
package rum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/z5labs/rum/api"
	"github.com/z5labs/rum/api/uniqueness"
	"github.com/z5labs/rum/config"
	"github.com/z5labs/rum/meta"
	"github.com/z5labs/rum/storage"
	"github.com/z5labs/rum/telemetry"
	"github.com/z5labs/rum/transport"
	"github.com/z5labs/rum/transport/otlp"
)

const sdkName = "github.com/z5labs/rum"

func sdkVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	if info.Main.Path == sdkName && info.Main.Version != "" {
		return info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path == sdkName {
			return dep.Version
		}
	}
	return "devel"
}

// Options are configurable parameters of an [SDK].
type Options struct {
	log          *slog.Logger
	app          *meta.App
	user         *meta.User
	sessionID    string
	sessionAttrs map[string]string
	providers    []meta.Provider
	transports   []transport.Transport
	registryOpts []transport.RegistryOption
	apiOpts      []api.Option
	store        storage.Storage
	trackerOpts  []uniqueness.TrackerOption
	hooks        []transport.BeforeSendHook
	ignoreErrors []transport.Pattern
}

// Option sets a value on [Options].
type Option interface {
	ApplyOption(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) ApplyOption(o *Options) {
	f(o)
}

// LogHandler configures internal logging for the agent and every
// component it wires together. By default all internal logs are
// discarded.
func LogHandler(h slog.Handler) Option {
	return optionFunc(func(o *Options) {
		o.log = slog.New(h)
		o.registryOpts = append(o.registryOpts, transport.LogHandler(h))
		o.apiOpts = append(o.apiOpts, api.LogHandler(h))
		o.trackerOpts = append(o.trackerOpts, uniqueness.LogHandler(h))
	})
}

// App identifies the monitored application on every item.
func App(app meta.App) Option {
	return optionFunc(func(o *Options) {
		o.app = &app
	})
}

// User identifies the current user on every item.
func User(user meta.User) Option {
	return optionFunc(func(o *Options) {
		o.user = &user
	})
}

// SessionID overrides the generated session id.
func SessionID(id string) Option {
	return optionFunc(func(o *Options) {
		o.sessionID = id
	})
}

// SessionAttributes attaches attributes to the session meta.
func SessionAttributes(attrs map[string]string) Option {
	return optionFunc(func(o *Options) {
		o.sessionAttrs = attrs
	})
}

// MetaProviders registers additional providers contributing to the meta
// snapshot attached to every item.
func MetaProviders(ps ...meta.Provider) Option {
	return optionFunc(func(o *Options) {
		o.providers = append(o.providers, ps...)
	})
}

// Transports registers the transports items are delivered through.
func Transports(ts ...transport.Transport) Option {
	return optionFunc(func(o *Options) {
		o.transports = append(o.transports, ts...)
	})
}

// DisableBatching makes every item dispatch immediately.
func DisableBatching() Option {
	return optionFunc(func(o *Options) {
		o.registryOpts = append(o.registryOpts, transport.DisableBatching())
	})
}

// BatchItemLimit overrides [transport.DefaultBatchItemLimit].
func BatchItemLimit(n int) Option {
	return optionFunc(func(o *Options) {
		o.registryOpts = append(o.registryOpts, transport.BatchItemLimit(n))
	})
}

// BatchSendTimeout overrides [transport.DefaultBatchSendTimeout].
func BatchSendTimeout(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.registryOpts = append(o.registryOpts, transport.BatchSendTimeout(d))
	})
}

// StartPaused constructs the agent in paused state; items are dropped
// until [SDK.Unpause] is called.
func StartPaused() Option {
	return optionFunc(func(o *Options) {
		o.registryOpts = append(o.registryOpts, transport.StartPaused())
	})
}

// DisableDedupe turns off duplicate signal filtering.
func DisableDedupe() Option {
	return optionFunc(func(o *Options) {
		o.apiOpts = append(o.apiOpts, api.DisableDedupe())
	})
}

// EventDomain overrides [api.DefaultEventDomain].
func EventDomain(domain string) Option {
	return optionFunc(func(o *Options) {
		o.apiOpts = append(o.apiOpts, api.EventDomain(domain))
	})
}

// ExcludeFromUserActions configures a predicate deciding which items a
// completed user action flushes without an action reference.
func ExcludeFromUserActions(f func(telemetry.Item) bool) Option {
	return optionFunc(func(o *Options) {
		o.apiOpts = append(o.apiOpts, api.ExcludeFromUserActions(f))
	})
}

// ErrorStorage enables first occurrence tracking of errors, persisting
// signature caches in store.
func ErrorStorage(store storage.Storage) Option {
	return optionFunc(func(o *Options) {
		o.store = store
	})
}

// MaxErrorSignatures overrides [uniqueness.DefaultMaxSize].
func MaxErrorSignatures(n int) Option {
	return optionFunc(func(o *Options) {
		o.trackerOpts = append(o.trackerOpts, uniqueness.MaxSize(n))
	})
}

// IgnoreErrors drops captured errors matching any of the given patterns.
func IgnoreErrors(patterns ...transport.Pattern) Option {
	return optionFunc(func(o *Options) {
		o.ignoreErrors = append(o.ignoreErrors, patterns...)
	})
}

// BeforeSend registers hooks which may transform or drop items before
// they reach any transport.
func BeforeSend(hooks ...transport.BeforeSendHook) Option {
	return optionFunc(func(o *Options) {
		o.hooks = append(o.hooks, hooks...)
	})
}

// SDK is an initialized agent. All methods are safe for concurrent use.
type SDK struct {
	log      *slog.Logger
	metas    *meta.Store
	registry *transport.Registry
	api      *api.API
	tracker  *uniqueness.Tracker

	mu              sync.Mutex
	sessionProvider meta.Provider
	userProvider    meta.Provider
	viewProvider    meta.Provider
	pageProvider    meta.Provider
}

// New initializes an [SDK].
func New(opts ...Option) *SDK {
	o := &Options{
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt.ApplyOption(o)
	}

	sdk := &SDK{
		log:   o.log,
		metas: meta.NewStore(),
	}

	sdk.metas.Add(meta.Value(meta.Meta{
		SDK: &meta.SDK{
			Name:    sdkName,
			Version: sdkVersion(),
		},
	}))
	if o.app != nil {
		sdk.metas.Add(meta.Value(meta.Meta{App: o.app}))
	}
	if o.user != nil {
		sdk.userProvider = meta.Value(meta.Meta{User: o.user})
		sdk.metas.Add(sdk.userProvider)
	}
	sdk.metas.Add(o.providers...)

	sdk.registry = transport.NewRegistry(o.registryOpts...)
	sdk.registry.Add(o.transports...)
	sdk.registry.AddBeforeSendHooks(o.hooks...)
	sdk.registry.AddIgnoreErrorsPatterns(o.ignoreErrors...)

	apiOpts := o.apiOpts
	if o.store != nil {
		sdk.tracker = uniqueness.NewTracker(sdk.metas, o.store, o.trackerOpts...)
		apiOpts = append(apiOpts, api.WithTracker(sdk.tracker))
	}
	sdk.api = api.New(sdk.metas, sdk.registry, apiOpts...)

	// the session provider is added last so the tracker observes the
	// session id only once all other meta is in place
	sessionID := o.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sdk.sessionProvider = meta.Value(meta.Meta{
		Session: &meta.Session{
			ID:         sessionID,
			Attributes: o.sessionAttrs,
		},
	})
	sdk.metas.Add(sdk.sessionProvider)

	sdk.log.Debug("initialized agent", slog.String("session", sessionID))
	return sdk
}

// NewFromConfig initializes an [SDK] from a loaded [Config]. Options
// are applied after the configuration and take precedence over it.
func NewFromConfig(cfg Config, opts ...Option) (*SDK, error) {
	var cfgOpts []Option

	rc := cfg.RUM
	if rc.App.Name != "" {
		cfgOpts = append(cfgOpts, App(meta.App{
			Name:        rc.App.Name,
			Namespace:   rc.App.Namespace,
			Version:     rc.App.Version,
			Environment: rc.App.Environment,
			Release:     rc.App.Release,
		}))
	}
	if rc.Session.ID != "" {
		cfgOpts = append(cfgOpts, SessionID(rc.Session.ID))
	}
	if len(rc.Session.Attributes) > 0 {
		cfgOpts = append(cfgOpts, SessionAttributes(rc.Session.Attributes))
	}

	for _, tc := range rc.Transports {
		t, err := newTransport(tc)
		if err != nil {
			return nil, err
		}
		cfgOpts = append(cfgOpts, Transports(t))
	}

	if rc.Batching.Disabled {
		cfgOpts = append(cfgOpts, DisableBatching())
	}
	if rc.Batching.ItemLimit > 0 {
		cfgOpts = append(cfgOpts, BatchItemLimit(rc.Batching.ItemLimit))
	}
	if rc.Batching.SendTimeout > 0 {
		cfgOpts = append(cfgOpts, BatchSendTimeout(rc.Batching.SendTimeout))
	}
	if rc.Dedupe.Disabled {
		cfgOpts = append(cfgOpts, DisableDedupe())
	}
	if rc.EventDomain != "" {
		cfgOpts = append(cfgOpts, EventDomain(rc.EventDomain))
	}

	if !rc.ErrorTracking.Disabled {
		store, err := newErrorStore(rc.ErrorTracking)
		if err != nil {
			return nil, err
		}
		cfgOpts = append(cfgOpts, ErrorStorage(store))

		if rc.ErrorTracking.MaxSignatures > 0 {
			cfgOpts = append(cfgOpts, MaxErrorSignatures(rc.ErrorTracking.MaxSignatures))
		}
	}

	for _, pattern := range rc.IgnoreErrors {
		cfgOpts = append(cfgOpts, IgnoreErrors(transport.Contains(pattern)))
	}

	return New(append(cfgOpts, opts...)...), nil
}

func newTransport(tc config.Transport) (transport.Transport, error) {
	switch tc.Type {
	case config.HTTPTransportType:
		var opts []transport.HTTPOption
		if tc.Collector.APIKey != "" {
			opts = append(opts, transport.APIKey(tc.Collector.APIKey))
		}
		if len(tc.Collector.Headers) > 0 {
			opts = append(opts, transport.Headers(tc.Collector.Headers))
		}
		return transport.NewHTTP(tc.Collector.URL, opts...), nil
	case config.OTLPTransportType:
		var opts []otlp.Option
		if tc.OTLP.APIKey != "" {
			opts = append(opts, otlp.APIKey(tc.OTLP.APIKey))
		}
		if len(tc.OTLP.Headers) > 0 {
			opts = append(opts, otlp.Headers(tc.OTLP.Headers))
		}
		return otlp.New(tc.OTLP.LogsURL, tc.OTLP.TracesURL, opts...), nil
	case config.ConsoleTransportType:
		return transport.NewConsole(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})), nil
	default:
		return nil, fmt.Errorf("rum: unknown transport type: %s", tc.Type)
	}
}

// HTTPTransportFromEnv constructs the plain JSON transport from the
// RUM_COLLECTOR_URL and RUM_COLLECTOR_API_KEY environment variables.
func HTTPTransportFromEnv(ctx context.Context, opts ...transport.HTTPOption) (*transport.HTTP, error) {
	urlValue, err := config.Env("RUM_COLLECTOR_URL").Read(ctx)
	if err != nil {
		return nil, err
	}
	url, ok := urlValue.Get()
	if !ok {
		return nil, errors.New("rum: RUM_COLLECTOR_URL is not set")
	}

	apiKey := config.MustOr(ctx, "", config.Env("RUM_COLLECTOR_API_KEY"))
	if apiKey != "" {
		opts = append(opts, transport.APIKey(apiKey))
	}
	return transport.NewHTTP(url, opts...), nil
}

// OTLPTransportFromEnv constructs the OTLP transport from the
// RUM_OTLP_LOGS_URL, RUM_OTLP_TRACES_URL and RUM_OTLP_API_KEY
// environment variables. At least one endpoint must be set.
func OTLPTransportFromEnv(ctx context.Context, opts ...otlp.Option) (*otlp.Transport, error) {
	logsURL := config.MustOr(ctx, "", config.Env("RUM_OTLP_LOGS_URL"))
	tracesURL := config.MustOr(ctx, "", config.Env("RUM_OTLP_TRACES_URL"))
	if logsURL == "" && tracesURL == "" {
		return nil, errors.New("rum: neither RUM_OTLP_LOGS_URL nor RUM_OTLP_TRACES_URL is set")
	}

	apiKey := config.MustOr(ctx, "", config.Env("RUM_OTLP_API_KEY"))
	if apiKey != "" {
		opts = append(opts, otlp.APIKey(apiKey))
	}
	return otlp.New(logsURL, tracesURL, opts...), nil
}

func newErrorStore(cfg config.ErrorTracking) (storage.Storage, error) {
	if cfg.Dir == "" {
		return &storage.Memory{}, nil
	}
	return storage.NewFile(cfg.Dir)
}

// API returns the push surface of the agent.
func (sdk *SDK) API() *api.API {
	return sdk.api
}

// Metas returns the agent's meta store.
func (sdk *SDK) Metas() *meta.Store {
	return sdk.metas
}

// PushLog records a log line.
func (sdk *SDK) PushLog(ctx context.Context, message string, opts ...api.PushOption) {
	sdk.api.PushLog(ctx, message, opts...)
}

// PushEvent records a custom event.
func (sdk *SDK) PushEvent(ctx context.Context, name string, opts ...api.PushOption) {
	sdk.api.PushEvent(ctx, name, opts...)
}

// PushMeasurement records a set of named values measured together.
func (sdk *SDK) PushMeasurement(ctx context.Context, measurementType string, values map[string]float64, opts ...api.PushOption) {
	sdk.api.PushMeasurement(ctx, measurementType, values, opts...)
}

// PushError records a Go error as an exception.
func (sdk *SDK) PushError(ctx context.Context, err error, opts ...api.PushOption) {
	sdk.api.PushError(ctx, err, opts...)
}

// PushException records a captured error with an explicit type and
// message.
func (sdk *SDK) PushException(ctx context.Context, exceptionType, value string, opts ...api.PushOption) {
	sdk.api.PushException(ctx, exceptionType, value, opts...)
}

// PushTraces forwards an OTLP trace export request.
func (sdk *SDK) PushTraces(ctx context.Context, traces telemetry.Traces) {
	sdk.api.PushTraces(ctx, traces)
}

// StartUserAction begins a new user action.
func (sdk *SDK) StartUserAction(name string, opts ...api.UserActionOption) *api.UserAction {
	return sdk.api.StartUserAction(name, opts...)
}

// SetUser replaces the user meta attached to every subsequent item.
func (sdk *SDK) SetUser(user meta.User) {
	sdk.swapProvider(&sdk.userProvider, meta.Meta{User: &user})
}

// SetView replaces the view meta attached to every subsequent item.
func (sdk *SDK) SetView(name string) {
	sdk.swapProvider(&sdk.viewProvider, meta.Meta{View: &meta.View{Name: name}})
}

// SetPage replaces the page meta attached to every subsequent item.
func (sdk *SDK) SetPage(page meta.Page) {
	sdk.swapProvider(&sdk.pageProvider, meta.Meta{Page: &page})
}

// NewSession rotates the session. An empty id generates a new one. The
// error signature cache of the previous session is discarded.
func (sdk *SDK) NewSession(id string, attrs map[string]string) {
	if id == "" {
		id = uuid.NewString()
	}
	sdk.swapProvider(&sdk.sessionProvider, meta.Meta{
		Session: &meta.Session{
			ID:         id,
			Attributes: attrs,
		},
	})
	sdk.log.Debug("rotated session", slog.String("session", id))
}

func (sdk *SDK) swapProvider(p *meta.Provider, m meta.Meta) {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()

	if *p != nil {
		sdk.metas.Remove(*p)
	}
	*p = meta.Value(m)
	sdk.metas.Add(*p)
}

// Pause drops all subsequently pushed items until [SDK.Unpause].
func (sdk *SDK) Pause() {
	sdk.registry.Pause()
}

// Unpause resumes dispatch.
func (sdk *SDK) Unpause() {
	sdk.registry.Unpause()
}

// Flush delivers all buffered items now. Hosts should call this when
// the application is about to background or exit.
func (sdk *SDK) Flush() {
	sdk.registry.Flush()
}

// Shutdown flushes buffered items, persists the error signature cache
// and shuts down all transports.
func (sdk *SDK) Shutdown(ctx context.Context) error {
	if sdk.tracker != nil {
		sdk.tracker.Close()
	}
	return sdk.registry.Shutdown(ctx)
}

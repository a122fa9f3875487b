// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/z5labs/rum/telemetry"
)

// PushOptions are per call parameters of the push methods.
type PushOptions struct {
	skipDedupe bool
	level      telemetry.LogLevel
	domain     string
	errType    string
	context    map[string]string
	attributes map[string]string
	stacktrace *telemetry.Stacktrace
	spanCtx    trace.SpanContext
	hasSpanCtx bool
	timestamp  time.Time
}

// PushOption sets a value on [PushOptions].
type PushOption interface {
	ApplyPushOption(*PushOptions)
}

type pushOptionFunc func(*PushOptions)

func (f pushOptionFunc) ApplyPushOption(po *PushOptions) {
	f(po)
}

// SkipDedupe pushes the signal even if it equals the previously pushed
// one. The signal still becomes the new comparison baseline.
func SkipDedupe() PushOption {
	return pushOptionFunc(func(po *PushOptions) {
		po.skipDedupe = true
	})
}

// Level sets a log's severity. Defaults to [telemetry.LogLevelLog].
func Level(level telemetry.LogLevel) PushOption {
	return pushOptionFunc(func(po *PushOptions) {
		po.level = level
	})
}

// Domain sets an event's domain. Defaults to the domain the [API] was
// configured with.
func Domain(domain string) PushOption {
	return pushOptionFunc(func(po *PushOptions) {
		po.domain = domain
	})
}

// ErrorType overrides the exception type derived for a pushed error.
func ErrorType(errType string) PushOption {
	return pushOptionFunc(func(po *PushOptions) {
		po.errType = errType
	})
}

// WithContext attaches contextual key value pairs to the signal.
func WithContext(ctx map[string]string) PushOption {
	return pushOptionFunc(func(po *PushOptions) {
		po.context = ctx
	})
}

// Attributes attaches attributes to a pushed event.
func Attributes(attrs map[string]string) PushOption {
	return pushOptionFunc(func(po *PushOptions) {
		po.attributes = attrs
	})
}

// WithStacktrace attaches a stacktrace to a pushed exception.
func WithStacktrace(st *telemetry.Stacktrace) PushOption {
	return pushOptionFunc(func(po *PushOptions) {
		po.stacktrace = st
	})
}

// SpanContext overrides the trace context that would otherwise be taken
// from the [context.Context] passed to the push method.
func SpanContext(sc trace.SpanContext) PushOption {
	return pushOptionFunc(func(po *PushOptions) {
		po.spanCtx = sc
		po.hasSpanCtx = true
	})
}

// Timestamp overrides the signal's timestamp. Defaults to the time of
// the push call.
func Timestamp(t time.Time) PushOption {
	return pushOptionFunc(func(po *PushOptions) {
		po.timestamp = t
	})
}

func (a *API) pushOptions(opts []PushOption) *PushOptions {
	po := &PushOptions{
		level:  telemetry.LogLevelLog,
		domain: a.eventDomain,
	}
	for _, opt := range opts {
		opt.ApplyPushOption(po)
	}
	if po.timestamp.IsZero() {
		po.timestamp = a.now()
	}
	return po
}

func (a *API) traceContext(ctx context.Context, po *PushOptions) *telemetry.TraceContext {
	sc := po.spanCtx
	if !po.hasSpanCtx {
		sc = trace.SpanContextFromContext(ctx)
	}
	if !sc.IsValid() {
		return nil
	}

	return &telemetry.TraceContext{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// PushLog records a log line.
func (a *API) PushLog(ctx context.Context, message string, opts ...PushOption) {
	po := a.pushOptions(opts)

	p := telemetry.Log{
		Message:   message,
		Level:     po.level,
		Context:   po.context,
		Timestamp: po.timestamp,
		Trace:     a.traceContext(ctx, po),
	}
	if a.isDuplicate(p, po.skipDedupe) {
		a.log.Debug("skipping duplicate log")
		return
	}

	a.dispatch(ctx, p)
}

// PushEvent records a custom event.
func (a *API) PushEvent(ctx context.Context, name string, opts ...PushOption) {
	po := a.pushOptions(opts)

	p := telemetry.Event{
		Name:       name,
		Domain:     po.domain,
		Attributes: po.attributes,
		Timestamp:  po.timestamp,
		Trace:      a.traceContext(ctx, po),
	}
	if a.isDuplicate(p, po.skipDedupe) {
		a.log.Debug("skipping duplicate event", slog.String("event", name))
		return
	}

	a.dispatch(ctx, p)
}

// PushMeasurement records a set of named values measured together.
func (a *API) PushMeasurement(ctx context.Context, measurementType string, values map[string]float64, opts ...PushOption) {
	po := a.pushOptions(opts)

	p := telemetry.Measurement{
		Type:      measurementType,
		Values:    values,
		Context:   po.context,
		Timestamp: po.timestamp,
		Trace:     a.traceContext(ctx, po),
	}
	if a.isDuplicate(p, po.skipDedupe) {
		a.log.Debug("skipping duplicate measurement", slog.String("type", measurementType))
		return
	}

	a.dispatch(ctx, p)
}

// PushException records a captured error with an explicit type, message
// and optional stacktrace.
func (a *API) PushException(ctx context.Context, exceptionType, value string, opts ...PushOption) {
	po := a.pushOptions(opts)

	p := telemetry.Exception{
		Type:       exceptionType,
		Value:      value,
		Stacktrace: po.stacktrace,
		Context:    po.context,
		Timestamp:  po.timestamp,
		Trace:      a.traceContext(ctx, po),
	}
	if a.isDuplicate(p, po.skipDedupe) {
		a.log.Debug("skipping duplicate exception", slog.String("type", exceptionType))
		return
	}

	p = a.trackFirstOccurrence(p)

	a.dispatch(ctx, p)
}

// PushError records a Go error as an exception. The deepest wrapped
// error is attached as the cause.
func (a *API) PushError(ctx context.Context, err error, opts ...PushOption) {
	if err == nil {
		return
	}

	po := a.pushOptions(opts)

	exceptionType := po.errType
	if exceptionType == "" {
		exceptionType = "Error"
	}

	pushCtx := po.context
	if cause := rootCause(err); cause != nil {
		if pushCtx == nil {
			pushCtx = make(map[string]string)
		} else {
			copied := make(map[string]string, len(pushCtx)+1)
			for k, v := range pushCtx {
				copied[k] = v
			}
			pushCtx = copied
		}
		pushCtx["cause"] = cause.Error()
	}

	p := telemetry.Exception{
		Type:       exceptionType,
		Value:      err.Error(),
		Stacktrace: po.stacktrace,
		Context:    pushCtx,
		Timestamp:  po.timestamp,
		Trace:      a.traceContext(ctx, po),
	}
	if a.isDuplicate(p, po.skipDedupe) {
		a.log.Debug("skipping duplicate error")
		return
	}

	p = a.trackFirstOccurrence(p)

	a.dispatch(ctx, p)
}

// PushTraces forwards an OTLP trace export request. Traces are never
// deduplicated or buffered by user actions.
func (a *API) PushTraces(ctx context.Context, traces telemetry.Traces) {
	item := telemetry.NewItem(traces, a.metas.Value())
	a.registry.Execute(ctx, item)
}

// rootCause unwraps err to the innermost error. It returns nil if err
// wraps nothing.
func rootCause(err error) error {
	cause := errors.Unwrap(err)
	if cause == nil {
		return nil
	}
	for {
		next := errors.Unwrap(cause)
		if next == nil {
			return cause
		}
		cause = next
	}
}

// dispatch snapshots the current meta and buffers the item onto the
// active user action if one still accepts items, otherwise it hands the
// item to the transports.
func (a *API) dispatch(ctx context.Context, p telemetry.Payload) {
	item := telemetry.NewItem(p, a.metas.Value())

	a.mu.Lock()
	action := a.action
	a.mu.Unlock()

	if action != nil && action.addItem(item) {
		return
	}

	a.registry.Execute(ctx, item)
}

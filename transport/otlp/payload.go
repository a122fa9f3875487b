// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlp

import (
	"encoding/hex"
	"log/slog"
	"sort"
	"time"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/z5labs/rum/internal/deepequal"
	"github.com/z5labs/rum/meta"
	"github.com/z5labs/rum/telemetry"
)

const defaultScopeName = "github.com/z5labs/rum"

// Payload accumulates items into OTLP log and trace export requests.
//
// Items are grouped by their meta snapshot: every distinct meta becomes
// one resource entry and items carrying a deeply equal meta append their
// records to that entry.
type Payload struct {
	log *slog.Logger

	metas        []meta.Meta
	resourceLogs []*logspb.ResourceLogs

	resourceSpans []*tracepb.ResourceSpans
}

// NewPayload initializes a [Payload]. Internal logs are written to h,
// which may be nil to discard them.
func NewPayload(h slog.Handler) *Payload {
	if h == nil {
		h = slog.DiscardHandler
	}
	return &Payload{
		log: slog.New(h),
	}
}

// AddResourceItem appends the item's records under the resource entry
// matching its meta, creating a new entry for a never before seen meta.
// Items of an unknown type are logged and skipped.
func (p *Payload) AddResourceItem(item telemetry.Item) {
	if traces, ok := item.Payload.(telemetry.Traces); ok {
		p.resourceSpans = append(p.resourceSpans, traces.ResourceSpans...)
		return
	}

	records := logRecords(item)
	if len(records) == 0 {
		p.log.Error("unknown telemetry item type", slog.String("type", string(item.Type)))
		return
	}

	for i, m := range p.metas {
		if !deepequal.Equal(m, item.Meta) {
			continue
		}

		scope := p.resourceLogs[i].ScopeLogs[0]
		scope.LogRecords = append(scope.LogRecords, records...)
		return
	}

	p.metas = append(p.metas, item.Meta)
	p.resourceLogs = append(p.resourceLogs, &logspb.ResourceLogs{
		Resource: resourceFromMeta(item.Meta),
		ScopeLogs: []*logspb.ScopeLogs{
			{
				Scope:      scopeFromMeta(item.Meta),
				LogRecords: records,
			},
		},
	})
}

// HasLogs reports whether any log family records were accumulated.
func (p *Payload) HasLogs() bool {
	return len(p.resourceLogs) > 0
}

// HasTraces reports whether any trace payloads were accumulated.
func (p *Payload) HasTraces() bool {
	return len(p.resourceSpans) > 0
}

// LogsRequest returns the accumulated log family records as an OTLP
// export request.
func (p *Payload) LogsRequest() *collogspb.ExportLogsServiceRequest {
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: p.resourceLogs,
	}
}

// TracesRequest returns the accumulated trace payloads as an OTLP export
// request.
func (p *Payload) TracesRequest() *coltracepb.ExportTraceServiceRequest {
	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: p.resourceSpans,
	}
}

func scopeFromMeta(m meta.Meta) *commonpb.InstrumentationScope {
	scope := &commonpb.InstrumentationScope{
		Name: defaultScopeName,
	}
	if m.SDK != nil {
		if m.SDK.Name != "" {
			scope.Name = m.SDK.Name
		}
		scope.Version = m.SDK.Version
	}
	return scope
}

func resourceFromMeta(m meta.Meta) *resourcepb.Resource {
	var attrs []*commonpb.KeyValue

	appendAttr := func(key, value string) {
		if value == "" {
			return
		}
		attrs = append(attrs, Attribute(key, value))
	}

	if m.App != nil {
		appendAttr(string(semconv.ServiceNameKey), m.App.Name)
		appendAttr(string(semconv.ServiceNamespaceKey), m.App.Namespace)
		appendAttr(string(semconv.ServiceVersionKey), m.App.Version)
		appendAttr(string(semconv.DeploymentEnvironmentKey), m.App.Environment)
		appendAttr("app.release", m.App.Release)
	}
	if m.SDK != nil {
		appendAttr(string(semconv.TelemetrySDKNameKey), m.SDK.Name)
		appendAttr(string(semconv.TelemetrySDKVersionKey), m.SDK.Version)
	}
	if m.Browser != nil {
		appendAttr("browser.name", m.Browser.Name)
		appendAttr("browser.version", m.Browser.Version)
		appendAttr(string(semconv.BrowserPlatformKey), m.Browser.OS)
		appendAttr(string(semconv.BrowserLanguageKey), m.Browser.Language)
		appendAttr(string(semconv.UserAgentOriginalKey), m.Browser.UserAgent)
		if m.Browser.Mobile {
			attrs = append(attrs, Attribute(string(semconv.BrowserMobileKey), true))
		}
	}

	return &resourcepb.Resource{
		Attributes: attrs,
	}
}

// metaAttributes are the per record attributes shared by every signal
// under one resource entry.
func metaAttributes(m meta.Meta) []*commonpb.KeyValue {
	var attrs []*commonpb.KeyValue

	add := func(key string, v any) {
		kv := Attribute(key, v)
		if kv == nil {
			return
		}
		attrs = append(attrs, kv)
	}

	if m.Session != nil {
		add("session.id", m.Session.ID)
		if len(m.Session.Attributes) > 0 {
			add("session.attributes", m.Session.Attributes)
		}
	}
	if m.User != nil {
		add("user.id", m.User.ID)
		if m.User.Username != "" {
			add("user.name", m.User.Username)
		}
		if m.User.Email != "" {
			add("user.email", m.User.Email)
		}
		if len(m.User.Attributes) > 0 {
			add("user.attributes", m.User.Attributes)
		}
	}
	if m.View != nil {
		add("view.name", m.View.Name)
	}
	if m.Page != nil {
		if m.Page.ID != "" {
			add("page.id", m.Page.ID)
		}
		add("page.url", m.Page.URL)
		if len(m.Page.Attributes) > 0 {
			add("page.attributes", m.Page.Attributes)
		}
	}
	return attrs
}

func actionAttributes(a *telemetry.Action) []*commonpb.KeyValue {
	if a == nil {
		return nil
	}

	var attrs []*commonpb.KeyValue
	if a.Name != "" {
		attrs = append(attrs, Attribute("action.name", a.Name))
	}
	if a.ID != "" {
		attrs = append(attrs, Attribute("action.id", a.ID))
	}
	if a.ParentID != "" {
		attrs = append(attrs, Attribute("action.parent_id", a.ParentID))
	}
	return attrs
}

func logRecords(item telemetry.Item) []*logspb.LogRecord {
	switch p := item.Payload.(type) {
	case telemetry.Log:
		return []*logspb.LogRecord{logRecord(item.Meta, p)}
	case telemetry.Event:
		return []*logspb.LogRecord{eventRecord(item.Meta, p)}
	case telemetry.Exception:
		return []*logspb.LogRecord{exceptionRecord(item.Meta, p)}
	case telemetry.Measurement:
		return measurementRecords(item.Meta, p)
	default:
		return nil
	}
}

func logRecord(m meta.Meta, p telemetry.Log) *logspb.LogRecord {
	record := &logspb.LogRecord{
		TimeUnixNano: timeUnixNano(p.Timestamp),
		SeverityText: string(p.Level),
		Body: &commonpb.AnyValue{
			Value: &commonpb.AnyValue_StringValue{StringValue: p.Message},
		},
		Attributes: metaAttributes(m),
	}
	if len(p.Context) > 0 {
		record.Attributes = append(record.Attributes, Attribute("context", p.Context))
	}
	record.Attributes = append(record.Attributes, actionAttributes(p.Action)...)
	setTraceContext(record, p.Trace)
	return record
}

func eventRecord(m meta.Meta, p telemetry.Event) *logspb.LogRecord {
	record := &logspb.LogRecord{
		TimeUnixNano: timeUnixNano(p.Timestamp),
		Attributes:   metaAttributes(m),
	}
	record.Attributes = append(record.Attributes, Attribute("event.name", p.Name))
	if p.Domain != "" {
		record.Attributes = append(record.Attributes, Attribute("event.domain", p.Domain))
	}
	if len(p.Attributes) > 0 {
		record.Attributes = append(record.Attributes, Attribute("event.attributes", p.Attributes))
	}
	record.Attributes = append(record.Attributes, actionAttributes(p.Action)...)
	setTraceContext(record, p.Trace)
	return record
}

func exceptionRecord(m meta.Meta, p telemetry.Exception) *logspb.LogRecord {
	record := &logspb.LogRecord{
		TimeUnixNano: timeUnixNano(p.Timestamp),
		SeverityText: string(telemetry.LogLevelError),
		Attributes:   metaAttributes(m),
	}
	record.Attributes = append(record.Attributes,
		Attribute(string(semconv.ExceptionTypeKey), p.Type),
		Attribute(string(semconv.ExceptionMessageKey), p.Value),
	)
	if p.Stacktrace != nil && len(p.Stacktrace.Frames) > 0 {
		frames := make([]any, 0, len(p.Stacktrace.Frames))
		for _, frame := range p.Stacktrace.Frames {
			frames = append(frames, map[string]any{
				"filename": frame.Filename,
				"function": frame.Function,
				"lineno":   frame.Lineno,
				"colno":    frame.Colno,
			})
		}
		record.Attributes = append(record.Attributes, Attribute(string(semconv.ExceptionStacktraceKey), frames))
	}
	if len(p.Context) > 0 {
		record.Attributes = append(record.Attributes, Attribute("context", p.Context))
	}
	record.Attributes = append(record.Attributes, actionAttributes(p.Action)...)
	setTraceContext(record, p.Trace)
	return record
}

// measurementRecords emits one record per measured value so each value
// stays individually queryable.
func measurementRecords(m meta.Meta, p telemetry.Measurement) []*logspb.LogRecord {
	records := make([]*logspb.LogRecord, 0, len(p.Values))
	for _, name := range sortedKeys(p.Values) {
		record := &logspb.LogRecord{
			TimeUnixNano: timeUnixNano(p.Timestamp),
			Attributes:   metaAttributes(m),
		}
		record.Attributes = append(record.Attributes,
			Attribute("measurement.type", p.Type),
			Attribute("measurement.name", name),
			&commonpb.KeyValue{
				Key: "measurement.value",
				Value: &commonpb.AnyValue{
					Value: &commonpb.AnyValue_DoubleValue{DoubleValue: p.Values[name]},
				},
			},
		)
		if len(p.Context) > 0 {
			record.Attributes = append(record.Attributes, Attribute("context", p.Context))
		}
		record.Attributes = append(record.Attributes, actionAttributes(p.Action)...)
		setTraceContext(record, p.Trace)
		records = append(records, record)
	}
	return records
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setTraceContext(record *logspb.LogRecord, tc *telemetry.TraceContext) {
	if tc == nil {
		return
	}

	traceID, err := hex.DecodeString(tc.TraceID)
	if err == nil && len(traceID) == 16 {
		record.TraceId = traceID
	}

	spanID, err := hex.DecodeString(tc.SpanID)
	if err == nil && len(spanID) == 8 {
		record.SpanId = spanID
	}
}

func timeUnixNano(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otlp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/z5labs/rum/meta"
	"github.com/z5labs/rum/telemetry"
)

func TestPayload_AddResourceItem(t *testing.T) {
	t.Run("will share one resource entry", func(t *testing.T) {
		t.Run("if two items carry deeply equal metas", func(t *testing.T) {
			metaA := meta.Meta{
				App:     &meta.App{Name: "test"},
				Session: &meta.Session{ID: "abc"},
			}
			metaB := meta.Meta{
				App:     &meta.App{Name: "test"},
				Session: &meta.Session{ID: "abc"},
			}

			p := NewPayload(nil)
			p.AddResourceItem(telemetry.NewItem(telemetry.Log{Message: "one"}, metaA))
			p.AddResourceItem(telemetry.NewItem(telemetry.Log{Message: "two"}, metaB))

			req := p.LogsRequest()
			if !assert.Len(t, req.ResourceLogs, 1) {
				return
			}

			scopes := req.ResourceLogs[0].ScopeLogs
			if !assert.Len(t, scopes, 1) {
				return
			}
			if !assert.Len(t, scopes[0].LogRecords, 2) {
				return
			}
		})
	})

	t.Run("will create a new resource entry", func(t *testing.T) {
		t.Run("if an item carries a never before seen meta", func(t *testing.T) {
			metaA := meta.Meta{Session: &meta.Session{ID: "abc"}}
			metaB := meta.Meta{Session: &meta.Session{ID: "xyz"}}

			p := NewPayload(nil)
			p.AddResourceItem(telemetry.NewItem(telemetry.Log{Message: "one"}, metaA))
			p.AddResourceItem(telemetry.NewItem(telemetry.Log{Message: "two"}, metaB))

			req := p.LogsRequest()
			if !assert.Len(t, req.ResourceLogs, 2) {
				return
			}
		})
	})

	t.Run("will accumulate trace payloads separately", func(t *testing.T) {
		t.Run("if an item contains resource spans", func(t *testing.T) {
			p := NewPayload(nil)
			p.AddResourceItem(telemetry.NewItem(telemetry.Traces{
				ResourceSpans: []*tracepb.ResourceSpans{{}},
			}, meta.Meta{}))

			if !assert.False(t, p.HasLogs()) {
				return
			}
			if !assert.True(t, p.HasTraces()) {
				return
			}
			if !assert.Len(t, p.TracesRequest().ResourceSpans, 1) {
				return
			}
		})
	})

	t.Run("will set resource attributes from meta", func(t *testing.T) {
		t.Run("if app meta is present", func(t *testing.T) {
			m := meta.Meta{
				App: &meta.App{
					Name:        "shop",
					Version:     "1.2.3",
					Environment: "prod",
				},
			}

			p := NewPayload(nil)
			p.AddResourceItem(telemetry.NewItem(telemetry.Log{Message: "hello"}, m))

			req := p.LogsRequest()
			if !assert.Len(t, req.ResourceLogs, 1) {
				return
			}

			attrs := make(map[string]string)
			for _, kv := range req.ResourceLogs[0].Resource.Attributes {
				attrs[kv.Key] = kv.Value.GetStringValue()
			}

			if !assert.Equal(t, "shop", attrs[string(semconv.ServiceNameKey)]) {
				return
			}
			if !assert.Equal(t, "1.2.3", attrs[string(semconv.ServiceVersionKey)]) {
				return
			}
			if !assert.Equal(t, "prod", attrs[string(semconv.DeploymentEnvironmentKey)]) {
				return
			}
		})
	})
}

func TestLogRecords(t *testing.T) {
	ts := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	t.Run("will set body and severity", func(t *testing.T) {
		t.Run("if the payload is a log", func(t *testing.T) {
			records := logRecords(telemetry.NewItem(telemetry.Log{
				Message:   "hello",
				Level:     telemetry.LogLevelWarn,
				Timestamp: ts,
			}, meta.Meta{}))

			if !assert.Len(t, records, 1) {
				return
			}
			if !assert.Equal(t, "hello", records[0].Body.GetStringValue()) {
				return
			}
			if !assert.Equal(t, "warn", records[0].SeverityText) {
				return
			}
			if !assert.Equal(t, uint64(ts.UnixNano()), records[0].TimeUnixNano) {
				return
			}
		})
	})

	t.Run("will emit one record per value", func(t *testing.T) {
		t.Run("if the payload is a measurement", func(t *testing.T) {
			records := logRecords(telemetry.NewItem(telemetry.Measurement{
				Type: telemetry.MeasurementTypeWebVitals,
				Values: map[string]float64{
					"cls": 0.1,
					"lcp": 2500,
				},
				Timestamp: ts,
			}, meta.Meta{}))

			if !assert.Len(t, records, 2) {
				return
			}

			names := make([]string, 0, 2)
			for _, record := range records {
				for _, kv := range record.Attributes {
					if kv.Key == "measurement.name" {
						names = append(names, kv.Value.GetStringValue())
					}
				}
			}
			if !assert.Equal(t, []string{"cls", "lcp"}, names) {
				return
			}
		})
	})

	t.Run("will set the trace context", func(t *testing.T) {
		t.Run("if the payload carries one", func(t *testing.T) {
			records := logRecords(telemetry.NewItem(telemetry.Log{
				Message: "hello",
				Trace: &telemetry.TraceContext{
					TraceID: "0123456789abcdef0123456789abcdef",
					SpanID:  "0123456789abcdef",
				},
			}, meta.Meta{}))

			if !assert.Len(t, records, 1) {
				return
			}
			if !assert.Len(t, records[0].TraceId, 16) {
				return
			}
			if !assert.Len(t, records[0].SpanId, 8) {
				return
			}
		})
	})

	t.Run("will return no records", func(t *testing.T) {
		t.Run("if the payload type is unknown", func(t *testing.T) {
			records := logRecords(telemetry.Item{})

			if !assert.Empty(t, records) {
				return
			}
		})
	})
}

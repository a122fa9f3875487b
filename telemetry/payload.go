// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"time"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

// LogLevel is the severity of a pushed log line.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelLog   LogLevel = "log"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// TraceContext links a telemetry item to the distributed trace that was
// active when the item was created.
type TraceContext struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
}

// Log is the payload of a pushed log line.
type Log struct {
	Message   string            `json:"message"`
	Level     LogLevel          `json:"level"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Trace     *TraceContext     `json:"trace,omitempty"`
	Action    *Action           `json:"action,omitempty"`
}

// ItemType implements the [Payload] interface.
func (Log) ItemType() ItemType { return ItemTypeLog }

// Event is the payload of a pushed custom event.
type Event struct {
	Name       string            `json:"name"`
	Domain     string            `json:"domain,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Trace      *TraceContext     `json:"trace,omitempty"`
	Action     *Action           `json:"action,omitempty"`
}

// ItemType implements the [Payload] interface.
func (Event) ItemType() ItemType { return ItemTypeEvent }

// MeasurementTypeWebVitals marks browser performance measurements. They
// are never tagged with user actions since they describe the page, not
// the interaction.
const MeasurementTypeWebVitals = "web-vitals"

// Measurement is the payload of a pushed measurement.
type Measurement struct {
	Type      string             `json:"type"`
	Values    map[string]float64 `json:"values"`
	Context   map[string]string  `json:"context,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Trace     *TraceContext      `json:"trace,omitempty"`
	Action    *Action            `json:"action,omitempty"`
}

// ItemType implements the [Payload] interface.
func (Measurement) ItemType() ItemType { return ItemTypeMeasurement }

// StackFrame is a single frame of a captured exception stacktrace.
type StackFrame struct {
	Filename string `json:"filename,omitempty"`
	Function string `json:"function,omitempty"`
	Lineno   int    `json:"lineno,omitempty"`
	Colno    int    `json:"colno,omitempty"`
}

// Stacktrace holds the parsed frames of a captured exception.
type Stacktrace struct {
	Frames []StackFrame `json:"frames"`
}

// Exception is the payload of a captured error.
type Exception struct {
	Type       string            `json:"type"`
	Value      string            `json:"value"`
	Stacktrace *Stacktrace       `json:"stacktrace,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Trace      *TraceContext     `json:"trace,omitempty"`
	Action     *Action           `json:"action,omitempty"`
}

// ItemType implements the [Payload] interface.
func (Exception) ItemType() ItemType { return ItemTypeException }

// Traces is the payload of a pushed OTLP trace export request.
type Traces struct {
	ResourceSpans []*tracepb.ResourceSpans `json:"resourceSpans"`
}

// ItemType implements the [Payload] interface.
func (Traces) ItemType() ItemType { return ItemTypeTrace }

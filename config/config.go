// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config defines the declarative configuration of the telemetry
// agent.
package config

import (
	"time"
)

// App identifies the monitored application.
type App struct {
	Name        string `config:"name"`
	Namespace   string `config:"namespace"`
	Version     string `config:"version"`
	Environment string `config:"environment"`
	Release     string `config:"release"`
}

// TransportType
type TransportType string

const (
	HTTPTransportType    TransportType = "http"
	OTLPTransportType    TransportType = "otlp"
	ConsoleTransportType TransportType = "console"
)

// Collector is the endpoint of the plain JSON collector.
type Collector struct {
	URL     string            `config:"url"`
	APIKey  string            `config:"api_key"`
	Headers map[string]string `config:"headers"`
}

// OTLP are the endpoints of an OpenTelemetry collector. Either url may
// be empty to disable that signal family.
type OTLP struct {
	LogsURL   string            `config:"logs_url"`
	TracesURL string            `config:"traces_url"`
	APIKey    string            `config:"api_key"`
	Headers   map[string]string `config:"headers"`
}

// Transport selects and configures one delivery mechanism.
type Transport struct {
	Type      TransportType `config:"type"`
	Collector Collector     `config:"collector"`
	OTLP      OTLP          `config:"otlp"`
}

// Batching configures how items are accumulated before delivery.
type Batching struct {
	Disabled    bool          `config:"disabled"`
	ItemLimit   int           `config:"item_limit"`
	SendTimeout time.Duration `config:"send_timeout"`
}

// Dedupe configures duplicate signal filtering.
type Dedupe struct {
	Disabled bool `config:"disabled"`
}

// ErrorTracking configures first occurrence tracking of errors. Dir is
// where signature caches persist across restarts; when empty they are
// kept in memory only.
type ErrorTracking struct {
	Disabled      bool   `config:"disabled"`
	MaxSignatures int    `config:"max_signatures"`
	Dir           string `config:"dir"`
}

// Session configures the session meta attached to every item.
type Session struct {
	ID         string            `config:"id"`
	Attributes map[string]string `config:"attributes"`
}

// RUM is the top level configuration of the telemetry agent.
type RUM struct {
	App           App           `config:"app"`
	Session       Session       `config:"session"`
	Transports    []Transport   `config:"transports"`
	Batching      Batching      `config:"batching"`
	Dedupe        Dedupe        `config:"dedupe"`
	ErrorTracking ErrorTracking `config:"error_tracking"`
	EventDomain   string        `config:"event_domain"`
	IgnoreErrors  []string      `config:"ignore_errors"`
}

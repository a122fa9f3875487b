// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package meta models the contextual attributes attached to every
// telemetry item and the store which merges them from multiple providers.
package meta

// App identifies the instrumented application.
type App struct {
	Name        string `json:"name,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
	Version     string `json:"version,omitempty"`
	Environment string `json:"environment,omitempty"`
	Release     string `json:"release,omitempty"`
}

// User identifies the end user of the current session.
type User struct {
	ID         string            `json:"id,omitempty"`
	Username   string            `json:"username,omitempty"`
	Email      string            `json:"email,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Session identifies the current usage session.
type Session struct {
	ID         string            `json:"id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// View names the currently active logical view.
type View struct {
	Name string `json:"name,omitempty"`
}

// Page describes the currently displayed page.
type Page struct {
	ID         string            `json:"id,omitempty"`
	URL        string            `json:"url,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Browser describes the user agent the application runs in.
type Browser struct {
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
	OS        string `json:"os,omitempty"`
	Mobile    bool   `json:"mobile,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Language  string `json:"language,omitempty"`
}

// SDK describes this SDK.
type SDK struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Meta is a snapshot of all contextual namespaces at a point in time.
type Meta struct {
	App     *App     `json:"app,omitempty"`
	User    *User    `json:"user,omitempty"`
	Session *Session `json:"session,omitempty"`
	View    *View    `json:"view,omitempty"`
	Page    *Page    `json:"page,omitempty"`
	Browser *Browser `json:"browser,omitempty"`
	SDK     *SDK     `json:"sdk,omitempty"`
}

// merge assigns every non-nil namespace of other onto m.
func (m *Meta) merge(other Meta) {
	if other.App != nil {
		m.App = other.App
	}
	if other.User != nil {
		m.User = other.User
	}
	if other.Session != nil {
		m.Session = other.Session
	}
	if other.View != nil {
		m.View = other.View
	}
	if other.Page != nil {
		m.Page = other.Page
	}
	if other.Browser != nil {
		m.Browser = other.Browser
	}
	if other.SDK != nil {
		m.SDK = other.SDK
	}
}

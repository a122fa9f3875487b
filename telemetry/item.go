// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package telemetry defines the unit of telemetry moved through the
// pipeline, along with the per-signal payload types.
package telemetry

import (
	"github.com/z5labs/rum/meta"
)

// ItemType discriminates the payload carried by an [Item].
type ItemType string

const (
	ItemTypeLog         ItemType = "log"
	ItemTypeEvent       ItemType = "event"
	ItemTypeMeasurement ItemType = "measurement"
	ItemTypeException   ItemType = "exception"
	ItemTypeTrace       ItemType = "trace"
)

// Payload is implemented by all per-signal payload types.
type Payload interface {
	ItemType() ItemType
}

// Item is the unit of telemetry. It is immutable once created, except
// that a copy carrying a user action tag may be derived via [Item.WithAction].
type Item struct {
	Type    ItemType
	Payload Payload
	Meta    meta.Meta
}

// NewItem snapshots the given meta and wraps the payload into an [Item].
func NewItem(p Payload, m meta.Meta) Item {
	return Item{
		Type:    p.ItemType(),
		Payload: p,
		Meta:    m,
	}
}

// Action correlates an item with the user action it occurred under.
//
// Items flushed out of an ended action carry ParentID and Name; the
// action summary event itself carries ID and Name.
type Action struct {
	ID       string `json:"id,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	Name     string `json:"name"`
}

// WithAction returns a copy of the item whose payload is tagged with the
// given action. Trace payloads carry no action field and are returned
// unchanged.
func (i Item) WithAction(a Action) Item {
	switch p := i.Payload.(type) {
	case Log:
		p.Action = &a
		i.Payload = p
	case Event:
		p.Action = &a
		i.Payload = p
	case Measurement:
		p.Action = &a
		i.Payload = p
	case Exception:
		p.Action = &a
		i.Payload = p
	}
	return i
}

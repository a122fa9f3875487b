// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package api

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/z5labs/rum/concurrent"
	"github.com/z5labs/rum/internal/jsonx"
	"github.com/z5labs/rum/telemetry"
)

// UserActionEventName is the name of the summary event emitted when a
// user action ends.
const UserActionEventName = "faro.user.action"

// DefaultHaltTimeout bounds how long a halted user action may stay open
// before it is ended automatically.
const DefaultHaltTimeout = 10 * time.Second

// Severity grades how important a user action is to the application.
type Severity string

const (
	SeverityTrivial  Severity = "trivial"
	SeverityNormal   Severity = "normal"
	SeverityCritical Severity = "critical"
)

type userActionState int

const (
	actionStarted userActionState = iota
	actionHalted
	actionEnded
	actionCancelled
)

// UserActionOptions are configurable parameters of a [UserAction].
type UserActionOptions struct {
	trigger     string
	severity    Severity
	attributes  map[string]any
	haltTimeout time.Duration
}

// UserActionOption sets a value on [UserActionOptions].
type UserActionOption interface {
	ApplyUserActionOption(*UserActionOptions)
}

type userActionOptionFunc func(*UserActionOptions)

func (f userActionOptionFunc) ApplyUserActionOption(uo *UserActionOptions) {
	f(uo)
}

// Trigger records what initiated the action, for example "click".
func Trigger(trigger string) UserActionOption {
	return userActionOptionFunc(func(uo *UserActionOptions) {
		uo.trigger = trigger
	})
}

// ActionSeverity grades the action. Defaults to [SeverityNormal].
func ActionSeverity(severity Severity) UserActionOption {
	return userActionOptionFunc(func(uo *UserActionOptions) {
		uo.severity = severity
	})
}

// ActionAttributes attaches arbitrary attributes to the action's summary
// event.
func ActionAttributes(attrs map[string]any) UserActionOption {
	return userActionOptionFunc(func(uo *UserActionOptions) {
		uo.attributes = attrs
	})
}

// HaltTimeout overrides [DefaultHaltTimeout].
func HaltTimeout(d time.Duration) UserActionOption {
	return userActionOptionFunc(func(uo *UserActionOptions) {
		uo.haltTimeout = d
	})
}

// UserAction groups the telemetry recorded while a user interaction is
// in flight. Items pushed during the action are buffered and, if the
// action completes, tagged with a reference to it before dispatch.
type UserAction struct {
	api *API

	id        string
	name      string
	trigger   string
	severity  Severity
	startTime time.Time

	attributes  map[string]any
	haltTimeout time.Duration

	buf *concurrent.Buffer[telemetry.Item]

	mu        sync.Mutex
	state     userActionState
	haltTimer *time.Timer
}

// StartUserAction begins a new user action. Only one action may be in
// flight at a time; starting another one returns nil with a warning.
func (a *API) StartUserAction(name string, opts ...UserActionOption) *UserAction {
	uo := &UserActionOptions{
		severity:    SeverityNormal,
		haltTimeout: DefaultHaltTimeout,
	}
	for _, opt := range opts {
		opt.ApplyUserActionOption(uo)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.action != nil && a.action.Active() {
		a.log.Warn(
			"user action is already in flight",
			slog.String("action", a.action.name),
		)
		return nil
	}

	action := &UserAction{
		api:         a,
		id:          uuid.NewString(),
		name:        name,
		trigger:     uo.trigger,
		severity:    uo.severity,
		startTime:   a.now(),
		attributes:  uo.attributes,
		haltTimeout: uo.haltTimeout,
		buf:         concurrent.NewBuffer[telemetry.Item](),
		state:       actionStarted,
	}
	a.action = action
	return action
}

// ActiveUserAction returns the user action currently in flight, or nil.
func (a *API) ActiveUserAction() *UserAction {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.action == nil || !a.action.Active() {
		return nil
	}
	return a.action
}

// ID returns the action's unique id.
func (ua *UserAction) ID() string {
	return ua.id
}

// Name returns the action's name.
func (ua *UserAction) Name() string {
	return ua.name
}

// Active reports whether the action still accepts items.
func (ua *UserAction) Active() bool {
	ua.mu.Lock()
	defer ua.mu.Unlock()

	return ua.state == actionStarted || ua.state == actionHalted
}

// addItem buffers an item while the action still accepts items. It
// reports false once the action finished, in which case the caller must
// dispatch the item itself. The state check and the append happen under
// the same lock [UserAction.finish] takes to mark the action done, so an
// item is never appended to a buffer that has already been drained.
func (ua *UserAction) addItem(item telemetry.Item) bool {
	ua.mu.Lock()
	defer ua.mu.Unlock()

	if ua.state != actionStarted && ua.state != actionHalted {
		return false
	}
	ua.buf.AddItem(item)
	return true
}

// Halt keeps the action open, for example while a request it triggered
// is still in flight, and schedules an automatic [UserAction.End] after
// the halt timeout.
func (ua *UserAction) Halt() {
	ua.mu.Lock()
	defer ua.mu.Unlock()

	if ua.state != actionStarted {
		return
	}
	ua.state = actionHalted

	ua.haltTimer = time.AfterFunc(ua.haltTimeout, func() {
		ua.End(context.Background())
	})
}

// End completes the action. All buffered items are dispatched carrying a
// reference to the action and a summary event, backdated to the action's
// start, is emitted.
func (ua *UserAction) End(ctx context.Context) {
	ua.finish(ctx, actionEnded)
}

// Cancel discards the action. Buffered items are dispatched without any
// action reference and no summary event is emitted.
func (ua *UserAction) Cancel(ctx context.Context) {
	ua.finish(ctx, actionCancelled)
}

func (ua *UserAction) finish(ctx context.Context, state userActionState) {
	ua.mu.Lock()
	if ua.state == actionEnded || ua.state == actionCancelled {
		ua.mu.Unlock()
		return
	}
	ua.state = state

	if ua.haltTimer != nil {
		ua.haltTimer.Stop()
		ua.haltTimer = nil
	}
	ua.mu.Unlock()

	ua.api.mu.Lock()
	if ua.api.action == ua {
		ua.api.action = nil
	}
	ua.api.mu.Unlock()

	endTime := ua.api.now()

	ended := state == actionEnded

	action := telemetry.Action{
		ParentID: ua.id,
		Name:     ua.name,
	}
	ua.buf.FlushBuffer(func(item telemetry.Item) {
		if ended && !ua.api.excluded(item) {
			item = item.WithAction(action)
		}
		ua.api.registry.Execute(ctx, item)
	})

	if !ended {
		return
	}
	ua.emitSummary(ctx, endTime)
}

// emitSummary publishes the action's summary event, backdated to the
// action's start time so it sorts before the items it groups.
func (ua *UserAction) emitSummary(ctx context.Context, endTime time.Time) {
	attrs := map[string]any{
		"userActionName":      ua.name,
		"userActionSeverity":  string(ua.severity),
		"userActionStartTime": strconv.FormatInt(ua.startTime.UnixMilli(), 10),
		"userActionEndTime":   strconv.FormatInt(endTime.UnixMilli(), 10),
		"userActionDuration":  strconv.FormatInt(endTime.Sub(ua.startTime).Milliseconds(), 10),
	}
	if ua.trigger != "" {
		attrs["userActionTrigger"] = ua.trigger
	}
	for k, v := range ua.attributes {
		attrs[k] = v
	}

	event := telemetry.Event{
		Name:       UserActionEventName,
		Domain:     ua.api.eventDomain,
		Attributes: jsonx.StringifyValues(attrs),
		Timestamp:  ua.startTime,
		Action: &telemetry.Action{
			ID:   ua.id,
			Name: ua.name,
		},
	}

	item := telemetry.NewItem(event, ua.api.metas.Value())
	ua.api.registry.Execute(ctx, item)
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package uniqueness

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/z5labs/rum/meta"
	"github.com/z5labs/rum/storage"
)

const (
	cacheVersion = 1

	// DefaultMaxSize is the default LRU capacity of the tracker.
	DefaultMaxSize = 500

	storageKeyPrefix = "com.grafana.faro.error-signatures."

	// pendingSessionID scopes entries recorded before the session meta
	// has been initialized.
	pendingSessionID = "__pending-initialization__"

	saveDebounce = 100 * time.Millisecond
)

type cacheEntry struct {
	Hash      uint64 `json:"hash"`
	Timestamp int64  `json:"timestamp"`
	LastSeen  int64  `json:"lastSeen"`
}

type signatureCache struct {
	Version int          `json:"version"`
	MaxSize int          `json:"maxSize"`
	Entries []cacheEntry `json:"entries"`
}

// TrackerOptions are configurable parameters of a [Tracker].
type TrackerOptions struct {
	maxSize int
	log     *slog.Logger
	now     func() time.Time
}

// TrackerOption sets a value on [TrackerOptions].
type TrackerOption interface {
	ApplyTrackerOption(*TrackerOptions)
}

type trackerOptionFunc func(*TrackerOptions)

func (f trackerOptionFunc) ApplyTrackerOption(to *TrackerOptions) {
	f(to)
}

// MaxSize overrides the LRU capacity. The default is [DefaultMaxSize].
func MaxSize(n int) TrackerOption {
	return trackerOptionFunc(func(to *TrackerOptions) {
		to.maxSize = n
	})
}

// LogHandler configures internal logging. By default all internal logs
// are discarded.
func LogHandler(h slog.Handler) TrackerOption {
	return trackerOptionFunc(func(to *TrackerOptions) {
		to.log = slog.New(h)
	})
}

// Tracker is a session-scoped LRU cache of error signature hashes,
// persisted through a [storage.Storage].
//
// Storage failures never propagate to callers: an unusable store simply
// disables the tracker and every error degrades to "unique".
type Tracker struct {
	metas *meta.Store
	store storage.Storage
	log   *slog.Logger
	now   func() time.Time

	mu            sync.Mutex
	cache         signatureCache
	sessionID     string
	disabled      bool
	saveScheduled bool
	saveTimer     *time.Timer

	sessionSub interface{ Unsubscribe() }
}

// NewTracker initializes a [Tracker] scoped to the session currently
// present in metas. A nil store disables the tracker entirely.
//
// The tracker subscribes to meta changes so it can follow session
// transitions; release the subscription with [Tracker.Close].
func NewTracker(metas *meta.Store, store storage.Storage, opts ...TrackerOption) *Tracker {
	to := &TrackerOptions{
		maxSize: DefaultMaxSize,
		log:     slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt.ApplyTrackerOption(to)
	}

	t := &Tracker{
		metas: metas,
		store: store,
		log:   to.log,
		now:   to.now,
	}

	t.sessionID = currentSessionID(metas)
	t.disabled = store == nil

	cache, ok := t.loadCache(t.storageKey())
	if !ok {
		cache = signatureCache{
			Version: cacheVersion,
			MaxSize: to.maxSize,
		}
	}
	t.cache = cache

	t.sessionSub = metas.Subscribe(t.onMetaChange)
	return t
}

// Close releases the meta subscription and writes any pending changes.
func (t *Tracker) Close() {
	if t.sessionSub != nil {
		t.sessionSub.Unsubscribe()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelScheduledSave()
	t.performSave()
}

// Disabled reports whether the tracker degraded to pass-through mode.
func (t *Tracker) Disabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.disabled
}

// Size returns the number of tracked signatures.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.cache.Entries)
}

// IsUnique reports whether hash has not been seen within the current
// session. A hit refreshes the entry's last-seen time and its LRU
// position. When the tracker is disabled every hash is unique.
func (t *Tracker) IsUnique(hash uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disabled {
		return true
	}

	idx := t.find(hash)
	if idx == -1 {
		return true
	}

	entry := t.cache.Entries[idx]
	entry.LastSeen = t.now().UnixMilli()
	t.moveToEnd(idx, entry)
	t.scheduleSave()

	return false
}

// MarkAsSeen records hash, evicting the least recently used entry if the
// cache is at capacity. If hash is already present only its last-seen
// time and LRU position are refreshed.
func (t *Tracker) MarkAsSeen(hash uint64) {
	t.MarkAsSeenAt(hash, t.now())
}

// MarkAsSeenAt is like [Tracker.MarkAsSeen] but preserves firstSeen as
// the recorded first occurrence time.
func (t *Tracker) MarkAsSeenAt(hash uint64, firstSeen time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disabled {
		return
	}

	now := t.now().UnixMilli()

	idx := t.find(hash)
	if idx != -1 {
		entry := t.cache.Entries[idx]
		entry.LastSeen = now
		t.moveToEnd(idx, entry)
		t.scheduleSave()
		return
	}

	if len(t.cache.Entries) >= t.cache.MaxSize {
		t.cache.Entries = t.cache.Entries[1:]
	}

	t.cache.Entries = append(t.cache.Entries, cacheEntry{
		Hash:      hash,
		Timestamp: firstSeen.UnixMilli(),
		LastSeen:  now,
	})
	t.scheduleSave()
}

// FirstSeen returns when hash was first recorded.
func (t *Tracker) FirstSeen(hash uint64) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disabled {
		return time.Time{}, false
	}

	idx := t.find(hash)
	if idx == -1 {
		return time.Time{}, false
	}
	return time.UnixMilli(t.cache.Entries[idx].Timestamp), true
}

// Clear drops all entries and persists immediately, bypassing the save
// debounce.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelScheduledSave()
	t.cache.Entries = nil
	t.performSave()
}

func (t *Tracker) find(hash uint64) int {
	for i, entry := range t.cache.Entries {
		if entry.Hash == hash {
			return i
		}
	}
	return -1
}

func (t *Tracker) moveToEnd(idx int, entry cacheEntry) {
	t.cache.Entries = append(t.cache.Entries[:idx], t.cache.Entries[idx+1:]...)
	t.cache.Entries = append(t.cache.Entries, entry)
}

func (t *Tracker) storageKey() string {
	if t.sessionID == "" {
		return storageKeyPrefix + pendingSessionID
	}
	return storageKeyPrefix + t.sessionID
}

// onMetaChange follows session transitions.
//
// real -> real: the previous session's persisted cache is deleted and a
// fresh cache is started, so uniqueness never leaks across sessions.
//
// pending -> real: a cache persisted under the real session id is loaded
// if present (page-reload-before-session-ready), otherwise entries
// accumulated under the pending id are migrated to the real id.
func (t *Tracker) onMetaChange(m meta.Meta) {
	sessionID := ""
	if m.Session != nil {
		sessionID = m.Session.ID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if sessionID == t.sessionID || sessionID == "" {
		return
	}

	prevID := t.sessionID
	prevKey := t.storageKey()
	t.sessionID = sessionID

	if t.disabled {
		return
	}

	if prevID != "" {
		t.removeStored(prevKey)
		t.cache.Entries = nil
		t.cancelScheduledSave()
		return
	}

	if persisted, ok := t.loadCache(t.storageKey()); ok {
		t.cache = persisted
		t.removeStored(prevKey)
		return
	}

	// keep pre-initialization entries, re-homed under the real id
	t.removeStored(prevKey)
	t.cancelScheduledSave()
	t.performSave()
}

func (t *Tracker) loadCache(key string) (signatureCache, bool) {
	if t.disabled {
		return signatureCache{}, false
	}

	stored, ok, err := t.store.GetItem(key)
	if err != nil {
		t.log.Warn("error uniqueness tracking disabled: storage unavailable", slog.Any("error", err))
		t.removeStored(key)
		t.disabled = true
		return signatureCache{}, false
	}
	if !ok {
		return signatureCache{}, false
	}

	var cache signatureCache
	err = json.Unmarshal([]byte(stored), &cache)
	if err != nil {
		t.log.Warn("error uniqueness cache corrupted, recreating", slog.Any("error", err))
		t.removeStored(key)
		return signatureCache{}, false
	}
	if cache.Version != cacheVersion || cache.MaxSize <= 0 {
		t.removeStored(key)
		return signatureCache{}, false
	}

	return cache, true
}

// scheduleSave coalesces rapid mutations into a single storage write.
// Callers must hold t.mu.
func (t *Tracker) scheduleSave() {
	if t.disabled || t.saveScheduled {
		return
	}

	t.saveScheduled = true
	t.saveTimer = time.AfterFunc(saveDebounce, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		t.saveScheduled = false
		t.performSave()
	})
}

// cancelScheduledSave stops any pending debounced save. Callers must hold t.mu.
func (t *Tracker) cancelScheduledSave() {
	if t.saveTimer != nil {
		t.saveTimer.Stop()
	}
	t.saveScheduled = false
}

// performSave writes the cache through to storage. Callers must hold t.mu.
func (t *Tracker) performSave() {
	if t.disabled {
		return
	}

	b, err := json.Marshal(t.cache)
	if err != nil {
		t.log.Warn("failed to encode error uniqueness cache", slog.Any("error", err))
		return
	}

	err = t.store.SetItem(t.storageKey(), string(b))
	if err != nil {
		t.log.Warn("error uniqueness tracking disabled: storage write failed", slog.Any("error", err))
		t.disabled = true
	}
}

func (t *Tracker) removeStored(key string) {
	err := t.store.RemoveItem(key)
	if err != nil {
		t.log.Warn("failed to remove persisted error uniqueness cache", slog.Any("error", err))
	}
}

func currentSessionID(metas *meta.Store) string {
	m := metas.Value()
	if m.Session == nil {
		return ""
	}
	return m.Session.ID
}

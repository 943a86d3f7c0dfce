// Package presence tracks which users are connected to the realtime channel.
//
// Presence is connection-scoped (one entry per socket) but reported
// identity-scoped: several tabs of the same user collapse to one name in a
// snapshot. Entries are refreshed by heartbeats and dropped on disconnect, on
// administrative force-disconnect, or by the Sweeper once their heartbeat is
// stale. Whenever an entry goes away the user's last-seen timestamp is
// written first.
//
// The entry map is guarded by a mutex that is never held across I/O. Steps
// that follow an I/O call re-check the entry they act on.
package presence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"crmrt/internal/metrics"
)

// LastSeenToucher records the last moment a user was confirmed present.
type LastSeenToucher interface {
	Touch(ctx context.Context, username string, at time.Time) error
}

// Publisher pushes a presence snapshot to every connected client.
type Publisher interface {
	PublishPresence(ctx context.Context, online []string)
}

// Entry is the tracked state of one connection.
type Entry struct {
	ConnID        string
	Username      string
	LastHeartbeat time.Time
}

type Tracker struct {
	mu      sync.Mutex
	entries map[string]Entry

	lastSeen  LastSeenToucher
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker returns an empty tracker. publisher may be nil.
func NewTracker(lastSeen LastSeenToucher, publisher Publisher, opts ...Option) *Tracker {
	t := &Tracker{
		entries:   make(map[string]Entry),
		lastSeen:  lastSeen,
		publisher: publisher,
		now:       time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Join registers connID for username, replacing any previous entry for that
// connection, then records last-seen and publishes a snapshot. The entry is
// tracked even if the last-seen write fails; that error is returned.
func (t *Tracker) Join(ctx context.Context, connID, username string) error {
	now := t.now()
	t.mu.Lock()
	t.entries[connID] = Entry{ConnID: connID, Username: username, LastHeartbeat: now}
	t.mu.Unlock()

	err := t.touch(ctx, username, now)
	t.publish(ctx)
	return err
}

// Heartbeat refreshes connID if it is tracked. Last-seen for username is
// recorded either way; an unknown connection is not an error.
func (t *Tracker) Heartbeat(ctx context.Context, connID, username string) error {
	now := t.now()
	t.mu.Lock()
	if e, ok := t.entries[connID]; ok {
		e.LastHeartbeat = now
		t.entries[connID] = e
	}
	t.mu.Unlock()

	return t.touch(ctx, username, now)
}

// Disconnect drops connID after recording its user's last-seen. A snapshot
// is published even when the connection was not tracked.
func (t *Tracker) Disconnect(ctx context.Context, connID string) error {
	t.mu.Lock()
	e, ok := t.entries[connID]
	t.mu.Unlock()

	var err error
	if ok {
		err = t.touch(ctx, e.Username, t.now())
		t.mu.Lock()
		delete(t.entries, connID)
		t.mu.Unlock()
	}
	t.publish(ctx)
	return err
}

// ForceDisconnect drops every connection of username and returns how many
// were removed. Other users' entries are untouched.
func (t *Tracker) ForceDisconnect(ctx context.Context, username string) (int, error) {
	err := t.touch(ctx, username, t.now())

	t.mu.Lock()
	removed := 0
	for id, e := range t.entries {
		if e.Username == username {
			delete(t.entries, id)
			removed++
		}
	}
	t.mu.Unlock()

	t.publish(ctx)
	return removed, err
}

// Snapshot returns the distinct usernames currently present, sorted.
func (t *Tracker) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() []string {
	seen := make(map[string]struct{}, len(t.entries))
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		if _, dup := seen[e.Username]; dup {
			continue
		}
		seen[e.Username] = struct{}{}
		out = append(out, e.Username)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the entry for connID.
func (t *Tracker) Lookup(connID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[connID]
	return e, ok
}

// Len is the number of tracked connections.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// stale returns the entries whose heartbeat is older than staleAfter at now.
func (t *Tracker) stale(now time.Time, staleAfter time.Duration) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Entry
	for _, e := range t.entries {
		if now.Sub(e.LastHeartbeat) > staleAfter {
			out = append(out, e)
		}
	}
	return out
}

// evictIfStale removes connID only if it is still stale now, so a heartbeat
// that arrived while its last-seen was being written keeps it alive.
func (t *Tracker) evictIfStale(connID string, staleAfter time.Duration) bool {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[connID]
	if !ok || now.Sub(e.LastHeartbeat) <= staleAfter {
		return false
	}
	delete(t.entries, connID)
	return true
}

func (t *Tracker) touch(ctx context.Context, username string, at time.Time) error {
	if t.lastSeen == nil {
		return nil
	}
	if err := t.lastSeen.Touch(ctx, username, at); err != nil {
		return fmt.Errorf("last seen for %q: %w", username, err)
	}
	return nil
}

func (t *Tracker) publish(ctx context.Context) {
	t.mu.Lock()
	online := t.snapshotLocked()
	conns := len(t.entries)
	t.mu.Unlock()

	t.metrics.SetPresence(conns, len(online))
	if t.publisher != nil {
		t.publisher.PublishPresence(ctx, online)
	}
}

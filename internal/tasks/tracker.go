package tasks

import (
	"sync"
	"time"

	"github.com/five82/lookout/internal/clock"
)

// DefaultMaxPendingAge bounds how long a local entry may wait for the server
// to acknowledge a search.
const DefaultMaxPendingAge = 10 * time.Second

// Tracker owns the searches the user asked for that the server has not yet
// reported. It is safe for concurrent use.
type Tracker struct {
	clock  clock.Clock
	maxAge time.Duration

	mu      sync.Mutex
	pending map[Key]time.Time
}

// NewTracker returns a Tracker using c for timestamps. A non-positive maxAge
// uses DefaultMaxPendingAge.
func NewTracker(c clock.Clock, maxAge time.Duration) *Tracker {
	if c == nil {
		c = clock.Real()
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxPendingAge
	}
	return &Tracker{clock: c, maxAge: maxAge, pending: make(map[Key]time.Time)}
}

// MarkRequested records a local entry for key unless one already exists. It
// reports whether a new entry was created.
func (t *Tracker) MarkRequested(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[key]; ok {
		return false
	}
	t.pending[key] = t.clock.Now()
	return true
}

// Rollback drops the local entry for key, if any.
func (t *Tracker) Rollback(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, key)
}

// Status resolves the displayed state of key. A local entry always reads as
// queued; otherwise the remote snapshot decides, active before pending.
func (t *Tracker) Status(key Key, snap Snapshot) Status {
	t.mu.Lock()
	_, local := t.pending[key]
	t.mu.Unlock()

	switch {
	case local:
		return StatusQueued
	case snap.IsActive(key):
		return StatusSearching
	case snap.IsPending(key):
		return StatusQueued
	default:
		return StatusIdle
	}
}

// Prune removes entries that are at least maxAge old or that the server now
// reports in either list. It returns the number of entries removed.
func (t *Tracker) Prune(snap Snapshot, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, queuedAt := range t.pending {
		if now.Sub(queuedAt) >= t.maxAge || snap.Contains(key) {
			delete(t.pending, key)
			removed++
		}
	}
	return removed
}

// QueuedAt returns when the local entry for key was created.
func (t *Tracker) QueuedAt(key Key) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.pending[key]
	return at, ok
}

// Len returns the number of local entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// MaxAge returns the configured entry lifetime.
func (t *Tracker) MaxAge() time.Duration {
	return t.maxAge
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/lookout/internal/clock"
	"github.com/five82/lookout/internal/logging"
	"github.com/five82/lookout/internal/sportarr"
	"github.com/five82/lookout/internal/state"
	"github.com/five82/lookout/internal/tasks"
	"github.com/five82/lookout/internal/transition"
)

// ErrSearchOutstanding is returned when a search for the key is already queued
// locally or on the server.
var ErrSearchOutstanding = errors.New("search already outstanding")

// Options configure an Engine. Store and Searcher are required for
// RequestSearch; everything else has defaults.
type Options struct {
	Clock         clock.Clock
	Store         *state.Store
	Searcher      sportarr.Searcher
	MaxPendingAge time.Duration
	RefreshSettle time.Duration
	Logger        *log.Logger
}

// Engine ties local search intent, the polled remote state and the download
// transition detector together behind the calls the presentation layer makes.
type Engine struct {
	clock    clock.Clock
	store    *state.Store
	searcher sportarr.Searcher
	tracker  *tasks.Tracker
	detector *transition.Detector
	logger   *log.Logger
}

// New builds an Engine for one session.
func New(opts Options) *Engine {
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	store := opts.Store
	if store == nil {
		store = state.NewStore(c.Now)
	}
	settle := opts.RefreshSettle
	if settle <= 0 {
		settle = transition.DefaultSettleDelay
	}
	return &Engine{
		clock:    c,
		store:    store,
		searcher: opts.Searcher,
		tracker:  tasks.NewTracker(c, opts.MaxPendingAge),
		detector: transition.NewDetector(c, settle),
		logger:   logging.Component(opts.Logger, "engine"),
	}
}

// Status returns the displayed status of key.
func (e *Engine) Status(key tasks.Key) tasks.Status {
	return e.tracker.Status(key, e.store.SearchQueue())
}

// QueuedAt reports when a still-unconfirmed local request for key was made.
func (e *Engine) QueuedAt(key tasks.Key) (time.Time, bool) {
	return e.tracker.QueuedAt(key)
}

// OnSearchRequested records local intent for key. Callers that send the
// search themselves call it right before sending.
func (e *Engine) OnSearchRequested(key tasks.Key) {
	if e.tracker.MarkRequested(key) {
		e.logger.Debug("search requested", "key", key)
	}
}

// OnSearchFailed drops local intent for key after a failed send.
func (e *Engine) OnSearchFailed(key tasks.Key) {
	e.tracker.Rollback(key)
	e.logger.Debug("search rolled back", "key", key)
}

// RequestSearch issues a search for key unless one is already outstanding.
// It is BeginSearch followed by SendSearch.
func (e *Engine) RequestSearch(ctx context.Context, key tasks.Key) error {
	if err := e.BeginSearch(key); err != nil {
		return err
	}
	return e.SendSearch(ctx, key)
}

// BeginSearch applies the status guard and records local intent for key, so
// the key reads as queued before any network call is made.
func (e *Engine) BeginSearch(key tasks.Key) error {
	if e.searcher == nil {
		return fmt.Errorf("engine has no searcher")
	}
	if status := e.Status(key); status.Outstanding() {
		return fmt.Errorf("%s is %s: %w", key, status, ErrSearchOutstanding)
	}
	if !e.tracker.MarkRequested(key) {
		return fmt.Errorf("%s is %s: %w", key, tasks.StatusQueued, ErrSearchOutstanding)
	}
	e.logger.Debug("search requested", "key", key)
	return nil
}

// SendSearch sends the search recorded by BeginSearch. The send must finish
// within the local entry's remaining lifetime: once the entry could expire,
// the guard would let a second request through, so a send still waiting
// (for example on the client's rate limiter) is cancelled instead. Any
// failure rolls the entry back and returns the wrapped error.
func (e *Engine) SendSearch(ctx context.Context, key tasks.Key) error {
	if e.searcher == nil {
		e.tracker.Rollback(key)
		return fmt.Errorf("engine has no searcher")
	}
	queuedAt, ok := e.tracker.QueuedAt(key)
	if !ok {
		if status := e.Status(key); status.Outstanding() {
			return fmt.Errorf("%s is %s: %w", key, status, ErrSearchOutstanding)
		}
		return fmt.Errorf("%s has no pending request", key)
	}
	remaining := queuedAt.Add(e.tracker.MaxAge()).Sub(e.clock.Now())
	if remaining <= 0 {
		e.tracker.Rollback(key)
		return fmt.Errorf("issue search: %s expired before sending", key)
	}
	ctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	if err := e.searcher.IssueSearch(ctx, key); err != nil {
		e.tracker.Rollback(key)
		e.logger.Warn("search request failed", "key", key, "err", err)
		return fmt.Errorf("issue search: %w", err)
	}
	e.logger.Info("search sent", "key", key)
	return nil
}

// SubscribeToRefresh registers fn to run after downloads complete. The
// returned func removes the subscription.
func (e *Engine) SubscribeToRefresh(fn func()) (unsubscribe func()) {
	return e.detector.Subscribe(fn)
}

// ApplySearchQueue records a search queue poll result and, on success, prunes
// local entries against the fresh snapshot.
func (e *Engine) ApplySearchQueue(snap tasks.Snapshot, err error) {
	e.store.UpdateSearchQueue(snap, err)
	if err != nil {
		return
	}
	e.Prune()
}

// ApplyDownloads records a download queue poll result and, on success, feeds
// it to the transition detector. It returns the ids that completed.
func (e *Engine) ApplyDownloads(items []sportarr.DownloadItem, err error) []int64 {
	e.store.UpdateDownloads(items, err)
	if err != nil {
		return nil
	}
	completed := e.detector.Observe(items)
	if len(completed) > 0 {
		e.logger.Info("downloads completed", "ids", completed)
	}
	return completed
}

// Prune expires local entries against the latest search queue snapshot.
func (e *Engine) Prune() int {
	removed := e.tracker.Prune(e.store.SearchQueue(), e.clock.Now())
	if removed > 0 {
		e.logger.Debug("pruned local searches", "removed", removed, "remaining", e.tracker.Len())
	}
	return removed
}

// Snapshot returns the latest polled state.
func (e *Engine) Snapshot() state.Snapshot {
	return e.store.Snapshot()
}

// LocalPending returns how many searches await server confirmation.
func (e *Engine) LocalPending() int {
	return e.tracker.Len()
}

// Close cancels any scheduled refresh signal.
func (e *Engine) Close() {
	e.detector.Stop()
}

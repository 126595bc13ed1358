// Package transition detects downloads that finished between two polls of the
// download queue and emits a debounced refresh signal.
//
// A finished download shows up in one of two ways: it drops out of the feed
// after post-processing removed it, or it stays and flips to imported. Both
// are diffed by id against the previous snapshot only. Ids reused by the
// server for an unrelated download cannot be told apart from the original;
// that is a known gap until the feed exposes a stable identifier.
package transition

import (
	"slices"
	"sync"
	"time"

	"github.com/five82/lookout/internal/clock"
	"github.com/five82/lookout/internal/sportarr"
)

// DefaultSettleDelay gives the server time to finish updating event data
// before subscribers re-fetch it.
const DefaultSettleDelay = 500 * time.Millisecond

// Completed returns the ids of items that finished between prev and curr,
// sorted ascending.
func Completed(prev, curr map[int64]sportarr.DownloadStatus) []int64 {
	var ids []int64
	for id, status := range prev {
		if _, still := curr[id]; !still && status.PostProcessing() {
			ids = append(ids, id)
		}
	}
	for id, status := range curr {
		if status != sportarr.DownloadStatusImported {
			continue
		}
		if before, ok := prev[id]; !ok || before != sportarr.DownloadStatusImported {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Detector keeps the previous download snapshot and notifies subscribers when
// a poll shows completed items. It is safe for concurrent use.
type Detector struct {
	clock  clock.Clock
	settle time.Duration

	mu      sync.Mutex
	prev    map[int64]sportarr.DownloadStatus
	primed  bool
	timer   clock.Timer
	subs    map[int]func()
	nextSub int
}

// NewDetector returns a Detector. A negative settle uses DefaultSettleDelay;
// zero fires the signal on the next clock callback.
func NewDetector(c clock.Clock, settle time.Duration) *Detector {
	if c == nil {
		c = clock.Real()
	}
	if settle < 0 {
		settle = DefaultSettleDelay
	}
	return &Detector{clock: c, settle: settle, subs: make(map[int]func())}
}

// Observe diffs items against the previous snapshot and returns the ids that
// completed. The first snapshot only primes the detector. When anything
// completed a single refresh signal is scheduled after the settle delay; if
// one is already scheduled the new completions fold into it.
func (d *Detector) Observe(items []sportarr.DownloadItem) []int64 {
	curr := make(map[int64]sportarr.DownloadStatus, len(items))
	for _, item := range items {
		curr[item.ID] = item.Status
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.primed {
		d.prev = curr
		d.primed = true
		return nil
	}
	completed := Completed(d.prev, curr)
	d.prev = curr
	if len(completed) > 0 && d.timer == nil {
		d.timer = d.clock.AfterFunc(d.settle, d.fire)
	}
	return completed
}

// Subscribe registers fn to run on every refresh signal. The returned func
// removes the subscription.
func (d *Detector) Subscribe(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
		})
	}
}

// Stop cancels a pending refresh signal.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Detector) fire() {
	d.mu.Lock()
	d.timer = nil
	ids := make([]int, 0, len(d.subs))
	for id := range d.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, d.subs[id])
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

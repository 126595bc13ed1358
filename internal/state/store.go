package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/lookout/internal/sportarr"
	"github.com/five82/lookout/internal/tasks"
)

// FeedStatus describes the health of one polled source.
type FeedStatus struct {
	HasData             bool
	LastUpdated         time.Time // last poll attempt, success or failure
	LastSuccess         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the source has been unreachable for multiple polls.
func (f FeedStatus) IsOffline() bool {
	return f.ConsecutiveFailures >= 2
}

// Snapshot represents the latest data available to consumers.
type Snapshot struct {
	SearchQueue   tasks.Snapshot
	Downloads     []sportarr.DownloadItem
	SearchFeed    FeedStatus
	DownloadsFeed FeedStatus
}

// IsOffline returns true when either source is offline.
func (s Snapshot) IsOffline() bool {
	return s.SearchFeed.IsOffline() || s.DownloadsFeed.IsOffline()
}

// LastError returns the most recent error of either feed, search feed first.
func (s Snapshot) LastError() error {
	if s.SearchFeed.LastError != nil {
		return s.SearchFeed.LastError
	}
	return s.DownloadsFeed.LastError
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// NewStore returns a Store stamping updates with now. A nil now uses time.Now.
func NewStore(now func() time.Time) *Store {
	return &Store{now: now}
}

func (s *Store) timestamp() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// UpdateSearchQueue replaces the search queue snapshot. When err is non-nil
// the previous snapshot is kept but the error is recorded.
func (s *Store) UpdateSearchQueue(snap tasks.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timestamp()
	if recordFailure(&s.snapshot.SearchFeed, err, now) {
		return
	}
	s.snapshot.SearchQueue = snap
}

// UpdateDownloads replaces the download queue. When err is non-nil the
// previous items are kept but the error is recorded.
func (s *Store) UpdateDownloads(items []sportarr.DownloadItem, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timestamp()
	if recordFailure(&s.snapshot.DownloadsFeed, err, now) {
		return
	}
	s.snapshot.Downloads = cloneDownloads(items)
}

// SearchQueue returns the latest search queue snapshot without copying the
// download list.
func (s *Store) SearchQueue() tasks.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.SearchQueue
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Downloads = cloneDownloads(s.snapshot.Downloads)
	snap.SearchFeed.LastError = cloneErr(s.snapshot.SearchFeed.LastError)
	snap.DownloadsFeed.LastError = cloneErr(s.snapshot.DownloadsFeed.LastError)
	return snap
}

// recordFailure updates feed bookkeeping and reports whether err was set.
func recordFailure(feed *FeedStatus, err error, now time.Time) bool {
	feed.LastUpdated = now
	if err != nil {
		feed.LastError = err
		feed.ConsecutiveFailures++
		return true
	}
	feed.HasData = true
	feed.LastSuccess = now
	feed.LastError = nil
	feed.ConsecutiveFailures = 0
	return false
}

func cloneErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w", err)
}

func cloneDownloads(items []sportarr.DownloadItem) []sportarr.DownloadItem {
	if len(items) == 0 {
		return nil
	}
	dup := make([]sportarr.DownloadItem, len(items))
	copy(dup, items)
	return dup
}

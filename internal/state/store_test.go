package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/lookout/internal/sportarr"
	"github.com/five82/lookout/internal/tasks"
)

func TestStore_UpdateAndSnapshotClone(t *testing.T) {
	var s Store

	queue := tasks.NewSnapshot([]tasks.Key{tasks.EventKey(1)}, nil)
	downloads := []sportarr.DownloadItem{{ID: 1}, {ID: 2}}

	before := time.Now()
	s.UpdateSearchQueue(queue, nil)
	s.UpdateDownloads(downloads, nil)

	snap := s.Snapshot()
	if !snap.SearchQueue.IsPending(tasks.EventKey(1)) {
		t.Fatalf("snapshot search queue missing pending key")
	}
	if !snap.SearchFeed.HasData || !snap.DownloadsFeed.HasData {
		t.Fatalf("HasData = %v/%v, want true/true", snap.SearchFeed.HasData, snap.DownloadsFeed.HasData)
	}
	if len(snap.Downloads) != 2 || snap.Downloads[0].ID != 1 {
		t.Fatalf("snapshot downloads = %#v, want 2 items", snap.Downloads)
	}
	if snap.SearchFeed.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.SearchFeed.LastUpdated, before)
	}
	if snap.LastError() != nil {
		t.Fatalf("LastError = %v, want nil", snap.LastError())
	}

	// Neither the input nor the returned slice may alias the stored one.
	downloads[0].ID = 500
	snap.Downloads[1].ID = 999
	snap2 := s.Snapshot()
	if snap2.Downloads[0].ID != 1 || snap2.Downloads[1].ID != 2 {
		t.Fatalf("Snapshot should clone downloads; got %#v", snap2.Downloads)
	}
}

func TestStore_UpdateErrorKeepsPreviousData(t *testing.T) {
	var s Store

	s.UpdateSearchQueue(tasks.NewSnapshot(nil, []tasks.Key{tasks.EventKey(3)}), nil)
	s.UpdateDownloads([]sportarr.DownloadItem{{ID: 1}}, nil)
	prev := s.Snapshot()

	origErr := errors.New("boom")
	s.UpdateSearchQueue(tasks.Snapshot{}, origErr)
	s.UpdateDownloads(nil, origErr)

	snap := s.Snapshot()
	if !snap.SearchQueue.IsActive(tasks.EventKey(3)) {
		t.Fatalf("search queue changed on error")
	}
	if len(snap.Downloads) != 1 || snap.Downloads[0].ID != 1 {
		t.Fatalf("downloads changed on error: got %#v want %#v", snap.Downloads, prev.Downloads)
	}
	if !snap.SearchFeed.LastSuccess.Equal(prev.SearchFeed.LastSuccess) {
		t.Fatalf("LastSuccess moved on error")
	}
	if snap.LastError() == nil || snap.LastError().Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError())
	}
	if reflect.ValueOf(snap.SearchFeed.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
	if !errors.Is(snap.DownloadsFeed.LastError, origErr) {
		t.Fatalf("cloned error should wrap the original")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return fixed })

	if s.Snapshot().IsOffline() {
		t.Fatal("IsOffline() = true, want false with 0 failures")
	}

	s.UpdateDownloads(nil, errors.New("fail 1"))
	snap := s.Snapshot()
	if snap.DownloadsFeed.ConsecutiveFailures != 1 || snap.IsOffline() {
		t.Fatalf("after 1 failure: failures=%d offline=%v", snap.DownloadsFeed.ConsecutiveFailures, snap.IsOffline())
	}
	if !snap.DownloadsFeed.LastUpdated.Equal(fixed) {
		t.Fatalf("LastUpdated = %v, want %v", snap.DownloadsFeed.LastUpdated, fixed)
	}

	s.UpdateDownloads(nil, errors.New("fail 2"))
	if !s.Snapshot().IsOffline() {
		t.Fatal("IsOffline() = false, want true with 2 failures")
	}
	if s.Snapshot().SearchFeed.IsOffline() {
		t.Fatal("search feed should not be offline")
	}

	s.UpdateDownloads(nil, nil)
	snap = s.Snapshot()
	if snap.DownloadsFeed.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("after success: failures=%d offline=%v", snap.DownloadsFeed.ConsecutiveFailures, snap.IsOffline())
	}
}

func TestStore_SearchQueueAccessor(t *testing.T) {
	var s Store
	if s.SearchQueue().PendingCount() != 0 {
		t.Fatalf("zero Store search queue not empty")
	}
	s.UpdateSearchQueue(tasks.NewSnapshot([]tasks.Key{tasks.PartKey(1, "Prelims")}, nil), nil)
	if !s.SearchQueue().IsPending(tasks.PartKey(1, "Prelims")) {
		t.Fatalf("SearchQueue missing pending key")
	}
}

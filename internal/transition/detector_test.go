package transition

import (
	"slices"
	"testing"
	"time"

	"github.com/five82/lookout/internal/clock"
	"github.com/five82/lookout/internal/sportarr"
)

func item(id int64, status sportarr.DownloadStatus) sportarr.DownloadItem {
	return sportarr.DownloadItem{ID: id, Status: status}
}

func TestCompleted(t *testing.T) {
	type snap = map[int64]sportarr.DownloadStatus
	tests := []struct {
		name string
		prev snap
		curr snap
		want []int64
	}{
		{"importing disappears", snap{1: sportarr.DownloadStatusImporting}, snap{}, []int64{1}},
		{"imported disappears", snap{1: sportarr.DownloadStatusImported}, snap{}, []int64{1}},
		{"downloading flips to imported", snap{2: sportarr.DownloadStatusDownloading}, snap{2: sportarr.DownloadStatusImported}, []int64{2}},
		{"new item already imported", snap{}, snap{3: sportarr.DownloadStatusImported}, []int64{3}},
		{"imported stays imported", snap{4: sportarr.DownloadStatusImported}, snap{4: sportarr.DownloadStatusImported}, nil},
		{"downloading disappears", snap{5: sportarr.DownloadStatusDownloading}, snap{}, nil},
		{"failed disappears", snap{5: sportarr.DownloadStatusFailed}, snap{}, nil},
		{"completed without import", snap{6: sportarr.DownloadStatusDownloading}, snap{6: sportarr.DownloadStatusCompleted}, nil},
		{"importing to imported", snap{7: sportarr.DownloadStatusImporting}, snap{7: sportarr.DownloadStatusImported}, []int64{7}},
		{
			"mixed batch sorted",
			snap{9: sportarr.DownloadStatusImporting, 2: sportarr.DownloadStatusQueued, 4: sportarr.DownloadStatusPaused},
			snap{2: sportarr.DownloadStatusImported, 4: sportarr.DownloadStatusPaused},
			[]int64{2, 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Completed(tt.prev, tt.curr)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Completed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_FirstSnapshotNeverSignals(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	d := NewDetector(c, DefaultSettleDelay)
	signals := 0
	d.Subscribe(func() { signals++ })

	got := d.Observe([]sportarr.DownloadItem{item(1, sportarr.DownloadStatusImported), item(2, sportarr.DownloadStatusImporting)})
	if got != nil {
		t.Fatalf("first Observe = %v, want nil", got)
	}
	c.Advance(time.Second)
	if signals != 0 {
		t.Fatalf("signals = %d, want 0 after first snapshot", signals)
	}
	if c.Pending() != 0 {
		t.Fatalf("pending timers = %d, want 0", c.Pending())
	}
}

func TestDetector_DisappearanceSignalsAfterSettle(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	d := NewDetector(c, DefaultSettleDelay)
	signals := 0
	d.Subscribe(func() { signals++ })

	d.Observe([]sportarr.DownloadItem{item(1, sportarr.DownloadStatusImporting)})
	got := d.Observe(nil)
	if !slices.Equal(got, []int64{1}) {
		t.Fatalf("Observe = %v, want [1]", got)
	}

	c.Advance(DefaultSettleDelay - time.Millisecond)
	if signals != 0 {
		t.Fatalf("signal fired before settle delay")
	}
	c.Advance(time.Millisecond)
	if signals != 1 {
		t.Fatalf("signals = %d, want 1", signals)
	}
}

func TestDetector_StatusFlipSignals(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	d := NewDetector(c, DefaultSettleDelay)
	signals := 0
	d.Subscribe(func() { signals++ })

	d.Observe([]sportarr.DownloadItem{item(2, sportarr.DownloadStatusDownloading)})
	if got := d.Observe([]sportarr.DownloadItem{item(2, sportarr.DownloadStatusImported)}); !slices.Equal(got, []int64{2}) {
		t.Fatalf("Observe = %v, want [2]", got)
	}
	c.Advance(DefaultSettleDelay)
	if signals != 1 {
		t.Fatalf("signals = %d, want 1", signals)
	}

	// Staying imported is not a new transition.
	if got := d.Observe([]sportarr.DownloadItem{item(2, sportarr.DownloadStatusImported)}); got != nil {
		t.Fatalf("Observe = %v, want nil", got)
	}
	c.Advance(DefaultSettleDelay)
	if signals != 1 {
		t.Fatalf("signals = %d, want still 1", signals)
	}
}

func TestDetector_BatchCollapsesIntoOneSignal(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	d := NewDetector(c, DefaultSettleDelay)
	signals := 0
	d.Subscribe(func() { signals++ })

	d.Observe([]sportarr.DownloadItem{
		item(1, sportarr.DownloadStatusImporting),
		item(2, sportarr.DownloadStatusDownloading),
		item(3, sportarr.DownloadStatusImporting),
	})
	got := d.Observe([]sportarr.DownloadItem{item(2, sportarr.DownloadStatusImported)})
	if !slices.Equal(got, []int64{1, 2, 3}) {
		t.Fatalf("Observe = %v, want [1 2 3]", got)
	}
	// A second completion before the first signal fires folds into it.
	d.Observe([]sportarr.DownloadItem{item(4, sportarr.DownloadStatusImported)})
	if c.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", c.Pending())
	}
	c.Advance(DefaultSettleDelay)
	if signals != 1 {
		t.Fatalf("signals = %d, want 1", signals)
	}
}

func TestDetector_UnsubscribeAndStop(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	d := NewDetector(c, -1)
	if d.settle != DefaultSettleDelay {
		t.Fatalf("settle = %v, want default", d.settle)
	}

	a, b := 0, 0
	unsubA := d.Subscribe(func() { a++ })
	d.Subscribe(func() { b++ })
	unsubA()
	unsubA()

	d.Observe([]sportarr.DownloadItem{item(1, sportarr.DownloadStatusImporting)})
	d.Observe(nil)
	c.Advance(DefaultSettleDelay)
	if a != 0 || b != 1 {
		t.Fatalf("a=%d b=%d, want a=0 b=1", a, b)
	}

	d.Observe([]sportarr.DownloadItem{item(5, sportarr.DownloadStatusImported)})
	d.Stop()
	c.Advance(DefaultSettleDelay)
	if b != 1 {
		t.Fatalf("b = %d after Stop, want 1", b)
	}
}

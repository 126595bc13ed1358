package ui

import (
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"

	"github.com/five82/lookout/internal/sportarr"
	"github.com/five82/lookout/internal/tasks"
)

// row is one searchable line of the dashboard: a whole event, or one part
// of an event that has parts.
type row struct {
	key   tasks.Key
	event sportarr.Event
}

func (r row) label() string {
	if !r.key.HasPart {
		return r.event.Title
	}
	return r.event.Title + " · " + r.key.Part
}

// buildRows expands events into rows, newest event first. Events without a
// parsable date keep their relative order at the end.
func buildRows(events []sportarr.Event) []row {
	ordered := make([]sportarr.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := ordered[i].ParsedDate(), ordered[j].ParsedDate()
		if di.IsZero() || dj.IsZero() {
			return !di.IsZero() && dj.IsZero()
		}
		return di.After(dj)
	})

	rows := make([]row, 0, len(ordered))
	for _, ev := range ordered {
		for _, key := range ev.Keys() {
			rows = append(rows, row{key: key, event: ev})
		}
	}
	return rows
}

type rowSource []row

func (s rowSource) String(i int) string { return strings.ToLower(s[i].label()) }
func (s rowSource) Len() int            { return len(s) }

// filterRows returns the indexes of rows matching query, best match first.
// An empty query matches every row in order.
func filterRows(rows []row, query string) []int {
	query = strings.TrimSpace(query)
	if query == "" {
		out := make([]int, len(rows))
		for i := range rows {
			out[i] = i
		}
		return out
	}
	matches := fuzzy.FindFrom(strings.ToLower(query), rowSource(rows))
	out := make([]int, len(matches))
	for i, match := range matches {
		out[i] = match.Index
	}
	return out
}

// dropIdle removes indexes whose rows are idle.
func dropIdle(rows []row, idx []int, status func(tasks.Key) tasks.Status) []int {
	out := idx[:0:0]
	for _, i := range idx {
		if status(rows[i].key) != tasks.StatusIdle {
			out = append(out, i)
		}
	}
	return out
}

// latestDownloads indexes the download queue by event, keeping the most
// advanced item per event.
func latestDownloads(items []sportarr.DownloadItem) map[int64]sportarr.DownloadItem {
	out := make(map[int64]sportarr.DownloadItem)
	for _, item := range items {
		if item.EventID <= 0 {
			continue
		}
		prev, ok := out[item.EventID]
		if !ok || downloadRank(item.Status) > downloadRank(prev.Status) ||
			(item.Status == prev.Status && item.Progress > prev.Progress) {
			out[item.EventID] = item
		}
	}
	return out
}

func downloadRank(s sportarr.DownloadStatus) int {
	switch s {
	case sportarr.DownloadStatusImported:
		return 6
	case sportarr.DownloadStatusImporting:
		return 5
	case sportarr.DownloadStatusCompleted:
		return 4
	case sportarr.DownloadStatusDownloading:
		return 3
	case sportarr.DownloadStatusFailed, sportarr.DownloadStatusWarning:
		return 2
	case sportarr.DownloadStatusQueued, sportarr.DownloadStatusPaused:
		return 1
	default:
		return 0
	}
}

func formatEventDate(e sportarr.Event) string {
	d := e.ParsedDate()
	if d.IsZero() {
		return "-"
	}
	return d.Local().Format("2006-01-02")
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// clampCursor keeps cursor within [0, n) and offset such that the cursor is
// inside a window of size height.
func clampCursor(cursor, offset, n, height int) (int, int) {
	if n == 0 {
		return 0, 0
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= n {
		cursor = n - 1
	}
	if height <= 0 {
		return cursor, cursor
	}
	if cursor < offset {
		offset = cursor
	}
	if cursor >= offset+height {
		offset = cursor - height + 1
	}
	if offset > n-height {
		offset = max(n-height, 0)
	}
	return cursor, offset
}

func sinceLabel(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return relativeTime(t, now)
}

func relativeTime(t time.Time, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

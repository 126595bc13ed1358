package sportarr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/five82/lookout/internal/tasks"
)

const sportarrTimestampLayout = "2006-01-02 15:04:05"

// SearchTaskRef is one entry of the remote search queue.
type SearchTaskRef struct {
	EventID int64
	Part    *string
}

// UnmarshalJSON accepts both eventId and the older entityId field name.
func (r *SearchTaskRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		EventID  *int64  `json:"eventId"`
		EntityID *int64  `json:"entityId"`
		Part     *string `json:"part"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.EventID != nil:
		r.EventID = *raw.EventID
	case raw.EntityID != nil:
		r.EventID = *raw.EntityID
	default:
		return fmt.Errorf("search task missing eventId")
	}
	r.Part = raw.Part
	return nil
}

// MarshalJSON writes the canonical eventId form.
func (r SearchTaskRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID int64   `json:"eventId"`
		Part    *string `json:"part"`
	}{r.EventID, r.Part})
}

// Key converts the reference into a task key.
func (r SearchTaskRef) Key() tasks.Key {
	return tasks.KeyFor(r.EventID, r.Part)
}

// SearchQueueResponse mirrors /api/search/queue.
type SearchQueueResponse struct {
	PendingSearches []SearchTaskRef `json:"pendingSearches"`
	ActiveSearches  []SearchTaskRef `json:"activeSearches"`
}

// Snapshot converts the payload into an immutable task snapshot.
func (r SearchQueueResponse) Snapshot() tasks.Snapshot {
	return tasks.NewSnapshot(refKeys(r.PendingSearches), refKeys(r.ActiveSearches))
}

func refKeys(refs []SearchTaskRef) []tasks.Key {
	if len(refs) == 0 {
		return nil
	}
	keys := make([]tasks.Key, len(refs))
	for i, ref := range refs {
		keys[i] = ref.Key()
	}
	return keys
}

// DownloadStatus is the lifecycle state of a download queue item.
type DownloadStatus int

const (
	DownloadStatusUnknown DownloadStatus = iota
	DownloadStatusQueued
	DownloadStatusDownloading
	DownloadStatusPaused
	DownloadStatusCompleted
	DownloadStatusFailed
	DownloadStatusWarning
	DownloadStatusImporting
	DownloadStatusImported
)

var downloadStatusNames = map[DownloadStatus]string{
	DownloadStatusQueued:      "queued",
	DownloadStatusDownloading: "downloading",
	DownloadStatusPaused:      "paused",
	DownloadStatusCompleted:   "completed",
	DownloadStatusFailed:      "failed",
	DownloadStatusWarning:     "warning",
	DownloadStatusImporting:   "importing",
	DownloadStatusImported:    "imported",
}

func (s DownloadStatus) String() string {
	if name, ok := downloadStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseDownloadStatus maps a wire label onto a DownloadStatus. Unrecognised
// labels yield DownloadStatusUnknown.
func ParseDownloadStatus(value string) DownloadStatus {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for status, name := range downloadStatusNames {
		if name == normalized {
			return status
		}
	}
	return DownloadStatusUnknown
}

// MarshalJSON writes the lower-case label.
func (s DownloadStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads a status label; null decodes to unknown.
func (s *DownloadStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = DownloadStatusUnknown
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("download status: %w", err)
	}
	*s = ParseDownloadStatus(label)
	return nil
}

// PostProcessing reports whether the item has reached the import stage.
func (s DownloadStatus) PostProcessing() bool {
	return s == DownloadStatusImporting || s == DownloadStatusImported
}

// DownloadItem describes a download queue entry.
type DownloadItem struct {
	ID           int64          `json:"id"`
	Status       DownloadStatus `json:"status"`
	Title        string         `json:"title"`
	EventID      int64          `json:"eventId"`
	Progress     float64        `json:"progress"`
	ErrorMessage string         `json:"errorMessage"`
}

type downloadQueuePage struct {
	Records []DownloadItem `json:"records"`
}

// Event is a league event as listed by /api/league/{id}/events.
type Event struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	LeagueName string   `json:"leagueName"`
	EventDate  string   `json:"eventDate"`
	Monitored  bool     `json:"monitored"`
	HasFile    bool     `json:"hasFile"`
	Parts      []string `json:"parts"`
}

// ParsedDate returns the event date when it can be parsed.
func (e Event) ParsedDate() time.Time {
	return parseTime(e.EventDate)
}

// Keys returns the searchable keys of the event: one per part, or the whole
// event when it has no parts.
func (e Event) Keys() []tasks.Key {
	if len(e.Parts) == 0 {
		return []tasks.Key{tasks.EventKey(e.ID)}
	}
	keys := make([]tasks.Key, 0, len(e.Parts))
	for _, part := range e.Parts {
		keys = append(keys, tasks.PartKey(e.ID, part))
	}
	return keys
}

type searchRequest struct {
	Part *string `json:"part,omitempty"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(sportarrTimestampLayout, value, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t
	}
	return time.Time{}
}

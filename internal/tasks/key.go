package tasks

import (
	"fmt"
	"strings"
)

// Key identifies one searchable unit of work: a whole event, or a single named
// part of it (for example "Main Card"). The zero Part with HasPart=false is the
// whole-event key and never equals a part key, even one with an empty name.
type Key struct {
	EventID int64
	Part    string
	HasPart bool
}

// EventKey returns the whole-event key for id.
func EventKey(id int64) Key {
	return Key{EventID: id}
}

// PartKey returns the key for a named part of event id.
func PartKey(id int64, part string) Key {
	return Key{EventID: id, Part: part, HasPart: true}
}

// KeyFor builds a key from an optional part as it appears on the wire.
func KeyFor(id int64, part *string) Key {
	if part == nil {
		return EventKey(id)
	}
	return PartKey(id, *part)
}

// PartPtr returns the part as an optional value, nil for whole-event keys.
func (k Key) PartPtr() *string {
	if !k.HasPart {
		return nil
	}
	part := k.Part
	return &part
}

func (k Key) String() string {
	if !k.HasPart {
		return fmt.Sprintf("event:%d", k.EventID)
	}
	return fmt.Sprintf("event:%d/%s", k.EventID, k.Part)
}

// Status is the derived search state of a key.
type Status int

const (
	StatusIdle Status = iota
	StatusQueued
	StatusSearching
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusSearching:
		return "searching"
	default:
		return "idle"
	}
}

// Outstanding reports whether a new search for the key must be suppressed.
func (s Status) Outstanding() bool {
	return s == StatusQueued || s == StatusSearching
}

// ParseStatus converts a status label back into a Status.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "idle", "":
		return StatusIdle, nil
	case "queued":
		return StatusQueued, nil
	case "searching":
		return StatusSearching, nil
	}
	return StatusIdle, fmt.Errorf("unknown status %q", value)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

package tasks

// Snapshot is one complete view of the remote search queue. It is immutable
// after construction; a new poll produces a new Snapshot.
type Snapshot struct {
	pending map[Key]struct{}
	active  map[Key]struct{}
}

// NewSnapshot builds a Snapshot from the pending and active key lists.
func NewSnapshot(pending, active []Key) Snapshot {
	return Snapshot{pending: toSet(pending), active: toSet(active)}
}

// IsPending reports whether the server has key waiting in its queue.
func (s Snapshot) IsPending(key Key) bool {
	_, ok := s.pending[key]
	return ok
}

// IsActive reports whether the server is currently executing a search for key.
func (s Snapshot) IsActive(key Key) bool {
	_, ok := s.active[key]
	return ok
}

// Contains reports whether key appears in either remote list.
func (s Snapshot) Contains(key Key) bool {
	return s.IsPending(key) || s.IsActive(key)
}

// PendingCount returns the number of queued remote searches.
func (s Snapshot) PendingCount() int { return len(s.pending) }

// ActiveCount returns the number of executing remote searches.
func (s Snapshot) ActiveCount() int { return len(s.active) }

// Pending returns a copy of the pending keys in no particular order.
func (s Snapshot) Pending() []Key { return fromSet(s.pending) }

// Active returns a copy of the active keys in no particular order.
func (s Snapshot) Active() []Key { return fromSet(s.active) }

func toSet(keys []Key) map[Key]struct{} {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func fromSet(set map[Key]struct{}) []Key {
	if len(set) == 0 {
		return nil
	}
	keys := make([]Key, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

// Package tasks tracks user-initiated searches and resolves their displayed
// status against the remote search queue.
//
// # Keys
//
// A Key names one searchable unit: a whole event (EventKey) or one named part
// of it (PartKey). The two never match each other, so searching "Main Card"
// for event 5 leaves the whole-event status of event 5 untouched.
//
// # Resolution
//
// Tracker.Status combines local intent with the latest Snapshot:
//
//  1. local entry present → Queued
//  2. key in the active list → Searching
//  3. key in the pending list → Queued
//  4. otherwise → Idle
//
// Local optimism beats remote absence, because the remote poll may not yet
// reflect a request in flight. It never overrides remote presence: once the
// server reports the key, Prune drops the local entry so a later poll that
// dequeues the task is not contradicted by a stale local entry.
//
// # Lifetime
//
// Entries are created by MarkRequested, removed by Rollback when the send
// fails, and removed by Prune either after MaxAge (10s by default) or as soon
// as the server reports the key. Prune is driven on a 1 second tick and after
// every applied search queue poll.
//
// # Concurrency
//
// All Tracker methods take one mutex around the entry map. Snapshot values are
// immutable and may be shared freely.
package tasks

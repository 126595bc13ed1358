// Package state holds the latest remote data shared between the pollers and
// the consumers of the engine.
//
// # Overview
//
// Two independent pollers feed the Store: the search queue poller and the
// download queue poller. The engine, dashboard and local API read from it.
//
//	Producers (pollers):               Consumers:
//	┌────────────────────────┐        ┌────────────────────────┐
//	│ FetchSearchQueue()     │        │ engine.Status()        │
//	│  → UpdateSearchQueue() │──────→ │ ui / server            │
//	│ FetchDownloadQueue()   │ (mutex)│  → store.Snapshot()    │
//	│  → UpdateDownloads()   │        │                        │
//	└────────────────────────┘        └────────────────────────┘
//
// # Update Semantics
//
// Each feed is replaced wholesale on success. On failure the previous data is
// kept and only the feed bookkeeping changes:
//
//	store.UpdateDownloads(items, nil)
//	→ Downloads = clone(items), LastError = nil, ConsecutiveFailures = 0
//
//	store.UpdateDownloads(nil, err)
//	→ Downloads unchanged, LastError = err, ConsecutiveFailures++
//
// A feed counts as offline after two consecutive failures.
//
// # Copying
//
// Download slices are cloned on the way in and out, and errors are re-wrapped
// on read, so no caller can mutate what another caller sees. tasks.Snapshot
// values are immutable and are shared as is.
//
// # Zero Value
//
// A zero Store is ready to use and stamps updates with time.Now. NewStore
// accepts a custom clock for tests.
package state

// Package engine is the facade the presentation layer talks to.
//
// An Engine owns one tasks.Tracker and one transition.Detector and reads the
// latest polled data from a state.Store. The pollers in package app push
// results in through ApplySearchQueue and ApplyDownloads and drive Prune on a
// fixed tick; the dashboard and local API call Status, RequestSearch and
// SubscribeToRefresh.
//
// Search flow:
//
//	RequestSearch(key)
//	  ├─ BeginSearch(key)
//	  │    ├─ Status(key) queued/searching → ErrSearchOutstanding (nothing sent)
//	  │    └─ MarkRequested(key)           → key reads queued immediately
//	  └─ SendSearch(key), bounded by the entry's remaining lifetime
//	       ├─ ok    → entry waits for the server to report the key, or expires
//	       └─ error → Rollback(key), wrapped error returned
//
// The dashboard calls BeginSearch from its update loop and SendSearch from a
// command, so the row flips to queued on the keypress itself.
//
// Callers that send searches through their own client use OnSearchRequested
// and OnSearchFailed around the call instead.
package engine

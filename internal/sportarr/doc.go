// Package sportarr provides an HTTP client for the Sportarr API.
//
// # Overview
//
// The client covers the handful of endpoints lookout needs to reconcile
// search state and detect finished downloads:
//
//   - GET /api/search/queue: pending and active searches, keyed by event and optional part
//   - GET /api/queue: the download queue with lifecycle status per item
//   - GET /api/league/{id}/events: events of a league (dashboard listing)
//   - POST /api/event/{id}/search: queue a search for an event or one part
//
// # Client Usage
//
//	client, err := sportarr.NewClient("127.0.0.1:1867", sportarr.Options{APIKey: key})
//	if err != nil {
//		return err
//	}
//	snap, err := client.FetchSearchQueue(ctx)
//	items, err := client.FetchDownloadQueue(ctx)
//	err = client.IssueSearch(ctx, tasks.PartKey(42, "Main Card"))
//
// # Request Handling
//
// Every request carries Accept: application/json, a lookout User-Agent, an
// X-Request-Id (random UUID) for correlating with server logs, and the
// X-Api-Key header when a key is configured. Search requests pass through a
// token bucket (2 per second by default) so a burst of clicks across many
// events cannot flood the server.
//
// # Error Handling
//
// Errors are wrapped with the failing step:
//   - "execute request: dial tcp: connection refused"
//   - "api /api/queue returned status 500"
//   - "decode response: unexpected end of JSON input"
//
// 401 and 403 responses wrap ErrUnauthorized so callers can tell a bad key
// from a transient outage.
//
// # Wire Compatibility
//
// Search queue entries may name the event as eventId or entityId; a null or
// missing part means the whole event. Download statuses are matched
// case-insensitively and unknown labels decode to DownloadStatusUnknown.
// The download queue may be a bare array or a paged object with records.
//
// # Design Rationale
//
// The client does no caching and no retries. Polling cadence, backoff and
// stale-data retention live in the app and state packages.
package sportarr

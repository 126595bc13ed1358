// Package app is the composition root of lookout.
//
// It loads configuration, opens the logger, builds the Sportarr client and
// the engine, and then runs the long-lived pieces under one errgroup:
//
//   - RunPollers: three independent loops. The search queue and download
//     queue polls each run sequentially (a slow request delays the next one
//     instead of overlapping it) and back off exponentially on consecutive
//     failures, capped at 30 seconds. The prune tick runs every second.
//   - server.ListenAndServe when a listen address is configured.
//   - ui.Run for the dashboard (Run only).
//
// Poll failures are never fatal. The store keeps the last good data and
// records the error, which the dashboard and the local API surface.
//
// Entry points:
//
//	app.Run(ctx, opts)         dashboard
//	app.Serve(ctx, opts)       headless engine behind the local API
//	app.Search(ctx, opts, key) one-shot search request
package app

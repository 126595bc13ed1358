// Package ui provides the terminal dashboard of lookout.
//
// # Overview
//
// The dashboard lists the events of one league, one row per searchable key
// (the whole event, or each of its parts). Every row shows the status the
// engine derives for that key, the most advanced download of the event, and
// how long ago a still-unconfirmed search was requested.
//
// # Components
//
//   - ui.go: Run, options, messages and commands
//   - model.go: the Bubble Tea model and key handling
//   - view.go: header, table and footer rendering
//   - rows.go: row building, fuzzy filtering and small formatting helpers
//   - keys.go: key bindings and help
//   - theme.go: color themes and status badges
//
// # Data Flow
//
// The pollers in package app feed the engine; the dashboard never polls the
// search or download queues itself. A one second tick copies the engine's
// snapshot into the model. Event lists are fetched on start, on demand (r),
// and whenever the engine signals that downloads completed. That signal is
// bridged into Bubble Tea through a buffered channel read by a blocking
// command, so bursts collapse into one reload.
//
// # Searching
//
// Pressing s checks the engine status first and does nothing when a search
// is queued or running. Otherwise the request runs as a command; the row
// reads queued immediately and a failed send rolls back and is reported in
// the footer.
//
// # Keyboard Controls
//
//	j/k, arrows   move
//	g/G           top / bottom
//	s, enter      search the selected row
//	/             fuzzy filter (esc clears)
//	i             hide idle rows
//	T             cycle theme
//	r             reload events
//	?             full help
//	q, ctrl+c     quit
//
// Theme and the idle filter persist in ~/.config/lookout/prefs.toml.
package ui

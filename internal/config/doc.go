// Package config loads lookout's TOML configuration.
//
// # Configuration Discovery
//
// Load follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/lookout/config.toml
//  3. If the file doesn't exist, fall back to defaults
//  4. Missing or empty fields keep their defaults
//  5. LOOKOUT_API_KEY, when set, replaces api_key
//
// # TOML Format
//
//	api_url   = "http://127.0.0.1:1867"
//	api_key   = ""
//	league_id = 0
//
//	[poll]
//	search_queue = "5s"
//	downloads    = "5s"
//	prune        = "1s"
//
//	[search]
//	max_pending_age = "10s"
//	refresh_settle  = "500ms"
//	rate_limit      = 2.0
//
//	[log]
//	file  = "~/.local/share/lookout/lookout.log"
//	level = "info"
//
//	[server]
//	listen = ""
//
// Durations use time.ParseDuration syntax and must be positive. Tilde
// expansion is applied to the config path and log.file.
//
// # Error Handling
//
// Load returns errors for unreadable files, TOML syntax errors and invalid
// values; the message names the offending key. A missing file is not an
// error.
package config

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything lookout needs to reach Sportarr and drive the engine.
type Config struct {
	APIURL   string
	APIKey   string
	LeagueID int64
	Poll     PollConfig
	Search   SearchConfig
	Log      LogConfig
	Server   ServerConfig
}

// PollConfig holds the cadence of each periodic task.
type PollConfig struct {
	SearchQueue time.Duration
	Downloads   time.Duration
	Prune       time.Duration
}

// SearchConfig tunes search tracking and refresh signalling.
type SearchConfig struct {
	MaxPendingAge time.Duration
	RefreshSettle time.Duration
	RateLimit     float64
}

// LogConfig controls the log destination.
type LogConfig struct {
	File  string
	Level string
}

// ServerConfig controls the optional local API.
type ServerConfig struct {
	Listen string
}

// APIKeyEnv overrides api_key from the config file when set.
const APIKeyEnv = "LOOKOUT_API_KEY"

const (
	defaultConfigPath    = "~/.config/lookout/config.toml"
	defaultAPIURL        = "http://127.0.0.1:1867"
	defaultLogFile       = "~/.local/share/lookout/lookout.log"
	defaultLogLevel      = "info"
	defaultSearchPoll    = 5 * time.Second
	defaultDownloadPoll  = 5 * time.Second
	defaultPruneInterval = time.Second
	defaultMaxPendingAge = 10 * time.Second
	defaultRefreshSettle = 500 * time.Millisecond
	defaultRateLimit     = 2.0
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL: defaultAPIURL,
		Poll: PollConfig{
			SearchQueue: defaultSearchPoll,
			Downloads:   defaultDownloadPoll,
			Prune:       defaultPruneInterval,
		},
		Search: SearchConfig{
			MaxPendingAge: defaultMaxPendingAge,
			RefreshSettle: defaultRefreshSettle,
			RateLimit:     defaultRateLimit,
		},
		Log: LogConfig{
			File:  mustExpand(defaultLogFile),
			Level: defaultLogLevel,
		},
	}
}

type rawConfig struct {
	APIURL   string `toml:"api_url"`
	APIKey   string `toml:"api_key"`
	LeagueID int64  `toml:"league_id"`
	Poll     struct {
		SearchQueue string `toml:"search_queue"`
		Downloads   string `toml:"downloads"`
		Prune       string `toml:"prune"`
	} `toml:"poll"`
	Search struct {
		MaxPendingAge string  `toml:"max_pending_age"`
		RefreshSettle string  `toml:"refresh_settle"`
		RateLimit     float64 `toml:"rate_limit"`
	} `toml:"search"`
	Log struct {
		File  string `toml:"file"`
		Level string `toml:"level"`
	} `toml:"log"`
	Server struct {
		Listen string `toml:"listen"`
	} `toml:"server"`
}

// Load locates and parses the lookout config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.apply(raw); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func (c *Config) apply(raw rawConfig) error {
	if v := strings.TrimSpace(raw.APIURL); v != "" {
		c.APIURL = v
	}
	c.APIKey = strings.TrimSpace(raw.APIKey)
	if raw.LeagueID < 0 {
		return fmt.Errorf("league_id must not be negative")
	}
	c.LeagueID = raw.LeagueID

	durations := []struct {
		key   string
		value string
		dest  *time.Duration
	}{
		{"poll.search_queue", raw.Poll.SearchQueue, &c.Poll.SearchQueue},
		{"poll.downloads", raw.Poll.Downloads, &c.Poll.Downloads},
		{"poll.prune", raw.Poll.Prune, &c.Poll.Prune},
		{"search.max_pending_age", raw.Search.MaxPendingAge, &c.Search.MaxPendingAge},
		{"search.refresh_settle", raw.Search.RefreshSettle, &c.Search.RefreshSettle},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.value, d.dest); err != nil {
			return err
		}
	}

	if raw.Search.RateLimit < 0 {
		return fmt.Errorf("search.rate_limit must not be negative")
	}
	if raw.Search.RateLimit > 0 {
		c.Search.RateLimit = raw.Search.RateLimit
	}

	if v := strings.TrimSpace(raw.Log.File); v != "" {
		c.Log.File = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.Log.Level); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	c.Server.Listen = strings.TrimSpace(raw.Server.Listen)
	return nil
}

func parseDuration(key, value string, dest *time.Duration) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("parse config %s: must be positive", key)
	}
	*dest = d
	return nil
}

func applyEnv(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		cfg.APIKey = key
	}
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

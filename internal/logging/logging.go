// Package logging builds the structured logger used across lookout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Options controls where and how much is logged.
type Options struct {
	// File receives log output; empty writes to Stderr. A leading ~ is expanded.
	File  string
	Level string
	// JSON switches the formatter from text to JSON lines.
	JSON bool
}

// New creates a logger with timestamps enabled. The returned closer releases
// the log file, if one was opened.
func New(opts Options) (*log.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(opts.File) != "" {
		file, err := openLogFile(opts.File)
		if err != nil {
			return nil, nil, err
		}
		w = file
		closer = file
	}

	logOpts := log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "lookout",
	}
	if opts.JSON {
		logOpts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, logOpts), closer, nil
}

// ParseLevel converts a config level name into a log.Level. Empty means info.
func ParseLevel(level string) (log.Level, error) {
	trimmed := strings.ToLower(strings.TrimSpace(level))
	switch trimmed {
	case "":
		return log.InfoLevel, nil
	case "warning":
		return log.WarnLevel, nil
	}
	parsed, err := log.ParseLevel(trimmed)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return parsed, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// Component returns a child logger tagged with the component name.
func Component(l *log.Logger, name string) *log.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With("component", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLogFile(path string) (*os.File, error) {
	logPath := strings.TrimSpace(path)
	if strings.HasPrefix(logPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		logPath = filepath.Join(home, strings.TrimPrefix(logPath, "~"))
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Package logger configures the server's own structured log: slog text
// records written to stderr and, when a file is configured, to a
// lumberjack-rotated file. The supervised child's capture log is separate
// and deliberately unrotated; this package does not touch it.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters, lumberjack semantics.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes the server log destination.
type Config struct {
	Level      string `mapstructure:"level"`        // debug|info|warn|error, default info
	File       string `mapstructure:"file"`         // rotating log file; empty = stderr only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // megabytes before rotation
	MaxBackups int    `mapstructure:"max_backups"`  // rotated files to keep
	MaxAgeDays int    `mapstructure:"max_age_days"` // days to keep
	Compress   bool   `mapstructure:"compress"`     // gzip rotated files
}

// New builds a slog.Logger for the config. The returned closer shuts the
// rotating writer; it is a no-op when only stderr is used.
func New(c Config) (*slog.Logger, io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if c.File != "" {
		if dir := filepath.Dir(c.File); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, err
			}
		}
		rot := &lj.Logger{
			Filename:   c.File,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
		w = io.MultiWriter(os.Stderr, rot)
		closer = rot
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(c.Level)})
	return slog.New(h), closer, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

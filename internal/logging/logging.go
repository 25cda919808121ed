// Package logging builds slog loggers for stress runs: structured console
// output, a rotating log file, or both.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how run logs are written.
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json

	// Console enables logging to stderr.
	Console bool `yaml:"console"`

	// File enables a rotating log file under Dir.
	File bool   `yaml:"file"`
	Dir  string `yaml:"dir"`

	Rotation Rotation `yaml:"rotation"`
}

// Rotation bounds the log file set.
type Rotation struct {
	MaxSizeMB  int  `yaml:"max_size"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age"`
	Compress   bool `yaml:"compress"`
}

// Default returns console-only text logging at info level.
func Default() Config {
	return Config{
		Level:   "info",
		Format:  "text",
		Console: true,
		Dir:     "logs",
		Rotation: Rotation{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// New builds a logger from the config. The returned close function flushes
// and closes the log file, if one was opened.
func New(cfg Config) (*slog.Logger, func() error, error) {
	level := parseLevel(cfg.Level)

	var handlers []slog.Handler
	closer := func() error { return nil }

	if cfg.Console {
		handlers = append(handlers, newHandler(os.Stderr, cfg.Format, level))
	}

	if cfg.File {
		dir := cfg.Dir
		if dir == "" {
			dir = "logs"
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "sqlstress.log"),
			MaxSize:    cfg.Rotation.MaxSizeMB,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAgeDays,
			Compress:   cfg.Rotation.Compress,
		}
		handlers = append(handlers, newHandler(file, cfg.Format, level))
		closer = file.Close
	}

	switch len(handlers) {
	case 0:
		// Nothing enabled: swallow everything.
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closer, nil
	case 1:
		return slog.New(handlers[0]), closer, nil
	default:
		return slog.New(multiHandler(handlers)), closer, nil
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// multiHandler fans a record out to every handler, stopping at the first
// error so logging failures stay visible.
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(multiHandler, len(m))
	for i, h := range m {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	next := make(multiHandler, len(m))
	for i, h := range m {
		next[i] = h.WithGroup(name)
	}
	return next
}

// Package logger provides structured logging functionality for the application.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/davidhaber/taskengine/internal/config"
)

// ParseLevel converts a level name to a slog.Level. Names are matched
// case-insensitively.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup initializes the application's logging system from server
// configuration: a JSON logger at the configured level, installed as
// the process default. An unknown level name falls back to info with a
// warning rather than failing startup.
func Setup(cfg config.ServerConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout, true)
}

// NewWithWriter builds the logger against an arbitrary writer. Tests
// use it to capture output; setDefault controls whether the logger is
// installed as the process default.
func NewWithWriter(cfg config.ServerConfig, w io.Writer, setDefault bool) *slog.Logger {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	if setDefault {
		slog.SetDefault(logger)
	}
	return logger
}

// Package logging builds the slog loggers used by the slide tools. Output
// always goes to stderr because stdout carries the MCP protocol.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLevel overrides the configured log level when set.
const EnvLevel = "SLIDE_MCP_LOG_LEVEL"

var level = new(slog.LevelVar)

// New returns a slog.Logger with the provided level string (debug, info,
// warn, error). format may be "json" or "text". The level is shared by every
// logger built here and can be changed later with SetLogLevel.
func New(lvl string, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, lvl, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, lvl string, format string) *slog.Logger {
	if env := os.Getenv(EnvLevel); env != "" {
		lvl = env
	}
	level.Set(parseLevel(lvl))
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup builds a logger and installs it as the slog default.
func Setup(lvl, format string) *slog.Logger {
	l := New(lvl, format)
	slog.SetDefault(l)
	return l
}

// SetLogLevel changes the level of all loggers created by this package.
func SetLogLevel(lvl string) {
	level.Set(parseLevel(lvl))
}

// Level reports the current shared level.
func Level() slog.Level {
	return level.Level()
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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

// Discard returns a logger that drops everything. Tests use it to keep
// driver output quiet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

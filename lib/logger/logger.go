// Package logger is the process wide structured logger, built on log/slog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Settings stores config for the logger
type Settings struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text or json
}

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// ParseLevel maps a level name to a slog.Level. Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Setup replaces the global logger with one writing to w.
func Setup(w io.Writer, settings *Settings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(settings.Level)}
	var handler slog.Handler
	if strings.EqualFold(settings.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	l := slog.New(handler)
	current.Store(l)
	return l
}

// Discard silences all logging, used by tests and benchmarks.
func Discard() {
	current.Store(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})))
}

// With returns the global logger annotated with args.
func With(args ...any) *slog.Logger {
	return current.Load().With(args...)
}

func Debug(msg string, args ...any) {
	current.Load().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	current.Load().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	current.Load().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	current.Load().Error(msg, args...)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, v ...any) {
	l := current.Load()
	if l.Enabled(context.Background(), slog.LevelError) {
		l.Error(fmt.Sprintf(format, v...))
	}
}

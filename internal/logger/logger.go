// Package logger holds the process-wide slog logger used for debug output.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu     sync.RWMutex
	global *slog.Logger
	debug  bool
)

// New returns a text logger writing to w, at debug level when debug is set.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetGlobal replaces the global logger and debug state.
func SetGlobal(l *slog.Logger, debugEnabled bool) {
	mu.Lock()
	defer mu.Unlock()
	global = l
	debug = debugEnabled
}

// Get returns the global logger, or a stderr logger when none was set.
func Get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global != nil {
		return global
	}
	return New(os.Stderr, debug)
}

// IsDebug reports whether debug logging is enabled.
func IsDebug() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debug
}

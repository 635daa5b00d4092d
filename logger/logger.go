// Package logger sets up the process-wide slog logger from a level name.
package logger

import (
	"fmt"
	"io"
	"log/slog"
)

var current *slog.Logger

// ParseLevel converts debug, info, warn or error to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", level)
}

// Init installs a text logger writing to w as the slog default.
func Init(w io.Writer, level string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	current = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(current)
	return nil
}

// Get returns the logger installed by Init, or slog.Default() before that.
func Get() *slog.Logger {
	if current == nil {
		return slog.Default()
	}
	return current
}

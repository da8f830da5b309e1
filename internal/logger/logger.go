// Package logger provides structured logging using Go 1.21's log/slog.
// It sets up a JSON handler with service-level context; hot-path packages
// keep using the stdlib log package with a [package] prefix.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	return initWriter(service, level, os.Stdout)
}

// InitWithFile additionally tees the JSON stream into a session log file,
// so every run leaves an inspectable record. A file open failure falls
// back to stdout-only logging.
func InitWithFile(service, path string, level slog.Level) *slog.Logger {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := Init(service, level)
		logger.Warn("session log file unavailable", "path", path, "err", err)
		return logger
	}
	return initWriter(service, level, io.MultiWriter(os.Stdout, f))
}

func initWriter(service string, level slog.Level, w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(slog.String("service", service))

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

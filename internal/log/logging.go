package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type (
	// Logger is the logging surface used by pipeline components. *slog.Logger satisfies it.
	Logger interface {
		Debug(msg string, args ...any)
		Info(msg string, args ...any)
		Warn(msg string, args ...any)
		Error(msg string, args ...any)
	}
	NOOPLogger struct{}
)

var _ Logger = &slog.Logger{}

// NOOPLogger methods drop every record.
func (NOOPLogger) Debug(string, ...any) {}
func (NOOPLogger) Info(string, ...any) {}
func (NOOPLogger) Warn(string, ...any) {}
func (NOOPLogger) Error(string, ...any) {}

// OrNOOP returns l, or a NOOPLogger when l is nil.
func OrNOOP(l Logger) Logger {
	if l == nil {
		return NOOPLogger{}
	}
	return l
}

// ParseLevel converts a textual level (debug, info, warn, error) to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// New builds a text slog logger writing to w.
func New(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Package log provides the structured, leveled logging interface used
// throughout agentruntime. The default implementation wraps log/slog.
package log

import (
	"log/slog"
	"os"
)

// Logger is a small structured logging interface, independent of any
// particular backend, so callers can supply their own implementation in
// tests or alternate runtimes.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

// New wraps an existing *slog.Logger.
func New(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

// Default returns a Logger backed by slog's default handler, writing to
// stderr at Info level.
func Default() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(os.Stderr, nil))}
}

// Nop returns a Logger that discards everything, useful in tests that don't
// care about log output.
func Nop() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (s *slogLogger) Debug(msg string, kv ...any) { s.l.Debug(msg, kv...) }
func (s *slogLogger) Info(msg string, kv ...any)  { s.l.Info(msg, kv...) }
func (s *slogLogger) Warn(msg string, kv ...any)  { s.l.Warn(msg, kv...) }
func (s *slogLogger) Error(msg string, kv ...any) { s.l.Error(msg, kv...) }

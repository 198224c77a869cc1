package logging

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog with a small convenience surface used across the service.
type Logger struct {
	l *slog.Logger
}

// NewLogger creates a logger. In development it emits human-readable text at
// debug level; in production it emits JSON at info level.
func NewLogger(isDevelopment bool) *Logger {
	var handler slog.Handler
	if isDevelopment {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{l: slog.New(handler)}
}

// WithFields returns a child logger that always includes the given fields.
func (lg *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{l: lg.l.With(args...)}
}

func (lg *Logger) Debug(msg string, args ...any) {
	lg.l.Debug(msg, args...)
}

func (lg *Logger) Info(msg string, args ...any) {
	lg.l.Info(msg, args...)
}

func (lg *Logger) Warn(msg string, args ...any) {
	lg.l.Warn(msg, args...)
}

func (lg *Logger) Error(msg string, args ...any) {
	lg.l.Error(msg, args...)
}

// Log logs at an explicit level, used by the request middleware.
func (lg *Logger) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	lg.l.Log(ctx, level, msg, args...)
}

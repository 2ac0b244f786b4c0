// Package logger provides structured logging utilities for the application.
// It wraps log/slog with JSON formatting, enriches records with chat tracing
// values from the context, and can ship a copy of every record to Better Stack.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogbetterstack "github.com/samber/slog-betterstack"
)

// Logger is the application logger
type Logger struct {
	*slog.Logger
	level slog.Level
}

// Options configures NewWithOptions.
type Options struct {
	Level  string    // debug, info, warn, error (default info)
	Output io.Writer // default os.Stdout

	// BetterStackToken enables remote log shipping when non-empty.
	BetterStackToken    string
	BetterStackEndpoint string
	// QueueSize bounds pending remote records; extra records are dropped.
	QueueSize int
}

// New creates a new logger instance with JSON formatting
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a new logger instance with JSON formatting writing to the provided writer
func NewWithWriter(level string, w io.Writer) *Logger {
	log, _ := NewWithOptions(Options{Level: level, Output: w})
	return log
}

// NewWithOptions builds the logger pipeline. The returned function flushes
// the remote queue and must be called on shutdown; it is a no-op when remote
// shipping is disabled.
func NewWithOptions(opts Options) (*Logger, func(context.Context) error) {
	logLevel := ParseLevel(opts.Level)
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	local := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:       logLevel,
		ReplaceAttr: renameAttrs,
	})

	var handler slog.Handler = local
	shutdown := func(context.Context) error { return nil }

	if opts.BetterStackToken != "" {
		remote := slogbetterstack.Option{
			Level:    logLevel,
			Token:    opts.BetterStackToken,
			Endpoint: opts.BetterStackEndpoint,
		}.NewBetterstackHandler()
		queued := newQueuedHandler(remote, opts.QueueSize)
		handler = fanout{local, queued}
		shutdown = queued.Close
	}

	return &Logger{Logger: slog.New(newContextHandler(handler)), level: logLevel}, shutdown
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func renameAttrs(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.LevelKey:
		a.Key = "level"
		level := a.Value.String()
		if level == "WARN" {
			level = "warning"
		} else {
			level = strings.ToLower(level)
		}
		a.Value = slog.StringValue(level)
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// Level returns the configured minimum level.
func (l *Logger) Level() slog.Level {
	return l.level
}

// WithModule creates a new entry with module field
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{Logger: l.With("module", module), level: l.level}
}

// WithError creates a new entry with error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With("error", err), level: l.level}
}

// WithField creates a new entry with a single field
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.With(key, value), level: l.level}
}

// WithFields creates a new entry with multiple fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...), level: l.level}
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	l.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}

// Package logger builds the slog loggers used across certmail.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LogFile is the log file name inside the home directory.
const LogFile = "certmail.log"

// Options configures New.
type Options struct {
	// Writer receives every record at Level and above.
	Writer io.Writer
	// Format is "json" or "text". Default: "json".
	Format string
	Level  slog.Level
	// Console, if set, also receives records at ConsoleLevel and above.
	Console      io.Writer
	ConsoleLevel slog.Level
}

// New returns a logger writing to opts.Writer (and opts.Console), with the
// given extractors adding context attributes to every record.
func New(opts Options, extractors ...ContextExtractor) *slog.Logger {
	if opts.Writer == nil {
		opts.Writer = io.Discard
	}
	handlers := []slog.Handler{newHandler(opts.Writer, opts.Format, opts.Level)}
	if opts.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Console, &slog.HandlerOptions{Level: opts.ConsoleLevel}))
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = newMultiHandler(handlers...)
	}
	return slog.New(NewLogHandlerDecorator(h, extractors...))
}

// Open opens <home>/certmail.log for appending and returns a logger on it.
// Warnings and errors are echoed to stderr in text form.
func Open(home, level string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(home, 0700); err != nil {
		return nil, nil, fmt.Errorf("create home directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(home, LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log := New(Options{
		Writer:       f,
		Format:       "json",
		Level:        ParseLevel(level),
		Console:      os.Stderr,
		ConsoleLevel: slog.LevelWarn,
	}, RunIDExtractor())
	return log, f, nil
}

// NewNope returns a logger that discards everything.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

type runIDKey struct{}

// WithRunID attaches a batch or dispatch run id to ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the id stored by WithRunID.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// RunIDExtractor adds run_id to records logged with a context carrying one.
func RunIDExtractor() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if ctx == nil {
			return slog.Attr{}, false
		}
		id, ok := RunID(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.String("run_id", id), true
	}
}

type loggerKey struct{}

// IntoContext stores l in ctx for FromContext.
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored by IntoContext, or a discarding one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return NewNope()
}

package pixpipe

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/dustin/go-humanize"
)

// Logger wraps slog.Logger with loader-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	}
}

// WithPath adds the store path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs a loader open.
func (l *Logger) LogOpen(ctx context.Context, records int, size int64, threads int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "loader opened",
		"records", records,
		"size", humanize.IBytes(uint64(size)),
		"threads", threads,
	)
}

// LogSkip logs a skipped record.
func (l *Logger) LogSkip(ctx context.Context, rec int, err error) {
	l.WarnContext(ctx, "record skipped",
		"record", rec,
		"error", err,
	)
}

// LogBatch logs a delivered batch.
func (l *Logger) LogBatch(ctx context.Context, size, height, width int) {
	l.DebugContext(ctx, "batch assembled",
		"size", size,
		"height", height,
		"width", width,
	)
}

// LogReset logs a rewind to a new pass.
func (l *Logger) LogReset(ctx context.Context, pass int, dropped int) {
	l.InfoContext(ctx, "loader reset",
		"pass", pass,
		"dropped", dropped,
	)
}

// LogClose logs a loader close.
func (l *Logger) LogClose(ctx context.Context, batches, skipped int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"batches", batches,
			"skipped", skipped,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "loader closed",
		"batches", batches,
		"skipped", humanize.Comma(skipped),
	)
}

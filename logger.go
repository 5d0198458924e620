package motionvq

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with field names shared by all library operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger for handler. A nil handler logs text to stderr
// at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger writing JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger writing text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithMetric tags records with a metric name.
func (l *Logger) WithMetric(name string) *Logger {
	return &Logger{Logger: l.With("metric", name)}
}

// LogBuild logs the outcome of building one codebook.
func (l *Logger) LogBuild(ctx context.Context, metric string, rows int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "codebook build failed", "metric", metric, "elapsed", elapsed, "error", err)
		return
	}
	l.InfoContext(ctx, "codebook build completed", "metric", metric, "rows", rows, "elapsed", elapsed)
}

// LogSave logs the outcome of saving a library.
func (l *Logger) LogSave(ctx context.Context, prefix string, written, unchanged int, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "library save failed", "prefix", prefix, "error", err)
		return
	}
	l.InfoContext(ctx, "library saved",
		"prefix", prefix,
		"written", written,
		"unchanged", unchanged,
		"bytes", bytes,
	)
}

// LogOpen logs the outcome of opening a library.
func (l *Logger) LogOpen(ctx context.Context, prefix string, codebooks int, resident int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "library open failed", "prefix", prefix, "error", err)
		return
	}
	l.InfoContext(ctx, "library opened", "prefix", prefix, "codebooks", codebooks, "resident_bytes", resident)
}

// LogSearch logs one scan at debug level.
func (l *Logger) LogSearch(ctx context.Context, candidates, valid int, elapsed time.Duration) {
	l.DebugContext(ctx, "search completed", "candidates", candidates, "valid", valid, "elapsed", elapsed)
}

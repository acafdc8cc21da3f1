package entitydb

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with entitydb-specific helpers so every
// operation logs with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler to stderr at warn level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// With returns a Logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// LogInsert logs an insert.
func (l *Logger) LogInsert(ctx context.Context, key string, encoding Encoding, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"key", key,
			"encoding", encoding.String(),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "insert completed",
		"key", key,
		"encoding", encoding.String(),
	)
}

// LogUpdate logs an update.
func (l *Logger) LogUpdate(ctx context.Context, key string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed", "key", key, "error", err)
		return
	}
	l.DebugContext(ctx, "update completed", "key", key)
}

// LogDelete logs a delete.
func (l *Logger) LogDelete(ctx context.Context, key string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed", "key", key, "error", err)
		return
	}
	l.DebugContext(ctx, "delete completed", "key", key)
}

// LogBatch logs the outcome of a batch operation.
func (l *Logger) LogBatch(ctx context.Context, op string, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch completed with failures",
			"op", op,
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
		return
	}
	l.DebugContext(ctx, "batch completed",
		"op", op,
		"count", count,
	)
}

// LogQuery logs a query.
func (l *Logger) LogQuery(ctx context.Context, mode string, limit, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"mode", mode,
			"limit", limit,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "query completed",
		"mode", mode,
		"limit", limit,
		"results", results,
	)
}

// LogSkipped logs a stored record ignored during a scan.
func (l *Logger) LogSkipped(ctx context.Context, key string, err error) {
	l.WarnContext(ctx, "skipping malformed record",
		"key", key,
		"error", err,
	)
}

// LogSnapshot logs a snapshot or restore.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"name", name,
			"records", records,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, op+" completed",
		"name", name,
		"records", records,
	)
}

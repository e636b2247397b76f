// Package logging wraps log/slog with trace/span correlation, the way every
// subsystem in this repository logs: structured key/value pairs at the
// configured log level, never fmt.Printf.
package logging

import (
	"context"
	"log/slog"

	"tachtalk/engine/telemetry/tracing"
)

// Logger is the correlation-aware logging interface subsystems depend on.
type Logger interface {
	DebugCtx(ctx context.Context, msg string, attrs ...any)
	InfoCtx(ctx context.Context, msg string, attrs ...any)
	WarnCtx(ctx context.Context, msg string, attrs ...any)
	ErrorCtx(ctx context.Context, msg string, attrs ...any)
	With(attrs ...any) Logger
}

type correlated struct{ base *slog.Logger }

// New returns a correlated Logger. A nil base falls back to slog.Default().
func New(base *slog.Logger) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &correlated{base: base}
}

// LevelFromString maps the config-file log level enum onto a slog.Level.
func LevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *correlated) with(ctx context.Context, attrs []any) []any {
	if traceID, spanID := tracing.ExtractIDs(ctx); traceID != "" || spanID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID), slog.String("span_id", spanID))
	}
	return attrs
}

func (l *correlated) DebugCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.DebugContext(ctx, msg, l.with(ctx, attrs)...)
}

func (l *correlated) InfoCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.InfoContext(ctx, msg, l.with(ctx, attrs)...)
}

func (l *correlated) WarnCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.WarnContext(ctx, msg, l.with(ctx, attrs)...)
}

func (l *correlated) ErrorCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.ErrorContext(ctx, msg, l.with(ctx, attrs)...)
}

func (l *correlated) With(attrs ...any) Logger {
	return &correlated{base: l.base.With(attrs...)}
}

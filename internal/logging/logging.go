package logging

import (
	"context"
	"io"
	"log/slog"
)

type contextKey struct{}

// ContextWithLogger returns a derived context that carries the provided logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger previously attached to the context.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}

// FromContextOr returns the context logger, the fallback, or slog.Default in that order.
func FromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := FromContext(ctx); logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// New builds the process logger. JSON output is used for long running
// processes, text output for interactive commands.
func New(w io.Writer, json bool, level slog.Level, reporter Reporter) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	if reporter != nil {
		handler = NewReportingHandler(handler, reporter, slog.LevelError)
	}
	return slog.New(handler)
}

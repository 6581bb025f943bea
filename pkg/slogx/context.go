package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithContext returns a child context carrying the logger, so request-scoped
// fields (request id, subject) travel with the request.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached to ctx, or slog.Default when the
// context carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

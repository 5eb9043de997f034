package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

type requestIDKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithRequestID attaches the request id to both the contextual logger and the
// context itself, so error responses can echo it back to the client.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	l := FromContext(ctx).With("request_id", reqID)
	ctx = WithContext(ctx, l)
	return context.WithValue(ctx, requestIDKey{}, reqID)
}

// RequestIDFromContext returns the request id set by WithRequestID, or ""
// when the request never passed through the HTTP middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

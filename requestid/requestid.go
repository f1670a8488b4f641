// Package requestid carries the X-Request-ID value through a context so every
// attempt of one logical call, and the messages it triggers, share one ID.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"

	// Header is the standard header name for request correlation
	Header = "X-Request-ID"
)

// With adds a request ID to the context. An empty id leaves ctx unchanged.
func With(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// FromContext returns the request ID from context if present
func FromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// Ensure returns ctx unchanged when it already carries an ID, otherwise a
// child context holding a fresh UUID. The resolved ID is returned too.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return context.WithValue(ctx, requestIDKey, id), id
}

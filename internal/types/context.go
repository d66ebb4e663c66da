package types

import "context"

// contextKey is a private type for context keys to avoid collisions with
// other packages storing values in the same context.
type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID returns a new context carrying the request correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts the request correlation ID from the context, or
// returns the empty string when none is set.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

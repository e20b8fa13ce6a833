package services

import "context"

type contextKey string

const (
	userKey      contextKey = "user"
	libraryKey   contextKey = "library"
	requestIDKey contextKey = "request_id"
)

// WithUser annotates context with the user currently being processed.
func WithUser(ctx context.Context, user string) context.Context {
	if user == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user name if present.
func UserFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(userKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithLibrary annotates context with the library section title being processed.
func WithLibrary(ctx context.Context, library string) context.Context {
	if library == "" {
		return ctx
	}
	return context.WithValue(ctx, libraryKey, library)
}

// LibraryFromContext returns the library title if present.
func LibraryFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(libraryKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

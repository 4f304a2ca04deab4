package auth

import (
	"context"
)

// AnonymousViewer is the viewer id used in cache keys when no authenticated
// identity is attached to the request.
const AnonymousViewer = "anonymous"

type contextKey int

const identityKey contextKey = 0

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity attached to ctx, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// IsAuthenticated reports whether ctx carries a live, non-anonymous identity.
// Cached responses are only served to and stored for requests where this is
// false.
func IsAuthenticated(ctx context.Context) bool {
	id := IdentityFromContext(ctx)
	return id != nil && !id.IsAnonymous() && !id.IsExpired()
}

// ViewerID returns the principal of an authenticated viewer, or
// AnonymousViewer.
func ViewerID(ctx context.Context) string {
	if !IsAuthenticated(ctx) {
		return AnonymousViewer
	}
	return IdentityFromContext(ctx).Principal
}

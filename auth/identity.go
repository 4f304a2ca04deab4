package auth

import (
	"slices"
	"time"
)

// AuthMethod indicates how a viewer was identified.
type AuthMethod string

const (
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAPIKey    AuthMethod = "api_key"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity is the viewer of a request.
type Identity struct {
	// Principal is the stable viewer id, e.g. a user id.
	Principal string

	Roles  []string
	Method AuthMethod

	// Claims holds the raw token claims or key metadata.
	Claims map[string]any

	// ExpiresAt is zero for identities that do not expire.
	ExpiresAt time.Time
}

// HasRole reports whether the identity has role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsExpired reports whether ExpiresAt has passed.
func (id *Identity) IsExpired() bool {
	return !id.ExpiresAt.IsZero() && time.Now().After(id.ExpiresAt)
}

// IsAnonymous reports whether the identity names no viewer.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// AnonymousIdentity returns the identity of a public request.
func AnonymousIdentity() *Identity {
	return &Identity{Method: AuthMethodAnonymous}
}

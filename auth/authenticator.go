package auth

import (
	"context"
	"errors"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: Authenticate returns (nil, error) for internal errors and
//     (result, nil) for credential failures; check result.Authenticated.
type Authenticator interface {
	Name() string

	// Supports reports whether the request carries credentials this
	// authenticator understands.
	Supports(ctx context.Context, req *AuthRequest) bool

	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest carries the request headers credentials are read from.
type AuthRequest struct {
	Headers http.Header
}

// GetHeader returns the first value of key.
func (r *AuthRequest) GetHeader(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	Authenticated bool
	Identity      *Identity
	// Error is set when Authenticated is false.
	Error  error
	Method string
}

// AuthSuccess returns a successful result for identity.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        string(identity.Method),
	}
}

// AuthFailure returns a failed result.
func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{Error: err, Method: method}
}

// ResolveViewer authenticates headers and returns a context carrying the
// viewer. Requests without credentials get AnonymousIdentity. Requests with
// credentials that fail to validate return the failure; callers reject
// them or serve them anonymously.
func ResolveViewer(ctx context.Context, authn Authenticator, headers http.Header) (context.Context, error) {
	req := &AuthRequest{Headers: headers}
	if authn == nil || !authn.Supports(ctx, req) {
		return WithIdentity(ctx, AnonymousIdentity()), nil
	}

	result, err := authn.Authenticate(ctx, req)
	if err != nil {
		return ctx, err
	}
	if !result.Authenticated {
		if result.Error == nil || errors.Is(result.Error, ErrMissingCredentials) {
			return WithIdentity(ctx, AnonymousIdentity()), nil
		}
		return WithIdentity(ctx, AnonymousIdentity()), result.Error
	}
	return WithIdentity(ctx, result.Identity), nil
}

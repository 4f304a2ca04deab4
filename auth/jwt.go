package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the expected iss claim. Empty skips the check.
	Issuer string

	// Audience is the expected aud claim. Empty skips the check.
	Audience string

	// HeaderName defaults to "Authorization".
	HeaderName string

	// TokenPrefix defaults to "Bearer ".
	TokenPrefix string

	// PrincipalClaim defaults to "sub".
	PrincipalClaim string

	RolesClaim string

	// Methods lists accepted signing algorithms. Default: HS256.
	Methods []string

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

// KeyProvider retrieves signing keys for JWT validation.
type KeyProvider interface {
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider serves one key for every key id.
type StaticKeyProvider struct {
	key any
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key any) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	if p.key == nil {
		return nil, ErrKeyNotFound
	}
	return p.key, nil
}

// JWTAuthenticator validates bearer tokens.
type JWTAuthenticator struct {
	config      JWTConfig
	keyProvider KeyProvider
	parser      *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(config JWTConfig, keyProvider KeyProvider) *JWTAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}
	if len(config.Methods) == 0 {
		config.Methods = []string{jwt.SigningMethodHS256.Alg()}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(config.Methods),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}

	return &JWTAuthenticator{
		config:      config,
		keyProvider: keyProvider,
		parser:      jwt.NewParser(opts...),
	}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string { return "jwt" }

// Supports reports whether the request carries a bearer token.
func (a *JWTAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return strings.HasPrefix(req.GetHeader(a.config.HeaderName), a.config.TokenPrefix)
}

// Authenticate validates the token and builds an identity from its claims.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	header := req.GetHeader(a.config.HeaderName)
	raw, ok := strings.CutPrefix(header, a.config.TokenPrefix)
	if !ok || strings.TrimSpace(raw) == "" {
		return AuthFailure(ErrMissingCredentials, a.Name()), nil
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return a.keyProvider.GetKey(ctx, kid)
	})
	if err != nil {
		return AuthFailure(classifyJWTError(err), a.Name()), nil
	}

	identity := a.buildIdentity(claims)
	if identity.Principal == "" {
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}
	return AuthSuccess(identity), nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, ErrKeyNotFound):
		return ErrKeyNotFound
	default:
		return ErrInvalidCredentials
	}
}

func (a *JWTAuthenticator) buildIdentity(claims jwt.MapClaims) *Identity {
	identity := &Identity{
		Method: AuthMethodJWT,
		Claims: make(map[string]any, len(claims)),
	}
	for k, v := range claims {
		identity.Claims[k] = v
	}

	if principal, ok := claims[a.config.PrincipalClaim].(string); ok {
		identity.Principal = principal
	}
	if a.config.RolesClaim != "" {
		if roles, ok := claims[a.config.RolesClaim].([]any); ok {
			for _, r := range roles {
				if s, ok := r.(string); ok {
					identity.Roles = append(identity.Roles, s)
				}
			}
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity
}

var (
	_ Authenticator = (*JWTAuthenticator)(nil)
	_ KeyProvider   = (*StaticKeyProvider)(nil)
)

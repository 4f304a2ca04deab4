package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName defaults to "X-API-Key".
	HeaderName string
}

// APIKeyInfo describes a registered key. Only the hash is stored.
type APIKeyInfo struct {
	ID        string
	KeyHash   string
	Principal string
	Roles     []string
	// ExpiresAt is zero for keys that never expire.
	ExpiresAt time.Time
	Metadata  map[string]any
}

// APIKeyStore looks keys up by hash. Lookup returns (nil, nil) for
// unknown keys.
type APIKeyStore interface {
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator validates API keys.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	store  APIKeyStore
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(config APIKeyConfig, store APIKeyStore) *APIKeyAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	return &APIKeyAuthenticator{config: config, store: store}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return "api_key" }

// Supports reports whether the key header is present.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return req.GetHeader(a.config.HeaderName) != ""
}

// Authenticate hashes the presented key and looks it up.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	key := strings.TrimSpace(req.GetHeader(a.config.HeaderName))
	if key == "" {
		return AuthFailure(ErrMissingCredentials, a.Name()), nil
	}

	hash := HashAPIKey(key)
	info, err := a.store.Lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	if info == nil || !ConstantTimeCompare(info.KeyHash, hash) {
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}
	if !info.ExpiresAt.IsZero() && time.Now().After(info.ExpiresAt) {
		return AuthFailure(ErrTokenExpired, a.Name()), nil
	}

	claims := make(map[string]any, len(info.Metadata)+1)
	for k, v := range info.Metadata {
		claims[k] = v
	}
	claims["key_id"] = info.ID

	return AuthSuccess(&Identity{
		Principal: info.Principal,
		Roles:     append([]string(nil), info.Roles...),
		Method:    AuthMethodAPIKey,
		Claims:    claims,
		ExpiresAt: info.ExpiresAt,
	}), nil
}

// HashAPIKey returns the hex SHA-256 of key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeCompare compares a and b in constant time.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MemoryAPIKeyStore is an in-memory APIKeyStore.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

// NewMemoryAPIKeyStore creates an empty store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]*APIKeyInfo)}
}

// Lookup returns the key with hash keyHash, or nil.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[keyHash], nil
}

// Add registers info under info.KeyHash.
func (s *MemoryAPIKeyStore) Add(info *APIKeyInfo) error {
	if info == nil || info.KeyHash == "" {
		return errors.New("auth: api key hash required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[info.KeyHash] = info
	return nil
}

// Remove deletes the key with hash keyHash.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyHash)
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)

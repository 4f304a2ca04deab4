package auth

import (
	"context"
	"testing"
	"time"
)

func TestIdentity_Flags(t *testing.T) {
	tests := []struct {
		name      string
		id        *Identity
		anonymous bool
		expired   bool
	}{
		{"anonymous", AnonymousIdentity(), true, false},
		{"no principal", &Identity{Method: AuthMethodJWT}, true, false},
		{"live", &Identity{Principal: "u1", Method: AuthMethodJWT, ExpiresAt: time.Now().Add(time.Hour)}, false, false},
		{"expired", &Identity{Principal: "u1", Method: AuthMethodJWT, ExpiresAt: time.Now().Add(-time.Hour)}, false, true},
		{"never expires", &Identity{Principal: "u1", Method: AuthMethodAPIKey}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.IsAnonymous(); got != tt.anonymous {
				t.Errorf("IsAnonymous() = %v, want %v", got, tt.anonymous)
			}
			if got := tt.id.IsExpired(); got != tt.expired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestIdentity_HasRole(t *testing.T) {
	id := &Identity{Principal: "u1", Roles: []string{"editor"}}
	if !id.HasRole("editor") {
		t.Error("HasRole(editor) = false, want true")
	}
	if id.HasRole("admin") {
		t.Error("HasRole(admin) = true, want false")
	}
}

func TestViewerContext(t *testing.T) {
	tests := []struct {
		name   string
		id     *Identity
		authed bool
		viewer string
	}{
		{"nothing attached", nil, false, AnonymousViewer},
		{"anonymous", AnonymousIdentity(), false, AnonymousViewer},
		{"user", &Identity{Principal: "user-1", Method: AuthMethodJWT}, true, "user-1"},
		{"expired user", &Identity{Principal: "user-1", Method: AuthMethodJWT, ExpiresAt: time.Now().Add(-time.Minute)}, false, AnonymousViewer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.id != nil {
				ctx = WithIdentity(ctx, tt.id)
			}
			if got := IdentityFromContext(ctx); got != tt.id {
				t.Errorf("IdentityFromContext() = %v, want %v", got, tt.id)
			}
			if got := IsAuthenticated(ctx); got != tt.authed {
				t.Errorf("IsAuthenticated() = %v, want %v", got, tt.authed)
			}
			if got := ViewerID(ctx); got != tt.viewer {
				t.Errorf("ViewerID() = %q, want %q", got, tt.viewer)
			}
		})
	}
}

package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"${REDIS_HOST}:6379", "cache.internal:6379"},
		{"$REDIS_HOST", "cache.internal"},
		{"${EMPTY}", ""},
		{"$$${REDIS_HOST}", "$cache.internal"},
		{"plain", "plain"},
		{"$UNSET_BARE", ""},
	}
	for _, tt := range tests {
		got, err := ExpandEnvStrict(tt.in)
		if err != nil {
			t.Errorf("ExpandEnvStrict(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExpandEnvStrict(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandEnvStrict_MissingVarErrors(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := ExpandEnvStrict("a=${PRESENT} b=${MISSING_B} c=${MISSING_A} d=${MISSING_B}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("ExpandEnvStrict() error = %v, want ErrMissingEnv", err)
	}
	if !strings.HasSuffix(err.Error(), "MISSING_A, MISSING_B") {
		t.Errorf("ExpandEnvStrict() error = %q, want sorted unique names", err)
	}
}

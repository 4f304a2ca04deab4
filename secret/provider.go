package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference.
//
// Implementations must be safe for concurrent use and must not log values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvProvider resolves a ref as an environment variable name.
type EnvProvider struct{}

// Name returns "env".
func (EnvProvider) Name() string { return "env" }

// Resolve returns the value of the variable ref.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, ref)
	}
	return v, nil
}

// FileProvider resolves a ref as a file path. Relative paths are joined to
// Dir, e.g. /run/secrets.
type FileProvider struct {
	Dir string
}

// Name returns "file".
func (FileProvider) Name() string { return "file" }

// Resolve returns the file content without trailing newlines.
func (p FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path := filepath.Clean(ref)
	if !filepath.IsAbs(path) {
		if path == ".." || strings.HasPrefix(path, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidRef, ref, p.Dir)
		}
		path = filepath.Join(p.Dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

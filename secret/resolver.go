package secret

import (
	"context"
	"fmt"
	"strings"
)

// RefPrefix marks a value resolved through a Provider.
const RefPrefix = "secretref:"

// Resolver resolves configuration values.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a Resolver with EnvProvider and providers. In strict
// mode an empty resolved secret is an error.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: map[string]Provider{}, strict: strict}
	r.Register(EnvProvider{})
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider with the same name.
func (r *Resolver) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[p.Name()] = p
}

// Resolve expands environment references in value, then resolves it through
// a provider when it is a secret reference. A nil Resolver only expands.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	name, ref, ok := ParseRef(expanded)
	if !ok {
		if strings.HasPrefix(expanded, RefPrefix) {
			return "", fmt.Errorf("%w: %q", ErrInvalidRef, expanded)
		}
		return expanded, nil
	}
	if r == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	resolved, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && resolved == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, name)
	}
	return resolved, nil
}

// ParseRef splits "secretref:<provider>:<ref>".
func ParseRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, RefPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

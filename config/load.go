package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/querycache/secret"
)

// DefaultSecretsDir is where FileProvider looks for relative secret refs.
const DefaultSecretsDir = "/run/secrets"

// LoadOption configures Load and Parse.
type LoadOption func(*loadOptions)

type loadOptions struct {
	resolver *secret.Resolver
}

// WithResolver sets the resolver for credential fields.
func WithResolver(r *secret.Resolver) LoadOption {
	return func(o *loadOptions) { o.resolver = r }
}

// Load reads, resolves and validates the YAML file at path. Keys missing
// from the file keep their Defaults.
func Load(ctx context.Context, path string, opts ...LoadOption) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	s, err := Parse(ctx, data, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes YAML settings. Unknown keys are rejected.
func Parse(ctx context.Context, data []byte, opts ...LoadOption) (*Settings, error) {
	o := loadOptions{
		resolver: secret.NewResolver(true, secret.FileProvider{Dir: DefaultSecretsDir}),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if err := resolveCredentials(ctx, o.resolver, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func resolveCredentials(ctx context.Context, r *secret.Resolver, s *Settings) error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"redis.addr", &s.Redis.Addr},
		{"redis.password", &s.Redis.Password},
		{"jetstream.url", &s.JetStream.URL},
		{"jetstream.token", &s.JetStream.Token},
	}
	for _, f := range fields {
		if *f.ptr == "" {
			continue
		}
		v, err := r.Resolve(ctx, *f.ptr)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f.name, err)
		}
		*f.ptr = v
	}
	return nil
}

package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/document"
	"github.com/jonwraymond/querycache/invalidation"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
	"github.com/jonwraymond/querycache/resilience"
)

// Cache backend names.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendJetStream = "jetstream"
)

// Settings is the complete configuration.
type Settings struct {
	Cache        CacheSettings        `yaml:"cache"`
	Network      NetworkSettings      `yaml:"network"`
	Grant        GrantSettings        `yaml:"grant"`
	Documents    DocumentSettings     `yaml:"documents"`
	GC           GCSettings           `yaml:"gc"`
	Invalidation InvalidationSettings `yaml:"invalidation"`
	Collection   CollectionSettings   `yaml:"collection"`
	Storage      StorageSettings      `yaml:"storage"`
	Redis        RedisSettings        `yaml:"redis"`
	JetStream    JetStreamSettings    `yaml:"jetstream"`
	Log          LogSettings          `yaml:"log"`
	Telemetry    TelemetrySettings    `yaml:"telemetry"`
}

// CacheSettings configures the result cache.
type CacheSettings struct {
	Enabled bool `yaml:"enabled"`
	// TTL and MaxTTL are in seconds. MaxTTL 0 means uncapped.
	TTL       int    `yaml:"ttl"`
	MaxTTL    int    `yaml:"max_ttl"`
	Backend   string `yaml:"backend"`
	KeyPrefix string `yaml:"key_prefix"`
	// FillTimeout bounds one shared execution of a cache miss.
	FillTimeout time.Duration `yaml:"fill_timeout"`
}

// NetworkSettings configures response headers.
type NetworkSettings struct {
	// MaxAge is Access-Control-Max-Age in seconds. Negative sends no header.
	MaxAge float64 `yaml:"max_age"`
}

// GrantSettings configures document access.
type GrantSettings struct {
	Mode string `yaml:"mode"`
}

// DocumentSettings configures persisted documents.
type DocumentSettings struct {
	AutoSave bool `yaml:"auto_save"`
}

// GCSettings configures document garbage collection.
type GCSettings struct {
	Enabled   bool          `yaml:"enabled"`
	Age       time.Duration `yaml:"age"`
	BatchSize int           `yaml:"batch_size"`
	Interval  time.Duration `yaml:"interval"`
}

// InvalidationSettings selects what mutations are tracked.
type InvalidationSettings struct {
	PostTypes       []string `yaml:"post_types"`
	Taxonomies      []string `yaml:"taxonomies"`
	IgnoredMetaKeys []string `yaml:"ignored_meta_keys"`
	TrackedMetaKeys []string `yaml:"tracked_meta_keys"`
}

// CollectionSettings bounds the per-request key list.
type CollectionSettings struct {
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// StorageSettings tunes the circuit breaker around the backend.
type StorageSettings struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	Attempts     int           `yaml:"attempts"`
}

// RedisSettings locates the Redis server.
type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JetStreamSettings locates the NATS server and KV bucket.
type JetStreamSettings struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Bucket string `yaml:"bucket"`
}

// LogSettings configures the structured logger.
type LogSettings struct {
	Level string `yaml:"level"`
}

// TelemetrySettings selects trace and metric exporters.
type TelemetrySettings struct {
	ServiceName string `yaml:"service_name"`
	Tracing     struct {
		Enabled   bool    `yaml:"enabled"`
		Exporter  string  `yaml:"exporter"`
		SamplePct float64 `yaml:"sample_pct"`
	} `yaml:"tracing"`
	Metrics struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"metrics"`
}

// Defaults returns the settings used for keys missing from a file.
func Defaults() Settings {
	inv := invalidation.DefaultConfig()
	return Settings{
		Cache: CacheSettings{
			Enabled:     true,
			TTL:         600,
			MaxTTL:      86400,
			Backend:     BackendMemory,
			KeyPrefix:   cache.DefaultKeyPrefix,
			FillTimeout: 30 * time.Second,
		},
		Network:   NetworkSettings{MaxAge: -1},
		Grant:     GrantSettings{Mode: string(query.GrantPublic)},
		Documents: DocumentSettings{AutoSave: false},
		GC: GCSettings{
			Age:       30 * 24 * time.Hour,
			BatchSize: 100,
			Interval:  time.Hour,
		},
		Invalidation: InvalidationSettings{
			PostTypes:       inv.PostTypes,
			Taxonomies:      inv.Taxonomies,
			IgnoredMetaKeys: inv.IgnoredMetaKeys,
		},
		Collection: CollectionSettings{MaxHeaderBytes: 8 * 1024},
		Storage: StorageSettings{
			Timeout:      250 * time.Millisecond,
			MaxFailures:  5,
			ResetTimeout: 10 * time.Second,
			Attempts:     1,
		},
		JetStream: JetStreamSettings{Bucket: "querycache"},
		Log:       LogSettings{Level: "info"},
		Telemetry: TelemetrySettings{ServiceName: "querycache"},
	}
}

// Validate reports every problem in s, joined.
func (s *Settings) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch s.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if s.Redis.Addr == "" {
			add("redis.addr is required for the redis backend")
		}
	case BackendJetStream:
		if s.JetStream.URL == "" {
			add("jetstream.url is required for the jetstream backend")
		}
		if s.JetStream.Bucket == "" {
			add("jetstream.bucket is required for the jetstream backend")
		}
		if strings.ContainsAny(s.Cache.KeyPrefix, ". *>") {
			add("cache.key_prefix %q is not a valid KV key token", s.Cache.KeyPrefix)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownBackend, s.Cache.Backend))
	}

	if s.Cache.TTL < 0 {
		add("cache.ttl must be >= 0")
	}
	if s.Cache.MaxTTL < 0 {
		add("cache.max_ttl must be >= 0")
	}
	if s.Cache.MaxTTL > 0 && s.Cache.TTL > s.Cache.MaxTTL {
		add("cache.ttl %d exceeds cache.max_ttl %d", s.Cache.TTL, s.Cache.MaxTTL)
	}
	if s.Cache.KeyPrefix == "" {
		add("cache.key_prefix is required")
	}
	if s.Cache.FillTimeout < 0 {
		add("cache.fill_timeout must be >= 0")
	}
	if _, err := query.ParseGrantMode(s.Grant.Mode); err != nil {
		add("grant.mode %q", s.Grant.Mode)
	}
	if s.GC.BatchSize <= 0 {
		add("gc.batch_size must be > 0")
	}
	if s.GC.Age <= 0 {
		add("gc.age must be > 0")
	}
	if s.GC.Enabled && s.GC.Interval <= 0 {
		add("gc.interval must be > 0 when gc is enabled")
	}
	if s.Collection.MaxHeaderBytes < 0 {
		add("collection.max_header_bytes must be >= 0")
	}
	if s.Storage.Attempts < 0 || s.Storage.MaxFailures < 0 {
		add("storage attempts and max_failures must be >= 0")
	}
	obs := s.ObserveConfig()
	if err := obs.Validate(); err != nil {
		add("telemetry: %v", err)
	}
	return errors.Join(errs...)
}

// CachePolicy returns the result cache TTL policy.
func (s *Settings) CachePolicy() cache.Policy {
	if !s.Cache.Enabled || s.Cache.TTL == 0 {
		return cache.NoCachePolicy()
	}
	return cache.Policy{
		DefaultTTL: time.Duration(s.Cache.TTL) * time.Second,
		MaxTTL:     time.Duration(s.Cache.MaxTTL) * time.Second,
	}
}

// QuerySettings returns the request pipeline settings.
func (s *Settings) QuerySettings() query.Settings {
	mode, _ := query.ParseGrantMode(s.Grant.Mode)
	return query.Settings{
		GrantMode:      mode,
		AutoSave:       s.Documents.AutoSave,
		MaxAge:         s.Network.MaxAge,
		MaxHeaderBytes: s.Collection.MaxHeaderBytes,
		FillTimeout:    s.Cache.FillTimeout,
	}
}

// InvalidationConfig returns the invalidation engine configuration.
func (s *Settings) InvalidationConfig() invalidation.Config {
	return invalidation.Config{
		PostTypes:       s.Invalidation.PostTypes,
		Taxonomies:      s.Invalidation.Taxonomies,
		IgnoredMetaKeys: s.Invalidation.IgnoredMetaKeys,
		TrackedMetaKeys: s.Invalidation.TrackedMetaKeys,
	}
}

// CollectorConfig returns the garbage collector configuration.
func (s *Settings) CollectorConfig() document.CollectorConfig {
	return document.CollectorConfig{Age: s.GC.Age, BatchSize: s.GC.BatchSize}
}

// StorageConfig returns the resilience configuration for the backend.
// Backend misses are part of the contract and never trip the breaker.
func (s *Settings) StorageConfig() resilience.StorageConfig {
	return resilience.StorageConfig{
		Timeout:      s.Storage.Timeout,
		MaxFailures:  s.Storage.MaxFailures,
		ResetTimeout: s.Storage.ResetTimeout,
		Attempts:     s.Storage.Attempts,
	}
}

// RedisConfig returns the Redis backend configuration.
func (s *Settings) RedisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:      s.Redis.Addr,
		Password:  s.Redis.Password,
		DB:        s.Redis.DB,
		KeyPrefix: s.Cache.KeyPrefix,
	}
}

// BucketConfig returns the JetStream KV bucket configuration. The bucket
// keeps entries for at most cache.max_ttl.
func (s *Settings) BucketConfig() cache.BucketConfig {
	return cache.BucketConfig{
		Bucket: s.JetStream.Bucket,
		TTL:    time.Duration(s.Cache.MaxTTL) * time.Second,
	}
}

// JetStreamConfig returns the JetStream backend configuration.
func (s *Settings) JetStreamConfig() cache.JetStreamConfig {
	return cache.JetStreamConfig{KeyPrefix: strings.TrimRight(s.Cache.KeyPrefix, "_")}
}

// Logger returns a structured logger at log.level.
func (s *Settings) Logger() observe.Logger {
	return observe.NewLogger(s.Log.Level)
}

// ObserveConfig returns the telemetry configuration. Logging is always on.
func (s *Settings) ObserveConfig() observe.Config {
	t := s.Telemetry
	return observe.Config{
		ServiceName: t.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   t.Tracing.Enabled,
			Exporter:  t.Tracing.Exporter,
			SamplePct: t.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  t.Metrics.Enabled,
			Exporter: t.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{Enabled: true, Level: s.Log.Level},
	}
}

// Observer builds the telemetry providers and a query middleware over them.
// Callers shut the observer down on exit.
func (s *Settings) Observer(ctx context.Context) (observe.Observer, *observe.Middleware, error) {
	obs, err := observe.NewObserver(ctx, s.ObserveConfig())
	if err != nil {
		return nil, nil, err
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, nil, err
	}
	return obs, mw, nil
}

// Package config holds the settings every other package is constructed
// from, loads them from YAML and reloads them when the file changes.
//
// Settings are plain values: components receive the parts they need through
// the conversion methods (CachePolicy, QuerySettings, InvalidationConfig,
// CollectorConfig, StorageConfig) rather than reading global state.
//
// Credential fields (redis.addr, redis.password, jetstream.url,
// jetstream.token) may reference the environment as ${VAR} or a secret as
// secretref:<provider>:<ref>; see package secret.
package config

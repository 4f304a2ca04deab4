// Package cache stores GraphQL execution results.
//
// Backend is the pluggable storage primitive: TTL-aware get, set, delete and
// purge-all, plus append-unique sets used by the collection index.
// MemoryBackend is the in-process reference, RedisBackend and
// JetStreamBackend are the external ones. ResilientBackend puts a circuit
// breaker and timeout in front of any of them.
//
// ResultCache sits on a Backend and never fails a request: storage errors
// are logged and read as misses. KeyBuilder derives result keys from the
// normalized query, variables, operation name and viewer, and Policy turns
// settings into TTLs and Access-Control-Max-Age values.
package cache

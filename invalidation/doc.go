// Package invalidation turns content mutations into cache purges.
//
// Mutations arrive as typed Events on a Bus, which dispatches them
// synchronously to subscribers in registration order. The Engine subscribes
// to every event kind and maps each one to purges of node, list and skipped
// index keys through a collection.Index. Handlers are best-effort: a missing
// related entity is a no-op, and the Bus logs handler errors instead of
// returning them to the publisher.
package invalidation

// Package collection records which entities a GraphQL request touched and
// maintains the reverse index from those entities to cache keys.
//
// A Recorder is created per request and carried in its context. Resolvers
// report entities as GlobalIDs and connection types by name. When the
// request completes, Index.OnRequestComplete appends the request's cache key
// to each recorded index set:
//
//	node:{type}:{id}   entities that appeared in the result
//	list:{type}        connections of type that were resolved
//	skipped:{type}     types whose node keys were dropped from the header
//	url:{cacheKey}     GET URLs that produced cacheKey
//
// Index.Purge evicts every cache key in a set and notifies OnPurge
// listeners. Index sets are append-only and survive purges.
package collection

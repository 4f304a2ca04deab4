// Package query connects a GraphQL execution engine to the result cache,
// the persisted document store and the collection index.
//
// The engine stays external. A host calls Pipeline.Do with the request and
// an ExecuteFunc that runs the engine; Do covers the four engine hook points:
//
//   - pre-parse: a queryId-only request is resolved to the persisted
//     document's content, and queryId+query pairs are saved when auto-save
//     is on.
//   - pre-execute: grant validation runs, then a cached result is returned
//     when one exists for the request's key.
//   - per-field: resolvers report touched entities with FieldResolved, which
//     records them in the request-scoped collection.Recorder carried by ctx.
//   - post-execute: a successful result is stored and the request's index
//     keys are recorded.
//
// Authenticated viewers bypass the cache completely, as do mutations and
// subscriptions.
//
// Errors from the document store and canonicalizer are mapped to GraphQL
// errors with GraphQLError:
//
//	res, err := p.Do(ctx, req, exec)
//	if err != nil {
//		return query.ErrorResponse(err)
//	}
package query

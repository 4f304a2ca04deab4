// Package canonical reduces GraphQL query documents to a single textual form.
//
// Normalize parses query text with gqlparser and re-prints the AST with a
// fixed layout: two-space indentation, one selection per line, no comments,
// and a trailing newline. Two documents that differ only in whitespace,
// commas or comments normalize to the same string, and normalizing an
// already normalized string returns it unchanged.
//
// Hash derives the content identity of a normalized document. It is used as
// the persisted document id and as the query component of result-cache keys.
package canonical

// Package document persists GraphQL query documents.
//
// A QueryDocument holds normalized query text under a stable id. It is
// addressable by the SHA-256 hash of its content and by any number of
// aliases. Exactly one document owns a given content hash and every alias
// belongs to at most one document; a content hash always wins over an alias
// when both could match.
//
// Store is the document service used by request handling (Get, Save) and by
// administration (Create, Update, Delete, List). Collector removes documents
// that have not been updated for a configured age, a bounded batch at a time.
package document

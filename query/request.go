package query

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/jonwraymond/querycache/document"
)

// Response header names.
const (
	HeaderMaxAge  = "Access-Control-Max-Age"
	HeaderQueryID = "X-GraphQL-Query-ID"
	HeaderKeys    = "X-GraphQL-Keys"
)

// Request is an incoming GraphQL request.
type Request struct {
	// QueryID names a persisted document by id, content hash or alias.
	QueryID       string         `json:"queryId,omitempty"`
	Query         string         `json:"query,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`

	// Method and URL describe the transport request. GET URLs are recorded
	// for edge purging.
	Method string `json:"-"`
	URL    string `json:"-"`
}

// Response is a GraphQL response payload.
type Response struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     gqlerror.List   `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

func (r *Response) clone() *Response {
	c := *r
	if r.Extensions != nil {
		c.Extensions = make(map[string]any, len(r.Extensions))
		for k, v := range r.Extensions {
			c.Extensions[k] = v
		}
	}
	return &c
}

// Operation is a prepared request handed to the execution engine.
type Operation struct {
	Request Request

	// Query is the normalized query text to execute.
	Query string
	// Hash is the content hash of Query.
	Hash string
	// Type is the selected operation's type.
	Type ast.Operation
	// Document is the persisted document the request resolved to, if any.
	Document *document.QueryDocument
	// AST is the parsed Query.
	AST *ast.QueryDocument
}

// ExecuteFunc runs op on the execution engine. Resolvers report touched
// entities with Pipeline.FieldResolved using ctx.
type ExecuteFunc func(ctx context.Context, op *Operation) (*Response, error)

// Status is the cache outcome of a request.
type Status string

const (
	StatusHit    Status = "hit"
	StatusMiss   Status = "miss"
	StatusBypass Status = "bypass"
)

// Result is the outcome of Pipeline.Do.
type Result struct {
	Response *Response
	Header   http.Header
	// CacheKey is empty for authenticated viewers and non-query operations.
	CacheKey string
	Status   Status
}

// storedResult is the value written to the result cache.
type storedResult struct {
	Response *Response `json:"response"`
	Keys     string    `json:"keys,omitempty"`
}

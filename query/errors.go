package query

import (
	"context"
	"errors"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/jonwraymond/querycache/canonical"
	"github.com/jonwraymond/querycache/document"
)

var (
	// ErrValidationBlocked is returned when the grant policy rejects a request.
	ErrValidationBlocked = errors.New("query: blocked by grant policy")

	// ErrPersistedQueryNotFound is returned when a queryId resolves to nothing.
	ErrPersistedQueryNotFound = errors.New("query: persisted query not found")

	// ErrNilResultCache is returned when a pipeline is built without a cache.
	ErrNilResultCache = errors.New("query: result cache is nil")

	// ErrNilExecutor is returned when Do is called without an ExecuteFunc.
	ErrNilExecutor = errors.New("query: execute func is nil")

	// ErrEmptyRequest is returned when a request has neither queryId nor query.
	ErrEmptyRequest = errors.New("query: request has no query")

	// ErrUnknownOperation is returned when OperationName matches no operation.
	ErrUnknownOperation = errors.New("query: unknown operation")
)

// Error codes set in extensions.code.
const (
	CodeParseFailed      = "GRAPHQL_PARSE_FAILED"
	CodeNotFound         = "PERSISTED_QUERY_NOT_FOUND"
	CodeConflict         = "DOCUMENT_CONFLICT"
	CodeValidationFailed = "VALIDATION_BLOCKED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// Messages are fixed for the request-level errors clients match on.
const (
	MessagePersistedQueryNotFound = "PersistedQueryNotFound"
	MessageValidationBlocked      = "This query document has been blocked."
)

// GraphQLError converts err into a GraphQL error carrying extensions.code.
// A *gqlerror.Error is returned unchanged.
func GraphQLError(err error) *gqlerror.Error {
	if err == nil {
		return nil
	}

	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlErr
	}

	var syntaxErr *canonical.SyntaxError
	var conflictErr *document.ConflictError

	switch {
	case errors.As(err, &syntaxErr):
		e := &gqlerror.Error{
			Message:    syntaxErr.Message,
			Extensions: map[string]any{"code": CodeParseFailed},
		}
		if syntaxErr.Line > 0 {
			e.Locations = []gqlerror.Location{{Line: syntaxErr.Line, Column: syntaxErr.Column}}
		}
		return e

	case errors.Is(err, ErrPersistedQueryNotFound), errors.Is(err, document.ErrNotFound):
		return &gqlerror.Error{
			Message:    MessagePersistedQueryNotFound,
			Extensions: map[string]any{"code": CodeNotFound},
		}

	case errors.As(err, &conflictErr):
		return &gqlerror.Error{
			Message: "Query ID " + conflictErr.Key + " is already associated with another query document",
			Extensions: map[string]any{
				"code":       CodeConflict,
				"documentId": conflictErr.ExistingID,
			},
		}

	case errors.Is(err, document.ErrConflict):
		return &gqlerror.Error{
			Message:    err.Error(),
			Extensions: map[string]any{"code": CodeConflict},
		}

	case errors.Is(err, ErrValidationBlocked):
		return &gqlerror.Error{
			Message:    MessageValidationBlocked,
			Extensions: map[string]any{"code": CodeValidationFailed},
		}

	case errors.Is(err, ErrEmptyRequest), errors.Is(err, ErrUnknownOperation):
		return &gqlerror.Error{
			Message:    err.Error(),
			Extensions: map[string]any{"code": CodeBadRequest},
		}

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &gqlerror.Error{
			Message:    "Query cancelled",
			Extensions: map[string]any{"code": CodeInternal},
		}
	}

	return &gqlerror.Error{
		Message:    "Internal server error",
		Extensions: map[string]any{"code": CodeInternal},
	}
}

// ErrorResponse returns a response carrying only err.
func ErrorResponse(err error) *Response {
	return &Response{Errors: gqlerror.List{GraphQLError(err)}}
}

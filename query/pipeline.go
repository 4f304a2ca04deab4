package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/querycache/auth"
	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/canonical"
	"github.com/jonwraymond/querycache/collection"
	"github.com/jonwraymond/querycache/document"
	"github.com/jonwraymond/querycache/observe"
)

// CacheInfoMessage is the note attached to responses served from cache.
const CacheInfoMessage = "This response was not executed at run-time but has been returned from the query cache."

// Documents resolves and registers persisted documents.
type Documents interface {
	Lookup(ctx context.Context, idOrAlias string) (document.QueryDocument, error)
	Get(ctx context.Context, idOrAlias string) (string, error)
	Save(ctx context.Context, idOrAlias, query string) (string, error)
}

var _ Documents = (*document.Store)(nil)

// Settings are the request-path settings of a Pipeline.
type Settings struct {
	GrantMode GrantMode

	// AutoSave persists queryId+query pairs before execution.
	AutoSave bool

	// MaxAge is the global Access-Control-Max-Age in seconds. Fractions are
	// truncated; a negative value sends no header.
	MaxAge float64

	// MaxHeaderBytes bounds X-GraphQL-Keys. Zero means unlimited.
	MaxHeaderBytes int

	// TTL for stored results. Zero uses the cache policy default.
	TTL time.Duration

	// FillTimeout bounds a shared miss execution, which runs detached from
	// the callers waiting on it. Zero means no bound.
	FillTimeout time.Duration
}

// DefaultSettings returns public grants, no auto-save and no max-age header.
func DefaultSettings() Settings {
	return Settings{
		GrantMode:      GrantPublic,
		MaxAge:         -1,
		MaxHeaderBytes: 8 * 1024,
		FillTimeout:    30 * time.Second,
	}
}

// Pipeline serves GraphQL requests through the result cache.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent misses on the same
//     key execute once.
//   - Errors: only successful results without GraphQL errors are cached
//     and indexed.
//   - Storage failures degrade to cache misses.
type Pipeline struct {
	results  *cache.ResultCache
	keyer    cache.Keyer
	docs     Documents
	index    *collection.Index
	mw       *observe.Middleware
	logger   observe.Logger
	types    TypeMap
	settings Settings

	group singleflight.Group
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDocuments enables persisted documents.
func WithDocuments(d Documents) Option {
	return func(p *Pipeline) { p.docs = d }
}

// WithIndex records completed requests in ix.
func WithIndex(ix *collection.Index) Option {
	return func(p *Pipeline) { p.index = ix }
}

// WithKeyer replaces the default cache.KeyBuilder.
func WithKeyer(k cache.Keyer) Option {
	return func(p *Pipeline) { p.keyer = k }
}

// WithMiddleware sets the tracing, metrics and logging middleware.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(p *Pipeline) {
		if mw != nil {
			p.mw = mw
		}
	}
}

// WithTypes sets the GraphQL type to index key mapping.
func WithTypes(m TypeMap) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.types = m
		}
	}
}

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) Option {
	return func(p *Pipeline) { p.settings = s }
}

// NewPipeline creates a Pipeline over results.
func NewPipeline(results *cache.ResultCache, opts ...Option) (*Pipeline, error) {
	if results == nil {
		return nil, ErrNilResultCache
	}
	p := &Pipeline{
		results:  results,
		mw:       observe.NewMiddleware(nil, nil, nil),
		types:    DefaultTypes(),
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.keyer == nil {
		var resolver cache.DocumentResolver
		if p.docs != nil {
			resolver = p.docs
		}
		p.keyer = cache.NewKeyBuilder(resolver)
	}
	p.logger = p.mw.Logger()
	return p, nil
}

// Settings returns the pipeline settings.
func (p *Pipeline) Settings() Settings { return p.settings }

// Do serves req, executing it with exec unless a cached result exists.
func (p *Pipeline) Do(ctx context.Context, req Request, exec ExecuteFunc) (*Result, error) {
	if exec == nil {
		return nil, ErrNilExecutor
	}
	rec := collection.NewRecorder()
	ctx = collection.WithRecorder(ctx, rec)

	op, err := p.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	meta := observe.OperationMeta{Name: req.OperationName, Type: string(op.Type)}
	if op.Document != nil {
		meta.QueryID = op.Document.ID
	}

	if err := CheckGrant(p.settings.GrantMode, op.Document); err != nil {
		p.logger.With(meta).Info(ctx, "query blocked", observe.F("grant_mode", string(p.settings.GrantMode)))
		return nil, err
	}

	res := &Result{Header: http.Header{}, Status: StatusBypass}
	if op.Document != nil {
		res.Header.Set(HeaderQueryID, op.Document.ID)
	}

	if op.Type != ast.Query {
		p.mw.Metrics().RecordLookup(ctx, meta, string(StatusBypass))
		resp, err := p.execute(ctx, meta, op, exec)
		if err != nil {
			return nil, err
		}
		res.Response = resp
		return res, nil
	}

	key, keyed := p.cacheKey(ctx, op)
	res.CacheKey = key
	meta.CacheKey = key
	if !keyed || !p.results.Policy().ShouldCache() {
		return p.bypass(ctx, meta, op, key, rec, exec, res)
	}

	if stored, ok := p.lookup(ctx, meta, key); ok {
		p.mw.Metrics().RecordLookup(ctx, meta, string(StatusHit))
		resp := stored.Response.clone()
		if resp.Extensions == nil {
			resp.Extensions = map[string]any{}
		}
		resp.Extensions["cacheInfo"] = map[string]any{
			"message":  CacheInfoMessage,
			"cacheKey": key,
		}
		res.Response, res.Status = resp, StatusHit
		p.cacheHeaders(res.Header, op, stored.Keys)
		return res, nil
	}
	p.mw.Metrics().RecordLookup(ctx, meta, string(StatusMiss))

	// The shared execution outlives any one caller; each caller stops
	// waiting when its own context is done.
	ch := p.group.DoChan(key, func() (any, error) {
		fillCtx, cancel := p.fillContext(ctx)
		defer cancel()
		return p.fill(fillCtx, meta, op, key, rec, exec)
	})
	var shared singleflight.Result
	select {
	case shared = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if shared.Err != nil {
		return nil, shared.Err
	}
	stored := shared.Val.(*storedResult)
	res.Response, res.Status = stored.Response.clone(), StatusMiss
	p.cacheHeaders(res.Header, op, stored.Keys)
	return res, nil
}

// bypass executes a query without reading or writing the result cache. The
// response still gets max-age and key headers, and anonymous requests are
// indexed so purge listeners see their URLs.
func (p *Pipeline) bypass(ctx context.Context, meta observe.OperationMeta, op *Operation, key string, rec *collection.Recorder, exec ExecuteFunc, res *Result) (*Result, error) {
	p.mw.Metrics().RecordLookup(ctx, meta, string(StatusBypass))
	resp, err := p.execute(ctx, meta, op, exec)
	if err != nil {
		return nil, err
	}
	header, indexKeys := rec.HeaderKeys(p.settings.MaxHeaderBytes)
	if key != "" && len(resp.Errors) == 0 {
		p.record(ctx, meta, op, key, indexKeys)
	}
	res.Response = resp
	p.cacheHeaders(res.Header, op, header)
	return res, nil
}

func (p *Pipeline) fillContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if p.settings.FillTimeout > 0 {
		return context.WithTimeout(ctx, p.settings.FillTimeout)
	}
	return ctx, func() {}
}

// Prepare resolves req to the operation to execute. It saves queryId+query
// pairs when auto-save is on and resolves queryId-only requests through the
// document store.
func (p *Pipeline) Prepare(ctx context.Context, req Request) (*Operation, error) {
	req.QueryID = strings.TrimSpace(req.QueryID)
	if req.QueryID == "" && strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyRequest
	}
	op := &Operation{Request: req}

	if req.QueryID != "" && req.Query != "" && p.settings.AutoSave && p.docs != nil {
		if _, err := p.docs.Save(ctx, req.QueryID, req.Query); err != nil {
			return nil, err
		}
	}

	if req.QueryID != "" {
		doc, err := p.document(ctx, req.QueryID)
		switch {
		case err == nil:
			op.Document, op.Query, op.Hash = &doc, doc.Content, doc.Hash
		case !errors.Is(err, document.ErrNotFound):
			return nil, err
		case req.Query == "":
			return nil, fmt.Errorf("%w: %s", ErrPersistedQueryNotFound, req.QueryID)
		}
	}

	if op.Query == "" {
		normalized, hash, err := canonical.NormalizeAndHash(req.Query)
		if err != nil {
			return nil, err
		}
		op.Query, op.Hash = normalized, hash
		if doc, err := p.document(ctx, hash); err == nil {
			op.Document = &doc
		} else if !errors.Is(err, document.ErrNotFound) {
			return nil, err
		}
	}

	parsed, err := canonical.Parse(op.Query)
	if err != nil {
		return nil, err
	}
	selected, err := selectOperation(parsed, req.OperationName)
	if err != nil {
		return nil, err
	}
	op.AST, op.Type = parsed, selected.Operation
	return op, nil
}

func (p *Pipeline) document(ctx context.Context, idOrAlias string) (document.QueryDocument, error) {
	if p.docs == nil {
		return document.QueryDocument{}, document.ErrNotFound
	}
	return p.docs.Lookup(ctx, idOrAlias)
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name == "" {
		if len(doc.Operations) != 1 {
			return nil, fmt.Errorf("%w: operation name required", ErrUnknownOperation)
		}
		return doc.Operations[0], nil
	}
	if op := doc.Operations.ForName(name); op != nil {
		return op, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// cacheKey derives the key of an anonymous query. Authenticated viewers get
// no key and never touch the cache or the index.
func (p *Pipeline) cacheKey(ctx context.Context, op *Operation) (string, bool) {
	if auth.IsAuthenticated(ctx) {
		return "", false
	}
	key, ok, err := p.keyer.Key(ctx, cache.KeyRequest{
		Query:         op.Query,
		Variables:     op.Request.Variables,
		OperationName: op.Request.OperationName,
	})
	if err != nil {
		p.logger.Warn(ctx, "cache key derivation failed", observe.F("error", err))
		return "", false
	}
	return key, ok
}

func (p *Pipeline) lookup(ctx context.Context, meta observe.OperationMeta, key string) (*storedResult, bool) {
	ctx, span := p.mw.Tracer().StartSpan(ctx, "lookup", meta)
	defer p.mw.Tracer().EndSpan(span, nil)

	raw, ok := p.results.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var stored storedResult
	if err := json.Unmarshal(raw, &stored); err != nil || stored.Response == nil {
		p.logger.With(meta).Warn(ctx, "cached result is unreadable", observe.F("error", err))
		p.results.Delete(ctx, key)
		return nil, false
	}
	return &stored, true
}

// fill executes op, then stores and indexes a successful result.
func (p *Pipeline) fill(ctx context.Context, meta observe.OperationMeta, op *Operation, key string, rec *collection.Recorder, exec ExecuteFunc) (*storedResult, error) {
	resp, err := p.execute(ctx, meta, op, exec)
	if err != nil {
		return nil, err
	}
	header, indexKeys := rec.HeaderKeys(p.settings.MaxHeaderBytes)
	stored := &storedResult{Response: resp, Keys: header}
	if len(resp.Errors) > 0 {
		return stored, nil
	}

	ctx, span := p.mw.Tracer().StartSpan(ctx, "store", meta)
	defer p.mw.Tracer().EndSpan(span, nil)

	payload, err := json.Marshal(stored)
	if err != nil {
		p.logger.With(meta).Warn(ctx, "result not cacheable", observe.F("error", err))
		return stored, nil
	}
	if p.results.Set(ctx, key, payload, p.settings.TTL) {
		p.mw.Metrics().RecordStore(ctx, meta)
	}
	p.record(ctx, meta, op, key, indexKeys)
	return stored, nil
}

func (p *Pipeline) record(ctx context.Context, meta observe.OperationMeta, op *Operation, key string, indexKeys []string) {
	if p.index == nil {
		return
	}
	err := p.index.OnRequestComplete(ctx, collection.Completion{
		CacheKey: key,
		Method:   op.Request.Method,
		URL:      op.Request.URL,
		Keys:     indexKeys,
	})
	if err != nil {
		p.logger.With(meta).Warn(ctx, "request not indexed", observe.F("error", err))
	}
}

func (p *Pipeline) execute(ctx context.Context, meta observe.OperationMeta, op *Operation, exec ExecuteFunc) (*Response, error) {
	run := p.mw.Wrap(func(ctx context.Context, _ observe.OperationMeta) (any, error) {
		return exec(ctx, op)
	})
	v, err := run(ctx, meta)
	if err != nil {
		return nil, err
	}
	resp, _ := v.(*Response)
	if resp == nil {
		resp = &Response{}
	}
	return resp, nil
}

// cacheHeaders sets the max-age and key headers of a query response.
func (p *Pipeline) cacheHeaders(h http.Header, op *Operation, keys string) {
	var override *int
	if op.Document != nil {
		override = op.Document.MaxAge
	}
	if age, ok := cache.ResolveMaxAge(override, p.settings.MaxAge); ok {
		h.Set(HeaderMaxAge, strconv.Itoa(age))
	}
	if keys != "" {
		h.Set(HeaderKeys, keys)
	}
}

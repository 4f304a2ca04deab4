package collection

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Recorder is the per-request working set of touched entities and list
// types. Resolvers may run concurrently, so it is safe for concurrent use.
type Recorder struct {
	requestID string

	mu       sync.Mutex
	nodes    []GlobalID
	seenNode map[GlobalID]struct{}
	lists    []string
	seenList map[string]struct{}
}

// NewRecorder returns an empty recorder with a fresh request id.
func NewRecorder() *Recorder {
	return &Recorder{
		requestID: uuid.NewString(),
		seenNode:  make(map[GlobalID]struct{}),
		seenList:  make(map[string]struct{}),
	}
}

type recorderKey struct{}

// WithRecorder returns a context carrying r.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// FromContext returns the recorder in ctx, or nil.
func FromContext(ctx context.Context) *Recorder {
	r, _ := ctx.Value(recorderKey{}).(*Recorder)
	return r
}

// RecordNode records g in the recorder in ctx. It is a no-op without one.
func RecordNode(ctx context.Context, g GlobalID) {
	if r := FromContext(ctx); r != nil {
		r.RecordNode(g)
	}
}

// RecordList records a connection type in the recorder in ctx.
func RecordList(ctx context.Context, typeName string) {
	if r := FromContext(ctx); r != nil {
		r.RecordList(typeName)
	}
}

// RequestID identifies the request the recorder belongs to.
func (r *Recorder) RequestID() string { return r.requestID }

// RecordNode adds g once. Invalid ids are ignored.
func (r *Recorder) RecordNode(g GlobalID) {
	if !g.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seenNode[g]; ok {
		return
	}
	r.seenNode[g] = struct{}{}
	r.nodes = append(r.nodes, g)
}

// RecordList adds a connection type once.
func (r *Recorder) RecordList(typeName string) {
	typeName = strings.ToLower(strings.TrimSpace(typeName))
	if typeName == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seenList[typeName]; ok {
		return
	}
	r.seenList[typeName] = struct{}{}
	r.lists = append(r.lists, typeName)
}

// Nodes returns recorded entities in first-seen order.
func (r *Recorder) Nodes() []GlobalID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]GlobalID(nil), r.nodes...)
}

// Lists returns recorded connection types in first-seen order.
func (r *Recorder) Lists() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lists...)
}

// Reset clears the working set and assigns a new request id.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestID = uuid.NewString()
	r.nodes = nil
	r.lists = nil
	r.seenNode = make(map[GlobalID]struct{})
	r.seenList = make(map[string]struct{})
}

// Keys returns the index keys for the working set: list keys, then node keys.
func (r *Recorder) Keys() []string {
	lists, nodes := r.Lists(), r.Nodes()
	keys := make([]string, 0, len(lists)+len(nodes))
	for _, l := range lists {
		keys = append(keys, ListKey(l))
	}
	for _, n := range nodes {
		keys = append(keys, NodeKey(n))
	}
	return keys
}

// HeaderKeys returns the space-separated header value for the working set
// and the index keys the request should be recorded under.
//
// When the header would exceed maxBytes, node keys are replaced type by type
// (most numerous first) with skipped:{type}. The skipped keys are added to
// the returned index keys so that purging any node of that type still
// reaches the request. maxBytes <= 0 means unlimited.
func (r *Recorder) HeaderKeys(maxBytes int) (header string, indexKeys []string) {
	lists, nodes := r.Lists(), r.Nodes()
	indexKeys = r.Keys()
	header = strings.Join(indexKeys, " ")
	if maxBytes <= 0 || len(header) <= maxBytes {
		return header, indexKeys
	}

	type group struct {
		typ   string
		count int
		first int
	}
	groups := map[string]*group{}
	var order []*group
	for i, n := range nodes {
		g, ok := groups[n.Type]
		if !ok {
			g = &group{typ: n.Type, first: i}
			groups[n.Type] = g
			order = append(order, g)
		}
		g.count++
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].count > order[j].count })

	skipped := map[string]bool{}
	for _, g := range order {
		skipped[g.typ] = true
		indexKeys = append(indexKeys, SkippedKey(g.typ))

		header = strings.Join(headerKeys(lists, nodes, skipped), " ")
		if len(header) <= maxBytes {
			return header, indexKeys
		}
	}
	return truncate(headerKeys(lists, nodes, skipped), maxBytes), indexKeys
}

// headerKeys lists keys with the node keys of skipped types collapsed into
// one skipped key at the position of the type's first node.
func headerKeys(lists []string, nodes []GlobalID, skipped map[string]bool) []string {
	keys := make([]string, 0, len(lists)+len(nodes))
	for _, l := range lists {
		keys = append(keys, ListKey(l))
	}
	emitted := map[string]bool{}
	for _, n := range nodes {
		if !skipped[n.Type] {
			keys = append(keys, NodeKey(n))
			continue
		}
		if !emitted[n.Type] {
			emitted[n.Type] = true
			keys = append(keys, SkippedKey(n.Type))
		}
	}
	return keys
}

// truncate joins whole keys while they fit in maxBytes.
func truncate(keys []string, maxBytes int) string {
	var b strings.Builder
	for _, k := range keys {
		extra := len(k)
		if b.Len() > 0 {
			extra++
		}
		if b.Len()+extra > maxBytes {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
	}
	return b.String()
}

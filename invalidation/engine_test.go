package invalidation

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/collection"
)

type fakeEntities struct {
	posts map[string]PostRef
	menus map[string][]string
	err   error
}

func (f *fakeEntities) Post(_ context.Context, id string) (PostRef, error) {
	if f.err != nil {
		return PostRef{}, f.err
	}
	p, ok := f.posts[id]
	if !ok {
		return PostRef{}, ErrEntityNotFound
	}
	return p, nil
}

func (f *fakeEntities) MenuLocations(_ context.Context, id string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	locs, ok := f.menus[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return locs, nil
}

type harness struct {
	t       *testing.T
	results *cache.ResultCache
	index   *collection.Index
	engine  *Engine
	purged  []string
}

func newHarness(t *testing.T, entities Entities) *harness {
	t.Helper()
	backend := cache.NewMemoryBackend()
	results, err := cache.NewResultCache(backend)
	if err != nil {
		t.Fatalf("NewResultCache() error = %v", err)
	}
	index, err := collection.NewIndex(backend, results)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	engine, err := NewEngine(index, results, DefaultConfig(), WithEntities(entities))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	h := &harness{t: t, results: results, index: index, engine: engine}
	index.OnPurge(func(_ context.Context, ev collection.PurgeEvent) {
		h.purged = append(h.purged, ev.Key)
	})
	return h
}

// cached stores a result under key and records it under indexKeys.
func (h *harness) cached(key string, indexKeys ...string) {
	h.t.Helper()
	ctx := context.Background()
	if !h.results.Set(ctx, key, []byte("result:"+key), 0) {
		h.t.Fatalf("Set(%s) = false", key)
	}
	if err := h.index.OnRequestComplete(ctx, collection.Completion{CacheKey: key, Keys: indexKeys}); err != nil {
		h.t.Fatalf("OnRequestComplete(%s) error = %v", key, err)
	}
}

func (h *harness) present(key string) bool {
	_, ok := h.results.Get(context.Background(), key)
	return ok
}

// kept fails the test if any key was evicted.
func (h *harness) kept(keys ...string) {
	h.t.Helper()
	for _, k := range keys {
		if !h.present(k) {
			h.t.Errorf("%s evicted, want kept", k)
		}
	}
}

// evicted fails the test if any key is still cached.
func (h *harness) evicted(keys ...string) {
	h.t.Helper()
	for _, k := range keys {
		if h.present(k) {
			h.t.Errorf("%s still cached, want evicted", k)
		}
	}
}

func (h *harness) handle(ev Event) {
	h.t.Helper()
	if err := h.engine.Handle(context.Background(), ev); err != nil {
		h.t.Fatalf("Handle(%s) error = %v", ev.Kind(), err)
	}
}

func TestNewEngine_Validation(t *testing.T) {
	results, _ := cache.NewResultCache(cache.NewMemoryBackend())
	if _, err := NewEngine(nil, results, DefaultConfig()); !errors.Is(err, ErrNilIndex) {
		t.Errorf("NewEngine(nil index) error = %v, want %v", err, ErrNilIndex)
	}

	index, _ := collection.NewIndex(cache.NewMemoryBackend(), results)
	if _, err := NewEngine(index, nil, DefaultConfig()); !errors.Is(err, ErrNilResultCache) {
		t.Errorf("NewEngine(nil results) error = %v, want %v", err, ErrNilResultCache)
	}
}

func TestEngine_NewlyPublishedPostPurgesList(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("K", "list:post", "node:post:foo")
	h.cached("other", "node:post:foo")

	h.handle(PostTransition{Post: PostRef{ID: "bar", Type: "post", Status: StatusPublish}, OldStatus: "new"})

	h.evicted("K")
	h.kept("other")
	if !slices.Equal(h.purged, []string{"list:post"}) {
		t.Errorf("purged = %v, want [list:post]", h.purged)
	}

	members, err := h.index.Retrieve(context.Background(), "list:post")
	if err != nil || len(members) == 0 {
		t.Errorf("Retrieve(list:post) = %v, %v, want the index to persist", members, err)
	}
}

func TestEngine_UpdatedPostPurgesOnlyItsNode(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("K", "node:post:P")
	h.cached("L", "list:post")

	h.handle(PostTransition{Post: PostRef{ID: "P", Type: "post", Status: StatusPublish}, OldStatus: StatusPublish})

	h.evicted("K")
	h.kept("L")
	// An empty skipped set does not notify.
	if !slices.Equal(h.purged, []string{"node:post:P"}) {
		t.Errorf("purged = %v, want [node:post:P]", h.purged)
	}
}

func TestEngine_UnpublishPurgesNode(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("K", "node:post:P")
	h.cached("L", "list:post")

	h.handle(PostTransition{Post: PostRef{ID: "P", Type: "post", Status: "draft"}, OldStatus: StatusPublish})

	h.evicted("K")
	h.kept("L")
}

func TestEngine_PostTransitionNoOps(t *testing.T) {
	tests := []struct {
		name string
		ev   PostTransition
	}{
		{"draft to draft", PostTransition{Post: PostRef{ID: "P", Type: "post", Status: "draft"}, OldStatus: "draft"}},
		{"new draft", PostTransition{Post: PostRef{ID: "P", Type: "post", Status: "draft"}, OldStatus: "new"}},
		{"autosave", PostTransition{Post: PostRef{ID: "P", Type: "post", Status: StatusPublish}, OldStatus: StatusPublish, Autosave: true}},
		{"revision", PostTransition{Post: PostRef{ID: "P", Type: "post", Status: StatusPublish}, OldStatus: StatusPublish, Revision: true}},
		{"untracked type", PostTransition{Post: PostRef{ID: "P", Type: "wp_template", Status: StatusPublish}, OldStatus: "new"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.cached("K", "node:post:P", "list:post", "list:wp_template")
			h.handle(tt.ev)
			h.kept("K")
			if len(h.purged) != 0 {
				t.Errorf("purged = %v, want none", h.purged)
			}
		})
	}
}

func TestEngine_AuthorReassignment(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("post", "node:post:P")
	h.cached("old", "node:user:1")
	h.cached("new", "node:user:2")
	h.cached("bystander", "node:user:3")

	h.handle(PostTransition{
		Post:           PostRef{ID: "P", Type: "post", Status: StatusPublish, Author: "2"},
		OldStatus:      StatusPublish,
		PreviousAuthor: "1",
	})

	h.evicted("post")
	h.evicted("old")
	h.evicted("new")
	h.kept("bystander")
}

func TestEngine_PostDeleted(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("pub", "node:post:1")
	h.cached("draft", "node:post:2")

	h.handle(PostDeleted{Post: PostRef{ID: "1", Type: "post", Status: StatusPublish}})
	h.handle(PostDeleted{Post: PostRef{ID: "2", Type: "post", Status: "draft"}})

	h.evicted("pub")
	h.kept("draft")
}

func TestEngine_PostMeta(t *testing.T) {
	entities := &fakeEntities{posts: map[string]PostRef{
		"1": {ID: "1", Type: "post", Status: StatusPublish},
		"2": {ID: "2", Type: "post", Status: "draft"},
	}}

	tests := []struct {
		name    string
		ev      PostMetaChanged
		evicted bool
	}{
		{"public key on visible post", PostMetaChanged{PostID: "1", MetaKey: "subtitle"}, true},
		{"private key", PostMetaChanged{PostID: "1", MetaKey: "_edit_lock"}, false},
		{"ignored key", PostMetaChanged{PostID: "1", MetaKey: "session_tokens"}, false},
		{"draft post", PostMetaChanged{PostID: "2", MetaKey: "subtitle"}, false},
		{"missing post", PostMetaChanged{PostID: "404", MetaKey: "subtitle"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, entities)
			h.cached("K", "node:post:"+tt.ev.PostID)
			h.handle(tt.ev)
			if tt.evicted {
				h.evicted("K")
			} else {
				h.kept("K")
			}
		})
	}
}

func TestEngine_PostMetaLookupFailure(t *testing.T) {
	h := newHarness(t, &fakeEntities{err: errors.New("db down")})
	h.cached("K", "node:post:1")

	err := h.engine.Handle(context.Background(), PostMetaChanged{PostID: "1", MetaKey: "subtitle"})
	if err == nil {
		t.Error("Handle() error = nil, want the lookup failure")
	}
	h.kept("K")
}

func TestEngine_PostMetaWithoutEntities(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("K", "node:post:1")
	h.handle(PostMetaChanged{PostID: "1", MetaKey: "subtitle"})
	h.kept("K")
}

func TestEngine_Terms(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("list", "list:category")
	h.cached("node", "node:term:5")
	h.cached("untracked", "list:private_tax", "node:term:9")

	h.handle(TermCreated{Term: TermRef{ID: "6", Taxonomy: "private_tax"}})
	h.handle(TermUpdated{Term: TermRef{ID: "9", Taxonomy: "private_tax"}})
	h.kept("untracked")

	h.handle(TermCreated{Term: TermRef{ID: "6", Taxonomy: "category"}})
	h.evicted("list")
	h.kept("node")

	h.handle(TermUpdated{Term: TermRef{ID: "5", Taxonomy: "category"}})
	h.evicted("node")
}

func TestEngine_TermDeletedAndMeta(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("a", "node:term:1")
	h.cached("b", "node:term:2")

	h.handle(TermMetaChanged{Term: TermRef{ID: "2", Taxonomy: "post_tag"}, MetaKey: "_private"})
	h.kept("b")
	h.handle(TermMetaChanged{Term: TermRef{ID: "2", Taxonomy: "post_tag"}, MetaKey: "color"})
	h.evicted("b")

	h.handle(TermDeleted{Term: TermRef{ID: "1", Taxonomy: "category"}})
	h.evicted("a")
}

func TestEngine_Users(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("profile", "node:user:1")
	h.cached("meta", "node:user:2")

	h.handle(UserMetaChanged{UserID: "2", MetaKey: "session_tokens"})
	h.kept("meta")
	h.handle(UserMetaChanged{UserID: "2", MetaKey: "description"})
	h.evicted("meta")

	h.handle(UserUpdated{UserID: "1"})
	h.evicted("profile")
}

func TestEngine_UserDeletedWithReassignment(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("deleted", "node:user:1")
	h.cached("p10", "node:post:10")
	h.cached("p11", "node:post:11")
	h.cached("heir", "node:user:2")
	h.cached("p12", "node:post:12")

	h.handle(UserDeleted{UserID: "1", ReassignTo: "2", ReassignedPosts: []string{"10", "11"}})

	h.evicted("deleted", "p10", "p11", "heir")
	h.kept("p12")
}

func TestEngine_UserDeletedWithoutReassignment(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("deleted", "node:user:1")
	h.cached("p10", "node:post:10")

	h.handle(UserDeleted{UserID: "1", ReassignedPosts: []string{"10"}})
	h.evicted("deleted")
	h.kept("p10")
}

func TestEngine_MenuUpdated(t *testing.T) {
	entities := &fakeEntities{menus: map[string][]string{
		"primary": {"header"},
		"draft":   {},
	}}
	h := newHarness(t, entities)
	h.cached("assigned", "node:menu:primary")
	h.cached("item", "node:menu_item:7")
	h.cached("unassigned", "node:menu:draft")
	h.cached("unknown", "node:menu:gone")

	h.handle(MenuUpdated{MenuID: "draft"})
	h.handle(MenuUpdated{MenuID: "gone"})
	h.kept("unassigned")
	h.kept("unknown")

	h.handle(MenuUpdated{MenuID: "primary", ItemIDs: []string{"7"}})
	h.evicted("assigned")
	h.evicted("item")
}

func TestEngine_MenuLocationsChanged(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("list", "list:menu")
	h.cached("m1", "node:menu:1")
	h.cached("m2", "node:menu:2")
	h.cached("m3", "node:menu:3")

	h.handle(MenuLocationsChanged{
		Previous: map[string]string{"header": "1", "footer": "3"},
		Current:  map[string]string{"header": "1", "footer": "3"},
	})
	h.kept("list")

	h.handle(MenuLocationsChanged{
		Previous: map[string]string{"header": "1", "footer": "3"},
		Current:  map[string]string{"header": "2", "footer": "3"},
	})
	h.evicted("list")
	h.evicted("m1")
	h.evicted("m2")
	h.kept("m3")
}

func TestEngine_Attachments(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("list", "list:attachment")
	h.cached("node", "node:post:99")

	h.handle(AttachmentChanged{ID: "99", Action: AttachmentCreated})
	h.evicted("list")
	h.kept("node")

	h.handle(AttachmentChanged{ID: "99", Action: AttachmentUpdated})
	h.evicted("node")
}

func TestEngine_Comments(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		evicted  []string
	}{
		{"approve", "hold", CommentStatusApproved, []string{"list"}},
		{"unapprove", CommentStatusApproved, "spam", []string{"node"}},
		{"hold to spam", "hold", "spam", nil},
		{"approved to approved", CommentStatusApproved, CommentStatusApproved, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.cached("list", "list:comment")
			h.cached("node", "node:comment:3")

			h.handle(CommentTransition{CommentID: "3", PostID: "1", OldStatus: tt.from, NewStatus: tt.to})
			for _, k := range []string{"list", "node"} {
				if slices.Contains(tt.evicted, k) {
					h.evicted(k)
				} else {
					h.kept(k)
				}
			}
		})
	}
}

func TestEngine_PurgeAll(t *testing.T) {
	for _, ev := range []Event{SettingsChanged{}, PurgeAllRequested{Reason: "admin"}} {
		h := newHarness(t, nil)
		h.cached("a", "node:post:1")
		h.cached("b")
		h.handle(ev)
		h.evicted("a", "b")
	}
}

func TestEngine_RegisterOnBus(t *testing.T) {
	h := newHarness(t, nil)
	h.cached("K", "node:post:P")

	bus := NewBus(nil)
	h.engine.Register(bus)
	failed := bus.Publish(context.Background(), PostTransition{
		Post:      PostRef{ID: "P", Type: "post", Status: StatusPublish},
		OldStatus: StatusPublish,
	})
	if failed != 0 {
		t.Errorf("Publish() failed = %d, want 0", failed)
	}
	h.evicted("K")
}

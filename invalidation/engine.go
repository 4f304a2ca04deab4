package invalidation

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/collection"
	"github.com/jonwraymond/querycache/observe"
)

// Node type prefixes used in global ids.
const (
	NodePost     = "post"
	NodeTerm     = "term"
	NodeUser     = "user"
	NodeComment  = "comment"
	NodeMenu     = "menu"
	NodeMenuItem = "menu_item"
)

// List keys for types that are not post types or taxonomies.
const (
	ListComment    = "comment"
	ListMenu       = "menu"
	ListAttachment = "attachment"
)

// Entities looks up current entity state during event handling.
// Implementations return ErrEntityNotFound for missing entities.
type Entities interface {
	Post(ctx context.Context, id string) (PostRef, error)
	MenuLocations(ctx context.Context, menuID string) ([]string, error)
}

// Config selects what the engine tracks.
type Config struct {
	// PostTypes are the trackable post types.
	PostTypes []string
	// Taxonomies are the trackable taxonomies.
	Taxonomies []string
	// IgnoredMetaKeys never invalidate.
	IgnoredMetaKeys []string
	// TrackedMetaKeys always invalidate, even when private by convention.
	TrackedMetaKeys []string
	// MetaOverride has the final say on meta tracking.
	MetaOverride MetaOverride
}

// DefaultConfig tracks posts, pages and attachments, categories and tags,
// and ignores session bookkeeping meta.
func DefaultConfig() Config {
	return Config{
		PostTypes:       []string{"post", "page", "attachment"},
		Taxonomies:      []string{"category", "post_tag"},
		IgnoredMetaKeys: []string{"session_tokens", "last_update", "dismissed_wp_pointers", "community-events-location"},
	}
}

// Engine maps mutation events to purges.
type Engine struct {
	index    *collection.Index
	results  *cache.ResultCache
	entities Entities
	config   Config
	meta     *MetaPolicy
	logger   observe.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEntities sets the entity lookup used by handlers that need current
// state. Without one those handlers are no-ops.
func WithEntities(e Entities) EngineOption {
	return func(en *Engine) { en.entities = e }
}

// WithLogger sets the engine logger.
func WithLogger(l observe.Logger) EngineOption {
	return func(en *Engine) {
		if l != nil {
			en.logger = l
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(index *collection.Index, results *cache.ResultCache, config Config, opts ...EngineOption) (*Engine, error) {
	if index == nil {
		return nil, ErrNilIndex
	}
	if results == nil {
		return nil, ErrNilResultCache
	}
	e := &Engine{
		index:   index,
		results: results,
		config:  config,
		meta:    NewMetaPolicy(config.IgnoredMetaKeys, config.TrackedMetaKeys, config.MetaOverride),
		logger:  observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Register subscribes the engine to every event on bus.
func (e *Engine) Register(bus *Bus) {
	bus.SubscribeAll(e.Handle)
}

// MetaPolicy returns the trackability predicate in use.
func (e *Engine) MetaPolicy() *MetaPolicy { return e.meta }

// Handle applies the invalidation policy for ev.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	switch ev := ev.(type) {
	case PostTransition:
		return e.postTransition(ctx, ev)
	case PostDeleted:
		if !e.trackedPostType(ev.Post.Type) || !ev.Post.Visible() {
			return nil
		}
		return e.purgeNodes(ctx, NodePost, ev.Post.ID)
	case PostMetaChanged:
		return e.postMeta(ctx, ev)
	case TermCreated:
		if !e.trackedTaxonomy(ev.Term.Taxonomy) {
			return nil
		}
		return e.purgeList(ctx, ev.Term.Taxonomy)
	case TermUpdated:
		return e.term(ctx, ev.Term)
	case TermDeleted:
		return e.term(ctx, ev.Term)
	case TermMetaChanged:
		if !e.trackedTaxonomy(ev.Term.Taxonomy) {
			return nil
		}
		if !e.meta.ShouldTrack(ctx, MetaChange{Target: NodeTerm, TargetID: ev.Term.ID, Key: ev.MetaKey, Value: ev.Value}) {
			return nil
		}
		return e.purgeNodes(ctx, NodeTerm, ev.Term.ID)
	case UserUpdated:
		return e.purgeNodes(ctx, NodeUser, ev.UserID)
	case UserMetaChanged:
		if !e.meta.ShouldTrack(ctx, MetaChange{Target: NodeUser, TargetID: ev.UserID, Key: ev.MetaKey, Value: ev.Value}) {
			return nil
		}
		return e.purgeNodes(ctx, NodeUser, ev.UserID)
	case UserDeleted:
		return e.userDeleted(ctx, ev)
	case MenuUpdated:
		return e.menuUpdated(ctx, ev)
	case MenuLocationsChanged:
		return e.menuLocations(ctx, ev)
	case AttachmentChanged:
		return e.attachment(ctx, ev)
	case CommentTransition:
		return e.comment(ctx, ev)
	case SettingsChanged:
		return e.purgeAll(ctx, "settings changed")
	case PurgeAllRequested:
		return e.purgeAll(ctx, ev.Reason)
	default:
		return nil
	}
}

// postTransition purges only when visibility is involved: a newly visible
// post changes list membership, an edit or unpublish of a visible post
// changes the post itself.
func (e *Engine) postTransition(ctx context.Context, ev PostTransition) error {
	if ev.Autosave || ev.Revision || !e.trackedPostType(ev.Post.Type) {
		return nil
	}

	wasVisible := ev.OldStatus == StatusPublish
	isVisible := ev.Post.Visible()

	switch {
	case !wasVisible && !isVisible:
		return nil
	case !wasVisible && isVisible:
		return e.purgeList(ctx, ev.Post.Type)
	}

	var errs []error
	errs = append(errs, e.purgeNodes(ctx, NodePost, ev.Post.ID))
	if isVisible && ev.PreviousAuthor != "" && ev.PreviousAuthor != ev.Post.Author {
		errs = append(errs,
			e.purgeNodes(ctx, NodeUser, ev.PreviousAuthor),
			e.purgeNodes(ctx, NodeUser, ev.Post.Author),
		)
	}
	return errors.Join(errs...)
}

func (e *Engine) postMeta(ctx context.Context, ev PostMetaChanged) error {
	if !e.meta.ShouldTrack(ctx, MetaChange{Target: NodePost, TargetID: ev.PostID, Key: ev.MetaKey, Value: ev.Value}) {
		return nil
	}
	post, ok, err := e.lookupPost(ctx, ev.PostID)
	if err != nil || !ok {
		return err
	}
	if !e.trackedPostType(post.Type) || !post.Visible() {
		return nil
	}
	return e.purgeNodes(ctx, NodePost, post.ID)
}

func (e *Engine) term(ctx context.Context, t TermRef) error {
	if !e.trackedTaxonomy(t.Taxonomy) {
		return nil
	}
	return e.purgeNodes(ctx, NodeTerm, t.ID)
}

func (e *Engine) userDeleted(ctx context.Context, ev UserDeleted) error {
	errs := []error{e.purgeNodes(ctx, NodeUser, ev.UserID)}
	if ev.ReassignTo == "" {
		return errors.Join(errs...)
	}
	for _, id := range ev.ReassignedPosts {
		errs = append(errs, e.purgeNodes(ctx, NodePost, id))
	}
	errs = append(errs, e.purgeNodes(ctx, NodeUser, ev.ReassignTo))
	return errors.Join(errs...)
}

// menuUpdated propagates only for menus assigned to a location.
func (e *Engine) menuUpdated(ctx context.Context, ev MenuUpdated) error {
	if e.entities == nil {
		return nil
	}
	locations, err := e.entities.MenuLocations(ctx, ev.MenuID)
	if errors.Is(err, ErrEntityNotFound) || (err == nil && len(locations) == 0) {
		e.logger.Debug(ctx, "menu not assigned, skipping", observe.F("menu_id", ev.MenuID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalidation: menu %s locations: %w", ev.MenuID, err)
	}

	errs := []error{e.purgeNodes(ctx, NodeMenu, ev.MenuID)}
	for _, item := range ev.ItemIDs {
		errs = append(errs, e.purgeNodes(ctx, NodeMenuItem, item))
	}
	return errors.Join(errs...)
}

// menuLocations purges the menu list and each menu whose assignment changed.
func (e *Engine) menuLocations(ctx context.Context, ev MenuLocationsChanged) error {
	var changed []string
	note := func(menuID string) {
		if menuID != "" && menuID != "0" && !slices.Contains(changed, menuID) {
			changed = append(changed, menuID)
		}
	}
	for loc, prev := range ev.Previous {
		if ev.Current[loc] != prev {
			note(prev)
			note(ev.Current[loc])
		}
	}
	for loc, cur := range ev.Current {
		if _, ok := ev.Previous[loc]; !ok {
			note(cur)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	slices.Sort(changed)

	errs := []error{e.purgeList(ctx, ListMenu)}
	for _, id := range changed {
		errs = append(errs, e.purgeNodes(ctx, NodeMenu, id))
	}
	return errors.Join(errs...)
}

func (e *Engine) attachment(ctx context.Context, ev AttachmentChanged) error {
	if !e.trackedPostType(ListAttachment) {
		return nil
	}
	switch ev.Action {
	case AttachmentCreated:
		return e.purgeList(ctx, ListAttachment)
	case AttachmentUpdated, AttachmentDeleted:
		return e.purgeNodes(ctx, NodePost, ev.ID)
	default:
		return nil
	}
}

// comment invalidates only when the approved boundary is crossed.
func (e *Engine) comment(ctx context.Context, ev CommentTransition) error {
	was := ev.OldStatus == CommentStatusApproved
	is := ev.NewStatus == CommentStatusApproved
	switch {
	case !was && is:
		return e.purgeList(ctx, ListComment)
	case was && !is:
		return e.purgeNodes(ctx, NodeComment, ev.CommentID)
	default:
		return nil
	}
}

func (e *Engine) purgeAll(ctx context.Context, reason string) error {
	n, ok := e.results.PurgeAll(ctx)
	if !ok {
		return fmt.Errorf("invalidation: purge all failed")
	}
	e.logger.Info(ctx, "result cache purged", observe.F("reason", reason), observe.F("entries", n))
	return nil
}

func (e *Engine) lookupPost(ctx context.Context, id string) (PostRef, bool, error) {
	if e.entities == nil {
		return PostRef{}, false, nil
	}
	post, err := e.entities.Post(ctx, id)
	if errors.Is(err, ErrEntityNotFound) {
		e.logger.Debug(ctx, "post not found, skipping", observe.F("post_id", id))
		return PostRef{}, false, nil
	}
	if err != nil {
		return PostRef{}, false, fmt.Errorf("invalidation: post %s: %w", id, err)
	}
	return post, true, nil
}

func (e *Engine) purgeNodes(ctx context.Context, typePrefix, id string) error {
	if id == "" || id == "0" {
		return nil
	}
	if _, err := e.index.PurgeNodes(ctx, typePrefix, id); err != nil {
		return fmt.Errorf("invalidation: purge %s:%s: %w", typePrefix, id, err)
	}
	return nil
}

func (e *Engine) purgeList(ctx context.Context, typeName string) error {
	if _, err := e.index.PurgeList(ctx, typeName); err != nil {
		return fmt.Errorf("invalidation: purge list %s: %w", typeName, err)
	}
	return nil
}

func (e *Engine) trackedPostType(t string) bool {
	return slices.Contains(e.config.PostTypes, t)
}

func (e *Engine) trackedTaxonomy(t string) bool {
	return slices.Contains(e.config.Taxonomies, t)
}

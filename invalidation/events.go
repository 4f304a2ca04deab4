package invalidation

// EventKind discriminates mutation events.
type EventKind int

const (
	KindPostTransition EventKind = iota + 1
	KindPostDeleted
	KindPostMetaChanged
	KindTermCreated
	KindTermUpdated
	KindTermDeleted
	KindTermMetaChanged
	KindUserUpdated
	KindUserMetaChanged
	KindUserDeleted
	KindMenuUpdated
	KindMenuLocationsChanged
	KindAttachmentChanged
	KindCommentTransition
	KindSettingsChanged
	KindPurgeAllRequested
)

var kindNames = map[EventKind]string{
	KindPostTransition:       "post_transition",
	KindPostDeleted:          "post_deleted",
	KindPostMetaChanged:      "post_meta_changed",
	KindTermCreated:          "term_created",
	KindTermUpdated:          "term_updated",
	KindTermDeleted:          "term_deleted",
	KindTermMetaChanged:      "term_meta_changed",
	KindUserUpdated:          "user_updated",
	KindUserMetaChanged:      "user_meta_changed",
	KindUserDeleted:          "user_deleted",
	KindMenuUpdated:          "menu_updated",
	KindMenuLocationsChanged: "menu_locations_changed",
	KindAttachmentChanged:    "attachment_changed",
	KindCommentTransition:    "comment_transition",
	KindSettingsChanged:      "settings_changed",
	KindPurgeAllRequested:    "purge_all_requested",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a content mutation.
type Event interface {
	Kind() EventKind
}

// StatusPublish is the only post status visible to anonymous readers.
const StatusPublish = "publish"

// PostRef identifies a post and its current state.
type PostRef struct {
	ID     string
	Type   string // post type, e.g. "post" or "page"
	Status string
	Author string
}

// Visible reports whether anonymous readers can see the post.
func (p PostRef) Visible() bool { return p.Status == StatusPublish }

// PostTransition is published when a post is saved. Post carries the new
// state; OldStatus is "new" or "" for a post that did not exist.
type PostTransition struct {
	Post           PostRef
	OldStatus      string
	PreviousAuthor string
	Autosave       bool
	Revision       bool
}

// PostDeleted is published when a post is deleted.
type PostDeleted struct {
	Post PostRef
}

// PostMetaChanged is published when post meta is added, updated or deleted.
type PostMetaChanged struct {
	PostID  string
	MetaKey string
	Value   any
	Deleted bool
}

// TermRef identifies a taxonomy term.
type TermRef struct {
	ID       string
	Taxonomy string
}

type TermCreated struct{ Term TermRef }
type TermUpdated struct{ Term TermRef }
type TermDeleted struct{ Term TermRef }

// TermMetaChanged is published when term meta changes.
type TermMetaChanged struct {
	Term    TermRef
	MetaKey string
	Value   any
	Deleted bool
}

// UserUpdated is published when a user profile changes.
type UserUpdated struct{ UserID string }

// UserMetaChanged is published when user meta changes.
type UserMetaChanged struct {
	UserID  string
	MetaKey string
	Value   any
	Deleted bool
}

// UserDeleted is published when a user is deleted. When ReassignTo is set,
// ReassignedPosts lists the posts moved to that user.
type UserDeleted struct {
	UserID          string
	ReassignTo      string
	ReassignedPosts []string
}

// MenuUpdated is published when a menu or its items change.
type MenuUpdated struct {
	MenuID  string
	ItemIDs []string
}

// MenuLocationsChanged is published when menus are assigned to or removed
// from theme locations. Maps are location -> menu id.
type MenuLocationsChanged struct {
	Previous map[string]string
	Current  map[string]string
}

// AttachmentAction is the attachment lifecycle step.
type AttachmentAction int

const (
	AttachmentCreated AttachmentAction = iota + 1
	AttachmentUpdated
	AttachmentDeleted
)

// AttachmentChanged is published on attachment lifecycle changes.
type AttachmentChanged struct {
	ID     string
	Action AttachmentAction
}

// CommentStatusApproved is the visible comment status.
const CommentStatusApproved = "approved"

// CommentTransition is published when a comment changes status.
type CommentTransition struct {
	CommentID string
	PostID    string
	OldStatus string
	NewStatus string
}

// SettingsChanged is published when settings that affect responses change.
type SettingsChanged struct{}

// PurgeAllRequested asks for the whole result cache to be dropped.
type PurgeAllRequested struct {
	Reason string
}

func (PostTransition) Kind() EventKind       { return KindPostTransition }
func (PostDeleted) Kind() EventKind          { return KindPostDeleted }
func (PostMetaChanged) Kind() EventKind      { return KindPostMetaChanged }
func (TermCreated) Kind() EventKind          { return KindTermCreated }
func (TermUpdated) Kind() EventKind          { return KindTermUpdated }
func (TermDeleted) Kind() EventKind          { return KindTermDeleted }
func (TermMetaChanged) Kind() EventKind      { return KindTermMetaChanged }
func (UserUpdated) Kind() EventKind          { return KindUserUpdated }
func (UserMetaChanged) Kind() EventKind      { return KindUserMetaChanged }
func (UserDeleted) Kind() EventKind          { return KindUserDeleted }
func (MenuUpdated) Kind() EventKind          { return KindMenuUpdated }
func (MenuLocationsChanged) Kind() EventKind { return KindMenuLocationsChanged }
func (AttachmentChanged) Kind() EventKind    { return KindAttachmentChanged }
func (CommentTransition) Kind() EventKind    { return KindCommentTransition }
func (SettingsChanged) Kind() EventKind      { return KindSettingsChanged }
func (PurgeAllRequested) Kind() EventKind    { return KindPurgeAllRequested }

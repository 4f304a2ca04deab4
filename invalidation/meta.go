package invalidation

import (
	"context"
	"strings"
)

// MetaChange describes a meta mutation passed to the trackability predicate.
type MetaChange struct {
	// Target is "post", "term" or "user".
	Target   string
	TargetID string
	Key      string
	Value    any
}

// MetaOverride can change the tracking decision for a meta change. tracked
// is the decision of the built-in rules.
type MetaOverride func(ctx context.Context, change MetaChange, tracked bool) bool

// MetaPolicy decides whether a meta change should invalidate anything.
//
// A key is ignored when it is in the ignore list or starts with an
// underscore, unless it is in the forced list. Override, when set, has the
// final say.
type MetaPolicy struct {
	ignored  map[string]struct{}
	forced   map[string]struct{}
	override MetaOverride
}

// NewMetaPolicy builds a policy from ignored and force-tracked keys.
func NewMetaPolicy(ignored, forced []string, override MetaOverride) *MetaPolicy {
	p := &MetaPolicy{
		ignored:  make(map[string]struct{}, len(ignored)),
		forced:   make(map[string]struct{}, len(forced)),
		override: override,
	}
	for _, k := range ignored {
		p.ignored[k] = struct{}{}
	}
	for _, k := range forced {
		p.forced[k] = struct{}{}
	}
	return p
}

// ShouldTrack reports whether change should trigger invalidation.
func (p *MetaPolicy) ShouldTrack(ctx context.Context, change MetaChange) bool {
	_, ignored := p.ignored[change.Key]
	tracked := !ignored && !strings.HasPrefix(change.Key, "_")
	if _, forced := p.forced[change.Key]; forced {
		tracked = true
	}
	if p.override != nil {
		tracked = p.override(ctx, change, tracked)
	}
	return tracked
}

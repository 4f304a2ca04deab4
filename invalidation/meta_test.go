package invalidation

import (
	"context"
	"testing"
)

func TestMetaPolicy_ShouldTrack(t *testing.T) {
	p := NewMetaPolicy([]string{"session_tokens"}, []string{"_thumbnail_id"}, nil)
	ctx := context.Background()

	tests := []struct {
		key  string
		want bool
	}{
		{"subtitle", true},
		{"session_tokens", false},
		{"_edit_lock", false},
		{"_thumbnail_id", true},
	}
	for _, tt := range tests {
		if got := p.ShouldTrack(ctx, MetaChange{Target: "post", TargetID: "1", Key: tt.key}); got != tt.want {
			t.Errorf("ShouldTrack(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestMetaPolicy_Override(t *testing.T) {
	var seen []MetaChange
	p := NewMetaPolicy(nil, nil, func(_ context.Context, c MetaChange, tracked bool) bool {
		seen = append(seen, c)
		if c.Target == "user" && c.Key == "_private_bio" {
			return true
		}
		if c.Value == "noop" {
			return false
		}
		return tracked
	})
	ctx := context.Background()

	tests := []struct {
		change MetaChange
		want   bool
	}{
		{MetaChange{Target: "user", TargetID: "2", Key: "_private_bio"}, true},
		{MetaChange{Target: "post", TargetID: "1", Key: "_private_bio"}, false},
		{MetaChange{Target: "post", TargetID: "1", Key: "subtitle", Value: "noop"}, false},
		{MetaChange{Target: "post", TargetID: "1", Key: "subtitle", Value: "x"}, true},
	}
	for _, tt := range tests {
		if got := p.ShouldTrack(ctx, tt.change); got != tt.want {
			t.Errorf("ShouldTrack(%+v) = %v, want %v", tt.change, got, tt.want)
		}
	}
	if len(seen) != len(tests) {
		t.Errorf("override saw %d changes, want %d", len(seen), len(tests))
	}
}

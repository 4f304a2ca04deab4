package invalidation

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestBus_DispatchOrder(t *testing.T) {
	bus := NewBus(nil)
	var calls []string

	bus.Subscribe(KindTermCreated, func(context.Context, Event) error {
		calls = append(calls, "term-1")
		return nil
	})
	bus.SubscribeAll(func(_ context.Context, ev Event) error {
		calls = append(calls, "all:"+ev.Kind().String())
		return nil
	})
	bus.Subscribe(KindTermCreated, func(context.Context, Event) error {
		calls = append(calls, "term-2")
		return nil
	})
	bus.Subscribe(KindUserUpdated, func(context.Context, Event) error {
		calls = append(calls, "user")
		return nil
	})
	bus.Subscribe(KindUserUpdated, nil)

	if failed := bus.Publish(context.Background(), TermCreated{Term: TermRef{ID: "1", Taxonomy: "category"}}); failed != 0 {
		t.Errorf("Publish() failed = %d, want 0", failed)
	}
	if want := []string{"term-1", "all:term_created", "term-2"}; !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestBus_SwallowsFailures(t *testing.T) {
	bus := NewBus(nil)
	reached := false

	bus.SubscribeAll(func(context.Context, Event) error { return errors.New("boom") })
	bus.SubscribeAll(func(context.Context, Event) error { panic("handler bug") })
	bus.SubscribeAll(func(context.Context, Event) error {
		reached = true
		return nil
	})

	if failed := bus.Publish(context.Background(), SettingsChanged{}); failed != 2 {
		t.Errorf("Publish() failed = %d, want 2", failed)
	}
	if !reached {
		t.Error("handler after the failures did not run")
	}
}

func TestBus_PublishNil(t *testing.T) {
	if failed := NewBus(nil).Publish(context.Background(), nil); failed != 0 {
		t.Errorf("Publish(nil) failed = %d, want 0", failed)
	}
}

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{PostTransition{}.Kind(), "post_transition"},
		{PurgeAllRequested{}.Kind(), "purge_all_requested"},
		{EventKind(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

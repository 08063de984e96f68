package bot

import (
	"context"
	"testing"
)

func TestDispatcher_ExactAction(t *testing.T) {
	d := newDispatcher()

	var called bool
	d.on("main_menu", func(ctx context.Context, chatID int64, arg string) {
		called = true
		if arg != "" {
			t.Fatalf("exact action must have empty arg, got %q", arg)
		}
	})

	if !d.dispatch(context.Background(), 1, "main_menu") {
		t.Fatalf("known action must dispatch")
	}
	if !called {
		t.Fatalf("handler must be invoked")
	}
}

func TestDispatcher_PrefixAction(t *testing.T) {
	d := newDispatcher()

	var gotArg string
	d.onPrefix("category_", func(ctx context.Context, chatID int64, arg string) {
		gotArg = arg
	})

	if !d.dispatch(context.Background(), 1, "category_abc-123") {
		t.Fatalf("prefixed action must dispatch")
	}
	if gotArg != "abc-123" {
		t.Fatalf("arg = %q, want abc-123", gotArg)
	}
}

func TestDispatcher_ExactWinsOverPrefix(t *testing.T) {
	d := newDispatcher()

	var hit string
	d.on("codes_category_list", func(ctx context.Context, chatID int64, arg string) { hit = "exact" })
	d.onPrefix("codes_category_", func(ctx context.Context, chatID int64, arg string) { hit = "prefix" })

	d.dispatch(context.Background(), 1, "codes_category_list")
	if hit != "exact" {
		t.Fatalf("exact match must take priority, got %q", hit)
	}
}

func TestDispatcher_UnknownAction(t *testing.T) {
	d := newDispatcher()

	if d.dispatch(context.Background(), 1, "nonsense") {
		t.Fatalf("unknown action must not dispatch")
	}
}

package app_test

import (
	"errors"
	"testing"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

func TestRegisterRejectsBlankNames(t *testing.T) {
	registry := app.NewRegistry()
	for _, name := range []string{"", "   ", "\t\n"} {
		if _, err := registry.Register("c1", name); !errors.Is(err, domain.ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
}

func TestListIdleIsRegistrationOrdered(t *testing.T) {
	registry := app.NewRegistry()
	for _, p := range []struct{ id, name string }{
		{"c1", "Alice"}, {"c2", "Bob"}, {"c3", "Carol"},
	} {
		if _, err := registry.Register(p.id, p.name); err != nil {
			t.Fatalf("register %s: %v", p.id, err)
		}
	}

	idle := registry.ListIdle()
	if len(idle) != 3 || idle[0].Name != "Alice" || idle[1].Name != "Bob" || idle[2].Name != "Carol" {
		t.Fatalf("unexpected idle order: %+v", idle)
	}

	registry.MarkInMatch("c2", "room-1")
	idle = registry.ListIdle()
	if len(idle) != 2 || idle[0].ID != "c1" || idle[1].ID != "c3" {
		t.Fatalf("expected c1 and c3 idle, got %+v", idle)
	}

	p, ok := registry.Get("c2")
	if !ok || p.Status != domain.StatusInMatch || p.RoomID != "room-1" {
		t.Fatalf("expected c2 in room-1, got %+v", p)
	}

	registry.MarkIdle("c2")
	p, _ = registry.Get("c2")
	if p.Status != domain.StatusIdle || p.RoomID != "" {
		t.Fatalf("expected c2 idle with no room, got %+v", p)
	}
}

func TestRemoveForgetsPlayer(t *testing.T) {
	registry := app.NewRegistry()
	_, _ = registry.Register("c1", "Alice")
	_, _ = registry.Register("c2", "Bob")

	removed, ok := registry.Remove("c1")
	if !ok || removed.DisplayName != "Alice" {
		t.Fatalf("expected to remove Alice, got %+v ok=%v", removed, ok)
	}
	if _, ok := registry.Get("c1"); ok {
		t.Fatalf("expected c1 gone")
	}
	if idle := registry.ListIdle(); len(idle) != 1 || idle[0].ID != "c2" {
		t.Fatalf("expected only c2 idle, got %+v", idle)
	}
}

package player

import (
	"testing"
)

func TestManagerCreateAndGet(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	s, ok := m.Create("main")
	if !ok {
		t.Fatal("Create returned not-ok for new session")
	}
	if s == nil || s.Player == nil {
		t.Fatal("Create returned incomplete session")
	}
	if s.Key != "main" {
		t.Errorf("key: got %q, want %q", s.Key, "main")
	}
	if s.StartedAt.IsZero() {
		t.Error("StartedAt should not be zero")
	}

	got, ok := m.Get("main")
	if !ok || got != s {
		t.Error("Get should return the created session")
	}
}

func TestManagerCreateDuplicate(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	if _, ok := m.Create("main"); !ok {
		t.Fatal("first Create should succeed")
	}
	s2, ok2 := m.Create("main")
	if ok2 {
		t.Error("duplicate Create should return false")
	}
	if s2 != nil {
		t.Error("duplicate Create should return nil session")
	}
}

func TestManagerRemove(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	m.Create("main")
	if len(m.List()) != 1 {
		t.Errorf("count: got %d, want 1", len(m.List()))
	}

	m.Remove("main")
	if len(m.List()) != 0 {
		t.Errorf("count after remove: got %d, want 0", len(m.List()))
	}
	if _, ok := m.Get("main"); ok {
		t.Error("session still found after Remove")
	}
}

func TestManagerRemoveNonexistent(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	// Should not panic.
	m.Remove("nonexistent")
}

func TestManagerListOrdered(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	m.Create("c")
	m.Create("a")
	m.Create("b")

	sessions := m.List()
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	for i, want := range []string{"a", "b", "c"} {
		if sessions[i].Key != want {
			t.Errorf("position %d: got %q, want %q", i, sessions[i].Key, want)
		}
	}
}

func TestManagerCloseAll(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	m.Create("a")
	m.Create("b")
	m.CloseAll()

	if len(m.List()) != 0 {
		t.Errorf("count after CloseAll: got %d, want 0", len(m.List()))
	}
}

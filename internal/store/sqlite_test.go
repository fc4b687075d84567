package store

import (
	"path/filepath"
	"testing"
)

func TestNewSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "glance.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	defer s.Close()

	if s.db == nil {
		t.Error("Database connection is nil")
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "glance.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	defer s.Close()

	if err := s.Set("session:abc", []byte(`{"id":"abc"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, ok, err := s.Get("session:abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if string(v) != `{"id":"abc"}` {
		t.Errorf("Got %q, want stored JSON", v)
	}

	// Overwrite
	if err := s.Set("session:abc", []byte(`{"id":"abc","n":2}`)); err != nil {
		t.Fatalf("Set overwrite failed: %v", err)
	}
	v, _, _ = s.Get("session:abc")
	if string(v) != `{"id":"abc","n":2}` {
		t.Errorf("Overwrite not applied, got %q", v)
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "glance.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	defer s.Close()

	_, ok, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get of missing key should not error: %v", err)
	}
	if ok {
		t.Error("Missing key reported as present")
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "glance.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	defer s.Close()

	if err := s.Set("k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("Key still present after delete")
	}

	// Deleting a missing key is not an error
	if err := s.Delete("k"); err != nil {
		t.Errorf("Delete of missing key should not error: %v", err)
	}
}

func TestSQLiteStore_KeysPrefix(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "glance.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	defer s.Close()

	for _, k := range []string{"session:b", "session:a", "settings:lang", "session:c"} {
		if err := s.Set(k, []byte("x")); err != nil {
			t.Fatalf("Set %s failed: %v", k, err)
		}
	}

	keys, err := s.Keys("session:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"session:a", "session:b", "session:c"}
	if len(keys) != len(want) {
		t.Fatalf("Got %d keys, want %d", len(keys), len(want))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("keys[%d] = %s, want %s (sorted)", i, keys[i], k)
		}
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glance.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	if err := s.Set("session:persist", []byte("survives")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen sqlite store: %v", err)
	}
	defer s2.Close()

	v, ok, err := s2.Get("session:persist")
	if err != nil || !ok {
		t.Fatalf("Value lost across reopen: ok=%v err=%v", ok, err)
	}
	if string(v) != "survives" {
		t.Errorf("Got %q, want %q", v, "survives")
	}
}

func TestSQLiteStore_ClosedErrors(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "glance.db"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	s.Close()

	if err := s.Set("k", []byte("v")); err != ErrClosed {
		t.Errorf("Set on closed store = %v, want ErrClosed", err)
	}
	if _, _, err := s.Get("k"); err != ErrClosed {
		t.Errorf("Get on closed store = %v, want ErrClosed", err)
	}
	// Double close is harmless
	if err := s.Close(); err != nil {
		t.Errorf("Second Close should be nil, got %v", err)
	}
}

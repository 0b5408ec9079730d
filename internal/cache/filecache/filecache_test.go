package filecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	payload := map[string]string{"Valor": "1425.50"}
	store.Set("abc123", payload, Metadata{Rows: 1})

	var got map[string]string
	if !store.Get("abc123", &got) {
		t.Fatal("expected cache hit")
	}
	if got["Valor"] != "1425.50" {
		t.Errorf("got %q, want 1425.50", got["Valor"])
	}

	meta, ok := store.Meta("abc123")
	if !ok {
		t.Fatal("expected metadata sidecar")
	}
	if meta.Rows != 1 {
		t.Errorf("meta rows = %d, want 1", meta.Rows)
	}
	if meta.CreatedAt.IsZero() {
		t.Error("expected created_at to be stamped")
	}
}

func TestGetMissOnUnknownKey(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	var out map[string]string
	if store.Get("missing", &out) {
		t.Error("expected miss for unknown key")
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	store.Set("old", map[string]int{"n": 1}, Metadata{})

	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "old.json"), stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	var out map[string]int
	if store.Get("old", &out) {
		t.Error("expected expired entry to miss")
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out map[string]int
	if store.Get("bad", &out) {
		t.Error("expected corrupt entry to miss, not error")
	}
}

func TestPurgeRemovesOldEntries(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	store.Set("keep", map[string]int{"n": 1}, Metadata{})
	store.Set("drop", map[string]int{"n": 2}, Metadata{})

	stale := time.Now().Add(-48 * time.Hour)
	for _, name := range []string{"drop.json", "drop.meta.json"} {
		if err := os.Chtimes(filepath.Join(dir, name), stale, stale); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}

	removed := store.Purge(24 * time.Hour)
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	var out map[string]int
	if !store.Get("keep", &out) {
		t.Error("fresh entry should survive purge")
	}
}

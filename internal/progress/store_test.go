package progress

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tilegrind/internal/services"
)

func TestGetMissingRecord(t *testing.T) {
	store := NewStore(t.TempDir())

	rec, ok, err := store.Get("USGS_LPC_CA_101")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected missing record")
	}
	if rec.Completed != 0 {
		t.Fatalf("expected zero completed, got %d", rec.Completed)
	}
}

func TestCommitThenGet(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Commit("USGS_LPC_CA_101", 5, 3); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := store.Get("USGS_LPC_CA_101")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected record to exist")
	}
	if rec.Required != 5 || rec.Completed != 3 {
		t.Fatalf("got %+v, want {5 3}", rec)
	}
}

func TestCommitReplacesRecord(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Commit("tile-a", 5, 2); err != nil {
		t.Fatal(err)
	}
	if err := store.Commit("tile-a", 5, 5); err != nil {
		t.Fatal(err)
	}

	rec, _, err := store.Get("tile-a")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Completed != 5 {
		t.Fatalf("expected completed=5, got %d", rec.Completed)
	}
}

func TestGetCorruptRecordIsConfigurationError(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	path := store.RecordPath("tile-a")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not-a-record"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := store.Get("tile-a")
	if err == nil {
		t.Fatal("expected error for corrupt record")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRecordPathLayout(t *testing.T) {
	store := NewStore("/data/tiles")
	want := filepath.Join("/data/tiles", "tile-a", "log", "shards-completed.txt")
	if got := store.RecordPath("tile-a"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tilegrind/internal/progress"
	"tilegrind/internal/services"
)

func setup(t *testing.T) (*Reconciler, *progress.Store, string, string) {
	t.Helper()
	root := t.TempDir()
	store := progress.NewStore(root)
	destDir := filepath.Join(root, "tile-a")
	stagingDir := filepath.Join(destDir, "staging-test")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return New(store), store, stagingDir, destDir
}

func stage(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReconcilePromotesWithGlobalIDs(t *testing.T) {
	rec, store, stagingDir, destDir := setup(t)
	stage(t, stagingDir, "tile_0.laz")
	stage(t, stagingDir, "tile_1.laz")

	completed, err := rec.Reconcile(stagingDir, destDir, "tile-a", 3, 5)
	if err != nil {
		t.Fatal(err)
	}
	if completed != 2 {
		t.Fatalf("expected completed=2, got %d", completed)
	}

	for _, want := range []string{"tile_3.laz", "tile_4.laz"} {
		if _, err := os.Stat(filepath.Join(destDir, want)); err != nil {
			t.Fatalf("expected promoted shard %s: %v", want, err)
		}
	}
	if _, err := os.Stat(stagingDir); !os.IsNotExist(err) {
		t.Fatal("staging directory not discarded")
	}

	record, ok, err := store.Get("tile-a")
	if err != nil || !ok {
		t.Fatalf("expected committed record, ok=%v err=%v", ok, err)
	}
	if record.Required != 5 || record.Completed != 2 {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestReconcileEmptyStagingRecountsDestination(t *testing.T) {
	rec, store, stagingDir, destDir := setup(t)
	// Shards from a previous run already at the destination.
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stage(t, destDir, "tile_0.laz")
	stage(t, destDir, "tile_1.laz")
	stage(t, destDir, "tile_2.laz")

	completed, err := rec.Reconcile(stagingDir, destDir, "tile-a", 3, 5)
	if err != nil {
		t.Fatal(err)
	}
	if completed != 3 {
		t.Fatalf("expected authoritative recount of 3, got %d", completed)
	}

	record, _, err := store.Get("tile-a")
	if err != nil {
		t.Fatal(err)
	}
	if record.Completed != 3 {
		t.Fatalf("expected committed completed=3, got %d", record.Completed)
	}
}

func TestReconcileToleratesIndexGaps(t *testing.T) {
	rec, _, stagingDir, destDir := setup(t)
	// Local index 1 produced no points; only 0 and 2 exist.
	stage(t, stagingDir, "tile_0.laz")
	stage(t, stagingDir, "tile_2.laz")

	completed, err := rec.Reconcile(stagingDir, destDir, "tile-a", 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if completed != 2 {
		t.Fatalf("expected 2 promoted shards, got %d", completed)
	}
	if _, err := os.Stat(filepath.Join(destDir, "tile_2.laz")); err != nil {
		t.Fatal("expected gap-preserving global id tile_2.laz")
	}
}

func TestReconcileCollidingGlobalIDFailsLoudly(t *testing.T) {
	rec, _, stagingDir, destDir := setup(t)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stage(t, destDir, "tile_0.laz")
	stage(t, stagingDir, "tile_0.laz")

	_, err := rec.Reconcile(stagingDir, destDir, "tile-a", 0, 5)
	if err == nil {
		t.Fatal("expected collision error")
	}
	if !errors.Is(err, services.ErrReconciliation) {
		t.Fatalf("expected reconciliation classification, got %v", err)
	}
	if _, statErr := os.Stat(stagingDir); !os.IsNotExist(statErr) {
		t.Fatal("staging directory must be discarded on failure too")
	}
}

func TestReconcileRejectsUnexpectedStagingFile(t *testing.T) {
	rec, _, stagingDir, destDir := setup(t)
	stage(t, stagingDir, "debug.txt")

	if _, err := rec.Reconcile(stagingDir, destDir, "tile-a", 0, 5); err == nil {
		t.Fatal("expected error for unexpected staging file")
	}
}

func TestCountShardsIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"tile_0.laz", "tile_7.laz", "notes.txt", "other_1.laz"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	count, err := CountShards(dir)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 canonical shards, got %d", count)
	}
}

package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tilegrind/internal/worker"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndReadRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	run := Run{
		SessionID:  "3f2c",
		Command:    "download",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Minute),
		Total:      3,
		Skipped:    1,
		Succeeded:  1,
		TimedOut:   1,
		Points:     123456,
	}
	items := []worker.Result{
		{Index: 0, Key: "tile-a", Outcome: worker.OutcomeSucceeded, Points: 123456, Duration: 900},
		{Index: 1, Key: "tile-b", Outcome: worker.OutcomeTimeout, Error: "hard timeout of 100m0s exceeded", Duration: 6000000},
	}

	runID, err := store.RecordRun(ctx, run, items)
	if err != nil {
		t.Fatal(err)
	}
	if runID == 0 {
		t.Fatal("expected nonzero run id")
	}

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Command != "download" || got.Total != 3 || got.TimedOut != 1 || got.Points != 123456 {
		t.Fatalf("unexpected run %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("started_at round trip: got %v want %v", got.StartedAt, started)
	}

	recorded, err := store.RunItems(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recorded) != 2 {
		t.Fatalf("expected 2 items, got %d", len(recorded))
	}
	if recorded[1].Outcome != string(worker.OutcomeTimeout) || recorded[1].Error == "" {
		t.Fatalf("unexpected item %+v", recorded[1])
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, cmd := range []string{"download", "denoise", "correct"} {
		now := time.Now()
		_, err := store.RecordRun(ctx, Run{SessionID: cmd, Command: cmd, StartedAt: now, FinishedAt: now}, nil)
		if err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(runs))
	}
	if runs[0].Command != "correct" || runs[1].Command != "denoise" {
		t.Fatalf("unexpected order: %s, %s", runs[0].Command, runs[1].Command)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("expected schema mismatch error")
	}
}

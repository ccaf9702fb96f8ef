package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tilegrind/internal/worker"
)

// Run is one completed batch run.
type Run struct {
	ID         int64
	SessionID  string
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Skipped    int
	Succeeded  int
	TimedOut   int
	Failed     int
	Points     int64
}

// ItemRecord is one dispatched item's outcome within a run.
type ItemRecord struct {
	Index      int
	Key        string
	Outcome    string
	Points     int64
	Completed  int
	Operation  string
	Error      string
	DurationMS int64
}

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun persists one run and its per-item outcomes in a single
// transaction and returns the run's row id.
func (s *Store) RecordRun(ctx context.Context, run Run, items []worker.Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO runs (session_id, command, started_at, finished_at, total, skipped, succeeded, timed_out, failed, points)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.SessionID, run.Command,
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339),
		run.Total, run.Skipped, run.Succeeded, run.TimedOut, run.Failed, run.Points)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
INSERT INTO run_items (run_id, item_index, key, outcome, points, completed, operation, error, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, item.Index, item.Key, string(item.Outcome), item.Points, item.Completed,
			item.Operation, item.Error, item.Duration)
		if err != nil {
			return 0, fmt.Errorf("insert run item %d: %w", item.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// RecentRuns returns the newest runs first, at most limit of them.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, command, started_at, finished_at, total, skipped, succeeded, timed_out, failed, points
FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.ID, &run.SessionID, &run.Command, &started, &finished,
			&run.Total, &run.Skipped, &run.Succeeded, &run.TimedOut, &run.Failed, &run.Points); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunItems returns every item outcome recorded for one run, in submission
// order.
func (s *Store) RunItems(ctx context.Context, runID int64) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT item_index, key, outcome, points, completed, operation, error, duration_ms
FROM run_items WHERE run_id = ? ORDER BY item_index ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run items: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var item ItemRecord
		if err := rows.Scan(&item.Index, &item.Key, &item.Outcome, &item.Points,
			&item.Completed, &item.Operation, &item.Error, &item.DurationMS); err != nil {
			return nil, fmt.Errorf("scan run item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

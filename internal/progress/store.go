package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tilegrind/internal/fileutil"
	"tilegrind/internal/services"
)

const (
	logDirName     = "log"
	recordFileName = "shards-completed.txt"
)

// Record is one persisted per-tile counter pair.
type Record struct {
	Required  int
	Completed int
}

// Store reads and writes progress records under a destination root. Each
// destination key gets its own record file, so concurrent workers touching
// different keys never contend.
type Store struct {
	root string
}

// NewStore creates a store rooted at the destination directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// RecordPath returns the record file location for a destination key.
func (s *Store) RecordPath(key string) string {
	return filepath.Join(s.root, key, logDirName, recordFileName)
}

// Get returns the completed count for a key. A missing record means the key
// was never attempted and reports zero with ok=false. A corrupt record is a
// configuration error for that key only.
func (s *Store) Get(key string) (Record, bool, error) {
	data, err := os.ReadFile(s.RecordPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, services.Wrap(services.ErrConfiguration, "progress", "read record", key, err)
	}
	rec, err := parseRecord(string(data))
	if err != nil {
		return Record{}, false, services.Wrap(services.ErrConfiguration, "progress", "parse record", key, err)
	}
	return rec, true, nil
}

// Commit atomically replaces the record for a key. The completed count must
// already be an authoritative recount of the destination contents.
func (s *Store) Commit(key string, required, completed int) error {
	if required < 0 || completed < 0 {
		return fmt.Errorf("progress: negative counter for %s (required=%d completed=%d)", key, required, completed)
	}
	dir := filepath.Dir(s.RecordPath(key))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("progress: ensure log directory: %w", err)
	}
	payload := fmt.Sprintf("%d,%d", required, completed)
	if err := fileutil.WriteFileAtomic(s.RecordPath(key), []byte(payload), 0o644); err != nil {
		return fmt.Errorf("progress: commit %s: %w", key, err)
	}
	return nil
}

func parseRecord(raw string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 2 {
		return Record{}, fmt.Errorf("malformed record %q", strings.TrimSpace(raw))
	}
	required, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Record{}, fmt.Errorf("malformed required count: %w", err)
	}
	completed, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Record{}, fmt.Errorf("malformed completed count: %w", err)
	}
	if required < 0 || completed < 0 {
		return Record{}, fmt.Errorf("negative counter in record %q", strings.TrimSpace(raw))
	}
	return Record{Required: required, Completed: completed}, nil
}

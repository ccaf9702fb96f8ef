package reconcile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"tilegrind/internal/pipeline"
	"tilegrind/internal/progress"
	"tilegrind/internal/services"
)

// Reconciler moves staged shards into place and commits progress records.
type Reconciler struct {
	store *progress.Store
}

// New creates a reconciler committing through the given progress store.
func New(store *progress.Store) *Reconciler {
	return &Reconciler{store: store}
}

// ShardName returns the canonical destination file name for a global id.
func ShardName(globalID int) string {
	return fmt.Sprintf("%s_%d%s", pipeline.ShardPrefix, globalID, pipeline.ShardExtension)
}

// Reconcile promotes every staged shard for one work item, recounts the
// destination, and commits the progress record. The staging directory is
// removed regardless of outcome. An empty staging directory is not an error:
// the scoped sub-regions may have held no points.
func (r *Reconciler) Reconcile(stagingDir, destDir, key string, resumeOffset, required int) (int, error) {
	defer os.RemoveAll(stagingDir)

	staged, err := listStaged(stagingDir)
	if err != nil {
		return 0, services.Wrap(services.ErrReconciliation, "reconcile", "list staging", key, err)
	}

	for _, shard := range staged {
		globalID := resumeOffset + shard.localIndex
		target := filepath.Join(destDir, ShardName(globalID))
		if _, err := os.Stat(target); err == nil {
			// A collision means resume_offset disagrees with the committed
			// progress record; overwriting would silently lose a shard.
			return 0, services.Wrap(services.ErrReconciliation, "reconcile", "promote shard",
				fmt.Sprintf("%s: global id %d already present", key, globalID), nil)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return 0, services.Wrap(services.ErrReconciliation, "reconcile", "probe destination", key, err)
		}
		if err := os.Rename(shard.path, target); err != nil {
			return 0, services.Wrap(services.ErrReconciliation, "reconcile", "promote shard", key, err)
		}
	}

	completed, err := CountShards(destDir)
	if err != nil {
		return 0, services.Wrap(services.ErrReconciliation, "reconcile", "recount destination", key, err)
	}
	if err := r.store.Commit(key, required, completed); err != nil {
		return 0, err
	}
	return completed, nil
}

// CountShards returns the number of canonical shard files present in dir.
// The count is authoritative; callers must never derive completed counts
// arithmetically.
func CountShards(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := shardIndex(entry.Name()); ok {
			count++
		}
	}
	return count, nil
}

type stagedShard struct {
	path       string
	localIndex int
}

// listStaged returns staged shards sorted by local index ascending. Index
// gaps are legitimate: a sub-region yielding zero points emits no shard.
func listStaged(dir string) ([]stagedShard, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	shards := make([]stagedShard, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index, ok := shardIndex(entry.Name())
		if !ok {
			return nil, fmt.Errorf("unexpected staging file %q", entry.Name())
		}
		shards = append(shards, stagedShard{path: filepath.Join(dir, entry.Name()), localIndex: index})
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].localIndex < shards[j].localIndex })
	return shards, nil
}

// shardIndex parses the zero-based index from a canonical shard file name.
func shardIndex(name string) (int, bool) {
	if !strings.HasSuffix(name, pipeline.ShardExtension) {
		return 0, false
	}
	base := strings.TrimSuffix(name, pipeline.ShardExtension)
	sep := strings.LastIndex(base, "_")
	if sep <= 0 || base[:sep] != pipeline.ShardPrefix {
		return 0, false
	}
	index, err := strconv.Atoi(base[sep+1:])
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

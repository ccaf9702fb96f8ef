package batch

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"tilegrind/internal/pipeline"
	"tilegrind/internal/progress"
	"tilegrind/internal/registry"
	"tilegrind/internal/worker"
)

// Skip records a tile that needed no dispatch, with the reason.
type Skip struct {
	Key    string
	Reason string
}

// PartitionDownloads computes the download work item per tile that still
// needs shards. Registry order is preserved. A corrupt progress record skips
// that tile only; the rest of the batch proceeds.
func PartitionDownloads(tiles []registry.Tile, store *progress.Store, destRoot string, targetCount int) ([]worker.Item, []Skip, error) {
	if targetCount < 1 {
		return nil, nil, fmt.Errorf("partition: target count must be positive, got %d", targetCount)
	}

	var items []worker.Item
	var skips []Skip
	for _, tile := range tiles {
		resume := 0
		record, ok, err := store.Get(tile.Key)
		if err != nil {
			skips = append(skips, Skip{Key: tile.Key, Reason: fmt.Sprintf("unreadable progress record: %v", err)})
			continue
		}
		if ok {
			resume = record.Completed
		}

		// The target is capped by what the tile can actually yield.
		required := targetCount
		if len(tile.Subregions) < required {
			required = len(tile.Subregions)
		}
		if resume >= required {
			skips = append(skips, Skip{Key: tile.Key, Reason: fmt.Sprintf("complete (%d of %d shards)", resume, required)})
			continue
		}

		scoped := tile.Subregions[resume:required]
		stagingDir := filepath.Join(destRoot, tile.Key, "staging-"+uuid.NewString())
		items = append(items, worker.Item{
			Index:        len(items),
			Kind:         worker.KindDownload,
			Key:          tile.Key,
			DestRoot:     destRoot,
			TargetCount:  required,
			ResumeOffset: resume,
			StagingDir:   stagingDir,
			Stages:       pipeline.Download(tile.URL, tile.EPSG, scoped, stagingDir).Stages,
		})
	}
	return items, skips, nil
}

package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tilegrind/internal/pipeline"
	"tilegrind/internal/worker"
)

// EnumerateDenoise walks the source tree for shard files and builds one
// filter item per file whose mirrored output does not exist yet. The relative
// path below sourceRoot is preserved below destRoot.
func EnumerateDenoise(sourceRoot, destRoot string) ([]worker.Item, []Skip, error) {
	var items []worker.Item
	var skips []Skip
	err := walkShards(sourceRoot, func(path, rel string) {
		outputPath := filepath.Join(destRoot, rel)
		if fileExists(outputPath) {
			skips = append(skips, Skip{Key: rel, Reason: "output exists"})
			return
		}
		stagingPath := outputPath + ".partial"
		items = append(items, worker.Item{
			Index:       len(items),
			Kind:        worker.KindDenoise,
			Key:         rel,
			SourcePath:  path,
			StagingPath: stagingPath,
			OutputPath:  outputPath,
			Stages:      pipeline.Denoise(path, stagingPath).Stages,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return items, skips, nil
}

// EnumerateCorrections walks the source tree for shard files and builds one
// correction item per file whose mirrored output does not exist yet.
func EnumerateCorrections(sourceRoot, destRoot string, threshold float64) ([]worker.Item, []Skip, error) {
	if threshold <= 0 {
		return nil, nil, fmt.Errorf("enumerate: extent threshold must be positive, got %g", threshold)
	}

	var items []worker.Item
	var skips []Skip
	err := walkShards(sourceRoot, func(path, rel string) {
		outputPath := filepath.Join(destRoot, rel)
		if fileExists(outputPath) {
			skips = append(skips, Skip{Key: rel, Reason: "output exists"})
			return
		}
		items = append(items, worker.Item{
			Index:      len(items),
			Kind:       worker.KindCorrect,
			Key:        rel,
			SourcePath: path,
			OutputPath: outputPath,
			Threshold:  threshold,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return items, skips, nil
}

// walkShards visits every tile file below root in lexical order, calling fn
// with the absolute path and the path relative to root. Both compressed and
// uncompressed extensions count; the engine reads either.
func walkShards(root string, fn func(path, rel string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTileFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fn(path, rel)
		return nil
	})
}

func isTileFile(name string) bool {
	return strings.HasSuffix(name, pipeline.ShardExtension) || strings.HasSuffix(name, ".las")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

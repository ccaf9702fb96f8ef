package pipeline

import (
	"fmt"
	"path/filepath"
)

const (
	// ShardPrefix is the fixed file prefix for destination shard files.
	ShardPrefix = "tile"
	// ShardExtension is the extension of shard files emitted by the engine.
	ShardExtension = ".laz"

	// webMercator is the coordinate system registry geometries arrive in.
	webMercator = "EPSG:3857"
	// noiseExclusion drops points classified as noise (class 7).
	noiseExclusion = "Classification![7:7]"

	outlierMethod     = "statistical"
	outlierMeanK      = 12
	outlierMultiplier = 2.2
)

// ShardPattern returns the engine's write pattern for a staging directory.
// The '#' placeholder expands to the zero-based local shard index.
func ShardPattern(stagingDir string) string {
	return filepath.Join(stagingDir, ShardPrefix+"_#"+ShardExtension)
}

// Download builds the stage list for one download dispatch: read the source
// scoped to the given sub-regions, crop to the same scope, reproject into the
// tile's local coordinate system, exclude noise classifications, and write
// one shard per sub-region into the staging directory.
func Download(sourceURL string, epsg int, subregions []string, stagingDir string) Pipeline {
	return Pipeline{Stages: []Stage{
		{Type: "readers.ept", Tag: "readdata", Filename: sourceURL, Polygon: subregions},
		{Type: "filters.crop", Polygon: subregions},
		{Type: "filters.reprojection", Tag: "reprojectUTM", InSRS: webMercator, OutSRS: fmt.Sprintf("EPSG:%d", epsg)},
		{Type: "filters.range", Tag: "nonoise", Limits: noiseExclusion},
		{Type: "writers.las", Tag: "writerslas", Filename: ShardPattern(stagingDir)},
	}}
}

// Denoise builds the stage list for one noise-filter dispatch: read a shard
// file, drop statistical outliers, exclude noise classifications, and write
// the filtered result.
func Denoise(inputPath, outputPath string) Pipeline {
	return Pipeline{Stages: []Stage{
		{Type: "readers.las", Tag: "readerlas", Filename: inputPath},
		{Type: "filters.outlier", Method: outlierMethod, MeanK: outlierMeanK, Multiplier: outlierMultiplier},
		{Type: "filters.range", Tag: "nonoise", Limits: noiseExclusion},
		{Type: "writers.las", Tag: "writerslas", Filename: outputPath},
	}}
}

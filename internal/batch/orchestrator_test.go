package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"tilegrind/internal/config"
	"tilegrind/internal/journal"
	"tilegrind/internal/pipeline"
	"tilegrind/internal/progress"
	"tilegrind/internal/services"
	"tilegrind/internal/worker"
)

// inprocLauncher runs items in-process instead of re-execing the binary.
type inprocLauncher struct {
	engine pipeline.Engine
}

func (l inprocLauncher) Launch(ctx context.Context, it worker.Item) (worker.Result, error) {
	return worker.Execute(ctx, l.engine, it, nil), nil
}

// stagingEngine fakes a download run: it writes one shard per scoped
// sub-region into the staging directory named by the writer stage.
type stagingEngine struct{}

func (stagingEngine) Execute(ctx context.Context, p pipeline.Pipeline) (int64, error) {
	var stagingDir string
	var scoped int
	for _, stage := range p.Stages {
		switch stage.Type {
		case "readers.ept":
			scoped = len(stage.Polygon)
		case "writers.las":
			stagingDir = filepath.Dir(stage.Filename)
		}
	}
	if stagingDir == "" {
		return 0, errors.New("no writer stage")
	}
	for i := 0; i < scoped; i++ {
		name := fmt.Sprintf("%s_%d%s", pipeline.ShardPrefix, i, pipeline.ShardExtension)
		if err := os.WriteFile(filepath.Join(stagingDir, name), []byte(name), 0o644); err != nil {
			return 0, err
		}
	}
	return int64(scoped * 10), nil
}

func multiPolygon(n int) string {
	poly := "[[[0,0],[1,0],[1,1],[0,1],[0,0]]]"
	polys := make([]string, n)
	for i := range polys {
		polys[i] = poly
	}
	return fmt.Sprintf(`{"type":"MultiPolygon","coordinates":[%s]}`, strings.Join(polys, ","))
}

func writeRegistry(t *testing.T, path string) {
	t.Helper()
	content := fmt.Sprintf(`{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"url": "https://ept.example.com/tile-a/ept.json", "local_epsg_code": 6455},
     "geometry": %s},
    {"type": "Feature",
     "properties": {"url": "https://ept.example.com/tile-b/ept.json", "local_epsg_code": 6456},
     "geometry": %s}
  ]
}`, multiPolygon(5), multiPolygon(3))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Registry = filepath.Join(root, "registry.geojson")
	cfg.Paths.SourceRoot = filepath.Join(root, "source")
	cfg.Paths.DestRoot = filepath.Join(root, "dest")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Batch.TargetCount = 5
	cfg.Batch.Workers = 2
	cfg.Engine.TimeoutSeconds = 60
	return &cfg
}

func TestDownloadResumesPartialAndSkipsComplete(t *testing.T) {
	cfg := testConfig(t)
	writeRegistry(t, cfg.Paths.Registry)

	// Tile A is mid-flight: 2 of 5 shards committed and present. Tile B is
	// done at its capped target of 3.
	store := progress.NewStore(cfg.Paths.DestRoot)
	destA := filepath.Join(cfg.Paths.DestRoot, "tile-a")
	if err := os.MkdirAll(destA, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"tile_0.laz", "tile_1.laz"} {
		if err := os.WriteFile(filepath.Join(destA, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Commit("tile-a", 5, 2); err != nil {
		t.Fatal(err)
	}
	if err := store.Commit("tile-b", 3, 3); err != nil {
		t.Fatal(err)
	}

	orch := New(cfg, inprocLauncher{engine: stagingEngine{}}, nil)
	summary, err := orch.Download(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if summary.Total != 2 || summary.Skipped != 1 || summary.Succeeded != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Points != 30 {
		t.Fatalf("expected 30 points from 3 scoped sub-regions, got %d", summary.Points)
	}

	// Tile A's new shards landed at the resumed global ids.
	for _, want := range []string{"tile_2.laz", "tile_3.laz", "tile_4.laz"} {
		if _, err := os.Stat(filepath.Join(destA, want)); err != nil {
			t.Fatalf("expected shard %s: %v", want, err)
		}
	}
	record, ok, err := store.Get("tile-a")
	if err != nil || !ok {
		t.Fatalf("expected progress record, ok=%v err=%v", ok, err)
	}
	if record.Required != 5 || record.Completed != 5 {
		t.Fatalf("unexpected record %+v", record)
	}

	// The run landed in the journal.
	jstore, err := journal.Open(cfg.JournalPath())
	if err != nil {
		t.Fatal(err)
	}
	defer jstore.Close()
	runs, err := jstore.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Command != "download" || runs[0].Succeeded != 1 {
		t.Fatalf("unexpected journal runs %+v", runs)
	}
}

func TestDownloadFailedItemDoesNotAbortBatch(t *testing.T) {
	cfg := testConfig(t)
	writeRegistry(t, cfg.Paths.Registry)

	launcher := inprocLauncher{engine: fakeFailEngine{failURL: "https://ept.example.com/tile-a/ept.json"}}
	summary, err := New(cfg, launcher, nil).Download(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Succeeded != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

// fakeFailEngine fails the pipeline reading failURL and succeeds elsewhere.
type fakeFailEngine struct {
	failURL string
}

func (f fakeFailEngine) Execute(ctx context.Context, p pipeline.Pipeline) (int64, error) {
	if len(p.Stages) > 0 && p.Stages[0].Filename == f.failURL {
		return 0, errors.New("readers.ept: connection reset")
	}
	return stagingEngine{}.Execute(ctx, p)
}

func TestRunRefusesContestedDestination(t *testing.T) {
	cfg := testConfig(t)
	writeRegistry(t, cfg.Paths.Registry)
	if err := os.MkdirAll(cfg.Paths.DestRoot, 0o755); err != nil {
		t.Fatal(err)
	}

	other := flock.New(filepath.Join(cfg.Paths.DestRoot, lockFileName))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("test lock setup failed: locked=%v err=%v", locked, err)
	}
	defer func() { _ = other.Unlock() }()

	_, err = New(cfg, inprocLauncher{engine: stagingEngine{}}, nil).Download(context.Background())
	if err == nil {
		t.Fatal("expected contested destination error")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration classification, got %v", err)
	}
}

func TestCorrectRunProcessesSourceTree(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.Paths.SourceRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	// Correction opens real tile files; reuse the in-process path with a
	// missing source to verify failure aggregation instead.
	writeTree(t, cfg.Paths.SourceRoot, "region-a/tile_0.laz")

	summary, err := New(cfg, inprocLauncher{}, nil).Correct(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Results[0].Outcome != worker.OutcomeCorrectionFailed {
		t.Fatalf("expected correction_failed, got %s", summary.Results[0].Outcome)
	}
}

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"tilegrind/internal/services"
)

func TestDownloadStageShape(t *testing.T) {
	subregions := []string{"POLYGON ((0 0, 0 1, 1 1, 1 0, 0 0))"}
	p := Download("https://example.com/ept/tile-a/ept.json", 26910, subregions, "/staging/dir")

	if len(p.Stages) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(p.Stages))
	}

	read := p.Stages[0]
	if read.Type != "readers.ept" || read.Tag != "readdata" {
		t.Fatalf("unexpected read stage %+v", read)
	}
	if len(read.Polygon) != 1 {
		t.Fatalf("read stage not scoped to subregions: %+v", read)
	}

	crop := p.Stages[1]
	if crop.Type != "filters.crop" || len(crop.Polygon) != 1 {
		t.Fatalf("crop stage does not mirror read scope: %+v", crop)
	}

	reproject := p.Stages[2]
	if reproject.InSRS != "EPSG:3857" || reproject.OutSRS != "EPSG:26910" {
		t.Fatalf("unexpected reprojection stage %+v", reproject)
	}

	noise := p.Stages[3]
	if noise.Limits != "Classification![7:7]" {
		t.Fatalf("unexpected noise stage %+v", noise)
	}

	write := p.Stages[4]
	if write.Type != "writers.las" || !strings.HasSuffix(write.Filename, "tile_#.laz") {
		t.Fatalf("unexpected write stage %+v", write)
	}
}

func TestDenoiseStageShape(t *testing.T) {
	p := Denoise("/in/tile_0.laz", "/out/tile_0.laz")

	if len(p.Stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(p.Stages))
	}
	outlier := p.Stages[1]
	if outlier.Method != "statistical" || outlier.MeanK != 12 || outlier.Multiplier != 2.2 {
		t.Fatalf("unexpected outlier stage %+v", outlier)
	}
	if p.Stages[3].Filename != "/out/tile_0.laz" {
		t.Fatalf("unexpected write target %q", p.Stages[3].Filename)
	}
}

func TestMarshalOmitsEmptyFields(t *testing.T) {
	p := Pipeline{Stages: []Stage{{Type: "filters.range", Tag: "nonoise", Limits: "Classification![7:7]"}}}
	raw, err := p.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string][]map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	stage := decoded["pipeline"][0]
	if len(stage) != 3 {
		t.Fatalf("expected 3 populated fields, got %v", stage)
	}
}

type fakeExecutor struct {
	lines []string
	err   error
	stdin []byte
}

func (f *fakeExecutor) Run(_ context.Context, _ string, _ []string, stdin []byte, onStdout func(string)) error {
	f.stdin = stdin
	for _, line := range f.lines {
		onStdout(line)
	}
	return f.err
}

func TestCommandEngineParsesPointCount(t *testing.T) {
	exec := &fakeExecutor{lines: []string{"reading source", "1234567"}}
	engine, err := NewCommandEngine("pdal", WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}

	count, err := engine.Execute(context.Background(), Denoise("/in.laz", "/out.laz"))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1234567 {
		t.Fatalf("expected count 1234567, got %d", count)
	}
	if !strings.Contains(string(exec.stdin), `"pipeline"`) {
		t.Fatalf("engine did not receive pipeline JSON: %s", exec.stdin)
	}
}

func TestCommandEngineToleratesMissingCount(t *testing.T) {
	engine, err := NewCommandEngine("pdal", WithExecutor(&fakeExecutor{lines: []string{"no count here"}}))
	if err != nil {
		t.Fatal(err)
	}
	count, err := engine.Execute(context.Background(), Pipeline{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected zero count, got %d", count)
	}
}

func TestCommandEngineClassifiesFailure(t *testing.T) {
	engine, err := NewCommandEngine("pdal", WithExecutor(&fakeExecutor{err: errors.New("boom")}))
	if err != nil {
		t.Fatal(err)
	}
	_, err = engine.Execute(context.Background(), Pipeline{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrEngine) {
		t.Fatalf("expected engine failure classification, got %v", err)
	}
}

func TestNewCommandEngineRequiresBinary(t *testing.T) {
	if _, err := NewCommandEngine("  "); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

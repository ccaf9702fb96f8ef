package las

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"tilegrind/internal/testsupport"
)

func TestOpenDecodesCoordinates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.las")
	testsupport.WriteLAS(t, path, []testsupport.Point{
		{X: 10.5, Y: 20.25, Z: 1},
		{X: -3, Y: 7, Z: 2.5},
	})

	cloud, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if cloud.Count() != 2 {
		t.Fatalf("expected 2 points, got %d", cloud.Count())
	}
	if cloud.VersionMajor != 1 || cloud.VersionMinor != 2 {
		t.Fatalf("unexpected version %d.%d", cloud.VersionMajor, cloud.VersionMinor)
	}
	if math.Abs(cloud.X(0)-10.5) > 1e-9 || math.Abs(cloud.Y(0)-20.25) > 1e-9 {
		t.Fatalf("unexpected first point (%v, %v)", cloud.X(0), cloud.Y(0))
	}
	if math.Abs(cloud.X(1)+3) > 1e-9 || math.Abs(cloud.Z(1)-2.5) > 1e-9 {
		t.Fatalf("unexpected second point (%v, %v)", cloud.X(1), cloud.Z(1))
	}
}

func TestOpenRejectsNonLAS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.las")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for non-LAS input")
	}
}

func TestOpenRejectsCompressed(t *testing.T) {
	data := testsupport.BuildLAS([]testsupport.Point{{X: 1, Y: 1, Z: 1}})
	data[104] |= 0x80 // LAZ marker
	path := filepath.Join(t.TempDir(), "tile.laz")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path)
	if !errors.Is(err, ErrCompressed) {
		t.Fatalf("expected ErrCompressed, got %v", err)
	}
}

func TestWriteSubsetPreservesFormatAndCounts(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.las")
	dst := filepath.Join(dir, "dst.las")
	testsupport.WriteLAS(t, src, []testsupport.Point{
		{X: 1, Y: 1, Z: 1},
		{X: 2, Y: 2, Z: 2},
		{X: 3, Y: 3, Z: 3},
	})

	cloud, err := Open(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := cloud.WriteSubset(dst, []bool{true, false, true}); err != nil {
		t.Fatal(err)
	}

	subset, err := Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	if subset.Count() != 2 {
		t.Fatalf("expected 2 retained points, got %d", subset.Count())
	}
	if subset.PointFormat != cloud.PointFormat || subset.VersionMinor != cloud.VersionMinor {
		t.Fatal("subset did not preserve format metadata")
	}
	if subset.X(0) != 1 || subset.X(1) != 3 {
		t.Fatalf("unexpected retained points %v, %v", subset.X(0), subset.X(1))
	}

	raw, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	maxX := math.Float64frombits(binary.LittleEndian.Uint64(raw[179:]))
	minX := math.Float64frombits(binary.LittleEndian.Uint64(raw[187:]))
	if minX != 1 || maxX != 3 {
		t.Fatalf("bounds not rewritten: min %v max %v", minX, maxX)
	}
}

func TestWriteSubsetMaskLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.las")
	testsupport.WriteLAS(t, src, []testsupport.Point{{X: 1, Y: 1, Z: 1}})

	cloud, err := Open(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := cloud.WriteSubset(filepath.Join(dir, "dst.las"), []bool{true, true}); err == nil {
		t.Fatal("expected mask length error")
	}
}

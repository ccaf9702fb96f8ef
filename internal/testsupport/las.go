// Package testsupport provides fixtures shared by package tests.
package testsupport

import (
	"encoding/binary"
	"math"
	"os"
	"testing"
)

const (
	lasHeaderSize   = 227
	lasRecordLength = 20
	lasScale        = 0.01
)

// Point is one x/y/z coordinate in a generated fixture tile.
type Point struct {
	X, Y, Z float64
}

// WriteLAS writes a minimal uncompressed LAS 1.2 point-format-0 file holding
// the given points, scaled at 0.01 with a zero offset.
func WriteLAS(tb testing.TB, path string, points []Point) {
	tb.Helper()
	if err := os.WriteFile(path, BuildLAS(points), 0o644); err != nil {
		tb.Fatal(err)
	}
}

// BuildLAS renders the raw bytes of a minimal LAS 1.2 file.
func BuildLAS(points []Point) []byte {
	data := make([]byte, lasHeaderSize, lasHeaderSize+len(points)*lasRecordLength)
	copy(data[0:4], "LASF")
	data[24] = 1 // version major
	data[25] = 2 // version minor
	binary.LittleEndian.PutUint16(data[94:], lasHeaderSize)
	binary.LittleEndian.PutUint32(data[96:], lasHeaderSize)
	data[104] = 0 // point format
	binary.LittleEndian.PutUint16(data[105:], lasRecordLength)
	binary.LittleEndian.PutUint32(data[107:], uint32(len(points)))

	for axis := 0; axis < 3; axis++ {
		binary.LittleEndian.PutUint64(data[131+8*axis:], math.Float64bits(lasScale))
		binary.LittleEndian.PutUint64(data[155+8*axis:], math.Float64bits(0))
	}

	minC := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxC := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, pt := range points {
		record := make([]byte, lasRecordLength)
		coords := [3]float64{pt.X, pt.Y, pt.Z}
		for axis, v := range coords {
			binary.LittleEndian.PutUint32(record[4*axis:], uint32(int32(math.Round(v/lasScale))))
			if v < minC[axis] {
				minC[axis] = v
			}
			if v > maxC[axis] {
				maxC[axis] = v
			}
		}
		data = append(data, record...)
	}
	if len(points) > 0 {
		for axis := 0; axis < 3; axis++ {
			binary.LittleEndian.PutUint64(data[179+16*axis:], math.Float64bits(maxC[axis]))
			binary.LittleEndian.PutUint64(data[179+16*axis+8:], math.Float64bits(minC[axis]))
		}
	}
	return data
}

package las

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"tilegrind/internal/fileutil"
)

// Public header field offsets shared by LAS 1.0 through 1.4.
const (
	offVersionMajor  = 24
	offVersionMinor  = 25
	offHeaderSize    = 94
	offPointDataOff  = 96
	offPointFormat   = 104
	offRecordLength  = 105
	offLegacyCount   = 107
	offLegacyReturns = 111
	offXScale        = 131
	offXOffset       = 155
	offMaxX          = 179
	offExtendedCount = 247

	minHeaderSize       = 227
	las14HeaderSize     = 375
	minRecordLength     = 12
	compressedFormatBit = 0x80
)

// ErrCompressed reports a LAZ-compressed payload the built-in codec cannot read.
var ErrCompressed = errors.New("las: compressed point data not supported")

// Cloud is one loaded LAS file: the verbatim header block (VLRs included) and
// the raw point records. Records stay undecoded except for coordinates.
type Cloud struct {
	VersionMajor uint8
	VersionMinor uint8
	PointFormat  uint8

	header    []byte
	records   []byte
	recordLen int
	count     int

	scale  [3]float64
	offset [3]float64
}

// Open loads the entire file. Tiles are processed one per worker process, so
// holding one cloud in memory at a time is the expected footprint.
func Open(path string) (*Cloud, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("las: read %s: %w", path, err)
	}
	return parse(data, path)
}

func parse(data []byte, path string) (*Cloud, error) {
	if len(data) < minHeaderSize || string(data[0:4]) != "LASF" {
		return nil, fmt.Errorf("las: %s is not a LAS file", path)
	}

	headerSize := int(binary.LittleEndian.Uint16(data[offHeaderSize:]))
	pointOffset := int(binary.LittleEndian.Uint32(data[offPointDataOff:]))
	if headerSize < minHeaderSize || pointOffset < headerSize || pointOffset > len(data) {
		return nil, fmt.Errorf("las: %s has an inconsistent header layout", path)
	}

	format := data[offPointFormat]
	if format&compressedFormatBit != 0 {
		return nil, fmt.Errorf("las: %s: %w", path, ErrCompressed)
	}

	recordLen := int(binary.LittleEndian.Uint16(data[offRecordLength:]))
	if recordLen < minRecordLength {
		return nil, fmt.Errorf("las: %s declares record length %d", path, recordLen)
	}

	count := int(binary.LittleEndian.Uint32(data[offLegacyCount:]))
	if count == 0 && headerSize >= las14HeaderSize {
		count = int(binary.LittleEndian.Uint64(data[offExtendedCount:]))
	}
	available := (len(data) - pointOffset) / recordLen
	if count > available {
		return nil, fmt.Errorf("las: %s declares %d points but holds %d", path, count, available)
	}

	cloud := &Cloud{
		VersionMajor: data[offVersionMajor],
		VersionMinor: data[offVersionMinor],
		PointFormat:  format,
		header:       data[:pointOffset],
		records:      data[pointOffset : pointOffset+count*recordLen],
		recordLen:    recordLen,
		count:        count,
	}
	for axis := 0; axis < 3; axis++ {
		cloud.scale[axis] = math.Float64frombits(binary.LittleEndian.Uint64(data[offXScale+8*axis:]))
		cloud.offset[axis] = math.Float64frombits(binary.LittleEndian.Uint64(data[offXOffset+8*axis:]))
	}
	return cloud, nil
}

// Count returns the number of point records.
func (c *Cloud) Count() int { return c.count }

// X returns the decoded x coordinate of record i.
func (c *Cloud) X(i int) float64 { return c.coord(i, 0) }

// Y returns the decoded y coordinate of record i.
func (c *Cloud) Y(i int) float64 { return c.coord(i, 1) }

// Z returns the decoded z coordinate of record i.
func (c *Cloud) Z(i int) float64 { return c.coord(i, 2) }

func (c *Cloud) coord(i, axis int) float64 {
	raw := int32(binary.LittleEndian.Uint32(c.records[i*c.recordLen+4*axis:]))
	return float64(raw)*c.scale[axis] + c.offset[axis]
}

// WriteSubset writes the records selected by keep to path, preserving the
// original header (point format and version included) and rewriting the
// point count and coordinate bounds. The write is temp-then-rename so a
// crash never leaves a truncated tile behind.
func (c *Cloud) WriteSubset(path string, keep []bool) error {
	if len(keep) != c.count {
		return fmt.Errorf("las: keep mask length %d does not match %d records", len(keep), c.count)
	}

	retained := 0
	for _, k := range keep {
		if k {
			retained++
		}
	}

	out := make([]byte, len(c.header), len(c.header)+retained*c.recordLen)
	copy(out, c.header)

	minC := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxC := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := 0; i < c.count; i++ {
		if !keep[i] {
			continue
		}
		out = append(out, c.records[i*c.recordLen:(i+1)*c.recordLen]...)
		for axis := 0; axis < 3; axis++ {
			v := c.coord(i, axis)
			if v < minC[axis] {
				minC[axis] = v
			}
			if v > maxC[axis] {
				maxC[axis] = v
			}
		}
	}
	if retained == 0 {
		minC = [3]float64{}
		maxC = [3]float64{}
	}

	patchCounts(out, retained)
	patchBounds(out, minC, maxC)

	return fileutil.WriteFileAtomic(path, out, 0o644)
}

func patchCounts(header []byte, count int) {
	if count <= math.MaxUint32 {
		binary.LittleEndian.PutUint32(header[offLegacyCount:], uint32(count))
	} else {
		binary.LittleEndian.PutUint32(header[offLegacyCount:], 0)
	}
	// Per-return tallies are not tracked through a subset write.
	for i := 0; i < 5; i++ {
		binary.LittleEndian.PutUint32(header[offLegacyReturns+4*i:], 0)
	}
	headerSize := int(binary.LittleEndian.Uint16(header[offHeaderSize:]))
	if headerSize >= las14HeaderSize {
		binary.LittleEndian.PutUint64(header[offExtendedCount:], uint64(count))
		for i := 0; i < 15; i++ {
			binary.LittleEndian.PutUint64(header[offExtendedCount+8+8*i:], 0)
		}
	}
}

func patchBounds(header []byte, minC, maxC [3]float64) {
	for axis := 0; axis < 3; axis++ {
		binary.LittleEndian.PutUint64(header[offMaxX+16*axis:], math.Float64bits(maxC[axis]))
		binary.LittleEndian.PutUint64(header[offMaxX+16*axis+8:], math.Float64bits(minC[axis]))
	}
}

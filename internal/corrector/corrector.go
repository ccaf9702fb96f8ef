package corrector

import (
	"os"

	"tilegrind/internal/fileutil"
	"tilegrind/internal/las"
	"tilegrind/internal/services"
)

// Axis names a planar split axis.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

// Decision records what the corrector did with one tile file. It is not
// persisted; the written output file is its durable effect.
type Decision struct {
	Split     bool
	Axis      Axis
	Center    float64
	Retained  int
	Discarded int
}

// Operation names the decision for logs and run results.
func (d Decision) Operation() string {
	if d.Split {
		return "split"
	}
	return "copied"
}

// Correct applies the heuristic to one tile file. Tiles within the threshold
// on both axes are copied unchanged; oversized tiles are split along the
// wider axis and only the dominant half is written. Exactly one output file
// results either way.
func Correct(srcPath, dstPath string, threshold float64) (Decision, error) {
	cloud, err := las.Open(srcPath)
	if err != nil {
		return Decision{}, services.Wrap(services.ErrCorrection, "corrector", "open tile", srcPath, err)
	}

	xMin, xMax := coordRange(cloud.Count(), cloud.X)
	yMin, yMax := coordRange(cloud.Count(), cloud.Y)
	xExtent := xMax - xMin
	yExtent := yMax - yMin

	if xExtent <= threshold && yExtent <= threshold {
		// Copy through a temp name so an interrupted run never leaves a
		// partial file that a later run would skip as done.
		partial := dstPath + ".partial"
		if err := fileutil.CopyFileVerified(srcPath, partial); err != nil {
			return Decision{}, services.Wrap(services.ErrCorrection, "corrector", "copy tile", srcPath, err)
		}
		if err := os.Rename(partial, dstPath); err != nil {
			_ = os.Remove(partial)
			return Decision{}, services.Wrap(services.ErrCorrection, "corrector", "copy tile", dstPath, err)
		}
		return Decision{Retained: cloud.Count()}, nil
	}

	// Ties favor x, matching the extent comparison order.
	axis, coord, lo, hi := AxisX, cloud.X, xMin, xMax
	if yExtent > xExtent {
		axis, coord, lo, hi = AxisY, cloud.Y, yMin, yMax
	}
	center := (lo + hi) / 2

	below := 0
	for i := 0; i < cloud.Count(); i++ {
		if coord(i) < center {
			below++
		}
	}
	above := cloud.Count() - below

	// Ties favor the lower-coordinate partition.
	keepBelow := below >= above
	keep := make([]bool, cloud.Count())
	retained := 0
	for i := range keep {
		if (coord(i) < center) == keepBelow {
			keep[i] = true
			retained++
		}
	}

	if err := cloud.WriteSubset(dstPath, keep); err != nil {
		return Decision{}, services.Wrap(services.ErrCorrection, "corrector", "write retained half", dstPath, err)
	}

	return Decision{
		Split:     true,
		Axis:      axis,
		Center:    center,
		Retained:  retained,
		Discarded: cloud.Count() - retained,
	}, nil
}

func coordRange(count int, coord func(int) float64) (float64, float64) {
	if count == 0 {
		return 0, 0
	}
	lo, hi := coord(0), coord(0)
	for i := 1; i < count; i++ {
		v := coord(i)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

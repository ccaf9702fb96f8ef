// Package corrector implements the oversized-tile correction heuristic.
//
// A tile whose planar extent exceeds the threshold on either axis is assumed
// to be two adjacent tiles merged into one. The corrector splits along the
// wider axis at the arithmetic midpoint of the extent and keeps only the
// dominant half; the discarded half is intentionally lost. Tiles within the
// threshold pass through as verified copies. Either way exactly one output
// file results per input.
package corrector

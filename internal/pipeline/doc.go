// Package pipeline builds the declarative stage lists handed to the external
// point-cloud engine and invokes the engine binary.
//
// The engine is opaque: tilegrind only populates stage descriptors (type, an
// optional tag, and type-specific parameters) and feeds the resulting
// pipeline JSON to the binary on stdin. Stage semantics, reprojection math,
// and outlier statistics all live on the engine side.
package pipeline

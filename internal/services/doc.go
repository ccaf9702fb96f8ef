// Package services defines the error classification shared by tilegrind's
// per-item pipeline. Sentinel markers tag failures so the worker pool and run
// summary can bucket them without string matching.
package services

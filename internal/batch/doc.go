// Package batch turns a run request into work items and drives them through
// the worker pool.
//
// The partitioner decides, per tile, whether any work remains by comparing the
// committed progress record against the configured target; enumerators build
// the item lists for the filter and correction passes from the source tree.
// The orchestrator owns the run: single-dispatcher locking, preflight checks,
// dispatch, aggregation, and the run journal. Item failures are aggregated,
// never fatal to the batch.
package batch

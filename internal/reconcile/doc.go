// Package reconcile promotes engine output shards from a work item's staging
// directory into the stable destination namespace.
//
// Staged shards carry a zero-based local index; promotion maps each one to
// global id resume_offset + local_index. The completed count committed to the
// progress store is always a physical recount of the destination directory,
// which is the sole repair mechanism after a crash mid-promotion. Staging is
// discarded after reconciliation, success or failure.
package reconcile

// Package progress persists per-tile shard counters across runs.
//
// Each destination key owns one small record under <dest>/<key>/log holding
// two integers, "required,completed". Records are replaced atomically so a
// reader never observes a partial value. Completed counts are always
// recomputed from the destination filesystem before commit, never derived
// arithmetically, which makes retries after a crash or timeout safe.
package progress

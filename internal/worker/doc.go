// Package worker dispatches work items across process-isolated workers with a
// hard per-item timeout.
//
// Each item runs in a fresh worker process that executes exactly one item and
// exits, bounding native memory growth from the engine. A timed-out item's
// worker is killed by process group without touching sibling items; the engine
// cannot be asked to stop gracefully. Results are matched back to items by
// submission index regardless of completion order.
package worker

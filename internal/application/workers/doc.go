// Package workers implements the pipeline runner pool.
//
// The pool manages a fixed number of goroutines that:
//   - Pick up submitted pipeline ids from a bounded queue
//   - Drive each pipeline to a terminal status via the executor
//   - Bound each run with the configured pipeline timeout
//
// The health monitor tracks runner occupancy and active pipelines and
// feeds the metrics gauges.
package workers

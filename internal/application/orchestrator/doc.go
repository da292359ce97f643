// Package orchestrator is the externally-callable entry point of the
// campaign pipeline engine.
//
// The manager coordinates pipeline lifecycle by:
//   - Validating start requests (no state is created on bad input)
//   - Creating the initial pipeline state and handing it to the runner pool
//   - Exposing status, cancellation, and active-pipeline queries
//
// It owns no stage or retry logic; that lives in the executor.
package orchestrator

// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Starting, cancelling and listing campaign pipelines
//   - Status queries with partial stage results
//   - Compliance result and stats read-through
//   - Health checks
//   - Prometheus metrics
package http

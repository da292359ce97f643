// Package statestore provides StateStore implementations.
//
// Implementations:
//   - memory: in-process registry, the default single-process deployment
//   - redis: Redis with JSON serialization and TTL, for bounded retention
package statestore

// Package domain defines the core types of the campaign pipeline
// orchestrator: pipeline state and stage results, compliance verdicts,
// agent error classification, and lifecycle events.
package domain

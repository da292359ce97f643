// Package executor drives one campaign pipeline from pending to a
// terminal status. It calls the agent clients in the fixed stage order,
// records every transition through the state store before the next
// stage begins, honors cooperative cancellation at stage boundaries,
// and assembles the final campaign summary.
package executor

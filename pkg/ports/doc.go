// Package ports defines the interfaces between the orchestration core
// and its adapters: state storage, event bus, metrics, and the four
// external agent clients.
package ports

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a pipeline id is unknown.
	ErrNotFound = errors.New("pipeline not found")

	// ErrDuplicateID is returned when id generation collides twice.
	ErrDuplicateID = errors.New("duplicate pipeline id")

	// ErrAlreadyTerminal is returned when an operation requires a
	// non-terminal pipeline.
	ErrAlreadyTerminal = errors.New("pipeline already in terminal state")

	// ErrValidation wraps all start-request validation failures.
	ErrValidation = errors.New("invalid request")
)

// AgentErrorKind classifies agent call failures for retry decisions.
type AgentErrorKind string

const (
	// AgentErrorUnavailable covers network failures, timeouts and
	// non-2xx responses. Retryable.
	AgentErrorUnavailable AgentErrorKind = "unavailable"

	// AgentErrorInvalidInput covers 4xx rejections of the request
	// payload. Not retryable.
	AgentErrorInvalidInput AgentErrorKind = "invalid_input"

	// AgentErrorInternal covers malformed responses and other
	// client-side failures. Not retryable.
	AgentErrorInternal AgentErrorKind = "internal"
)

// AgentError is the only error type agent clients return. Transport
// errors never cross the client boundary raw.
type AgentError struct {
	Agent   string
	Kind    AgentErrorKind
	Message string
	Cause   error
}

func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s agent: %s: %v", e.Agent, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s agent: %s", e.Agent, e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the executor should retry the call.
func (e *AgentError) Retryable() bool {
	return e.Kind == AgentErrorUnavailable
}

// NewAgentError builds a classified agent error.
func NewAgentError(agent string, kind AgentErrorKind, message string, cause error) *AgentError {
	return &AgentError{Agent: agent, Kind: kind, Message: message, Cause: cause}
}

// AsAgentError extracts an AgentError from err, if any.
func AsAgentError(err error) (*AgentError, bool) {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr, true
	}
	return nil, false
}

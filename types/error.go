package types

import "fmt"

// ErrorCode represents a unified error code across the orchestrator.
type ErrorCode string

// Input errors: rejected synchronously, no state change.
const (
	ErrEmptyInput        ErrorCode = "EMPTY_INPUT"
	ErrNoAgents          ErrorCode = "NO_AGENTS"
	ErrInvalidAgentOrder ErrorCode = "INVALID_AGENT_ORDER"
	ErrUnknownAgent      ErrorCode = "UNKNOWN_AGENT"
)

// Transition errors: the requested action is not legal in the current state.
const (
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrRunNotActive      ErrorCode = "RUN_NOT_ACTIVE"
	ErrStaleSession      ErrorCode = "STALE_SESSION"
)

// Backend errors: captured per-agent, recoverable via retry.
const (
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrUpstreamError  ErrorCode = "UPSTREAM_ERROR"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
)

// Template and internal errors.
const (
	ErrTemplateInvalid ErrorCode = "TEMPLATE_INVALID"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	AgentID   int       `json:"agent_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithAgent attaches the id of the agent the error occurred on.
func (e *Error) WithAgent(agentID int) *Error {
	e.AgentID = agentID
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

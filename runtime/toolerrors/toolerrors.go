// Package toolerrors provides structured error types for tool invocation
// failures. Errors carry a behavioral kind so callers branch on errors.Is/As
// rather than string matching; the executor, critic, and orchestrator all key
// their handling off the kind.
package toolerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a tool failure by the handling it demands.
type Kind string

const (
	// KindTransient marks I/O and other failures worth retrying.
	KindTransient Kind = "transient"
	// KindHTTP marks transport-level HTTP failures (connection refused,
	// timeout). Status codes are not errors; the critic judges those.
	KindHTTP Kind = "http_error"
	// KindApprovalRequired marks a gated step lacking a recorded approval.
	// Never retried; execution pauses until an approval arrives out of band.
	KindApprovalRequired Kind = "approval_required"
	// KindPermissionDenied marks an RBAC rejection. Never retried.
	KindPermissionDenied Kind = "permission_denied"
	// KindUnknownTool marks dispatch to a name absent from the registry.
	KindUnknownTool Kind = "unknown_tool"
	// KindCriticReject marks a result that failed post-step validation.
	KindCriticReject Kind = "critic_reject"
	// KindStorage marks an outbox write or read failure. Fatal to the step.
	KindStorage Kind = "storage"
	// KindPolicy marks a plan-level policy violation (max_steps, cycles).
	KindPolicy Kind = "policy_violation"
)

// ToolError is a structured tool failure that preserves its kind and causal
// context while implementing the standard error interface.
type ToolError struct {
	// Kind classifies the failure for retry and recovery decisions.
	Kind Kind
	// Message is the human-readable summary of the failure.
	Message string
	// Cause links to the underlying error, enabling errors.Is/As chains.
	Cause error
}

// New constructs a ToolError of the given kind.
func New(kind Kind, message string) *ToolError {
	if message == "" {
		message = string(kind)
	}
	return &ToolError{Kind: kind, Message: message}
}

// Wrap constructs a ToolError of the given kind around an underlying error.
func Wrap(kind Kind, message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ToolError{Kind: kind, Message: message, Cause: cause}
}

// Errorf formats according to a format specifier and returns a ToolError of
// the given kind.
func Errorf(kind Kind, format string, args ...any) *ToolError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap returns the underlying error to support errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf returns the kind of err when it is (or wraps) a ToolError, and
// KindTransient otherwise: unknown failures default to the retryable class.
func KindOf(err error) Kind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindTransient
}

// IsKind reports whether err is (or wraps) a ToolError of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *ToolError
	return errors.As(err, &te) && te.Kind == kind
}

// Retryable reports whether the executor may retry after err. Approval gates,
// permission denials, unknown tools, and policy violations are terminal.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindApprovalRequired, KindPermissionDenied, KindUnknownTool, KindPolicy, KindStorage:
		return false
	default:
		return true
	}
}

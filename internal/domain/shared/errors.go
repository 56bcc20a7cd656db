package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError so that transports can map it without
// knowing every individual code.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindState            ErrorKind = "state"
	KindNotAuthenticated ErrorKind = "unauthenticated"
	KindUpstream         ErrorKind = "upstream"
	KindConflict         ErrorKind = "conflict"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the upstream cause, if any.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code, so wrapped copies of the sentinels
// below still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error. Kind is inferred from the code
// for the common sentinels and defaults to validation otherwise.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Kind:    kindForCode(code),
		Code:    code,
		Message: message,
	}
}

func NewValidationError(code, message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: message}
}

func NewNotFoundError(code, message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Code: code, Message: message}
}

func NewStateError(code, message string) *DomainError {
	return &DomainError{Kind: KindState, Code: code, Message: message}
}

// NewUpstreamError wraps a failure reported by an external collaborator.
func NewUpstreamError(code, message string, cause error) *DomainError {
	return &DomainError{Kind: KindUpstream, Code: code, Message: message, Cause: cause}
}

// IsKind reports whether err carries a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

func kindForCode(code string) ErrorKind {
	switch code {
	case "NOT_FOUND":
		return KindNotFound
	case "CONCURRENCY_CONFLICT", "ALREADY_EXISTS":
		return KindConflict
	case "INVALID_STATE":
		return KindState
	case "UNAUTHORIZED", "NOT_AUTHENTICATED":
		return KindNotAuthenticated
	default:
		return KindValidation
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrNotAuthenticated    = NewDomainError("NOT_AUTHENTICATED", "Operator identity is required")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

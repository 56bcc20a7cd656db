package dto

import (
	"errors"
	"net/http"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/sony/gobreaker"
)

// Transport-level error codes. Domain errors keep their own codes
// (BATCH_NOT_FOUND, OVERPAYMENT_REJECTED, ...) in responses.
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps transport error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,
}

// Domain codes whose status differs from the default for their kind
var codeStatusOverrides = map[string]int{
	"OVERPAYMENT_REJECTED":   http.StatusUnprocessableEntity,
	"TOTAL_VALUE_MISMATCH":   http.StatusUnprocessableEntity,
	"CONCURRENCY_CONFLICT":   http.StatusConflict,
	"ALREADY_VERIFIED":       http.StatusConflict,
	"IDEMPOTENCY_KEY_REUSED": http.StatusUnprocessableEntity,

	"STATEMENT_STORAGE_DISABLED": http.StatusServiceUnavailable,
}

var kindStatus = map[shared.ErrorKind]int{
	shared.KindValidation:       http.StatusBadRequest,
	shared.KindNotFound:         http.StatusNotFound,
	shared.KindState:            http.StatusUnprocessableEntity,
	shared.KindConflict:         http.StatusConflict,
	shared.KindNotAuthenticated: http.StatusUnauthorized,
	shared.KindUpstream:         http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for a transport error code.
// Unknown codes are internal errors.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StatusForDomainError maps a domain error to its HTTP status. An upstream
// error caused by an open circuit is reported as 503 so callers can back off.
func StatusForDomainError(err *shared.DomainError) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	if status, ok := codeStatusOverrides[err.Code]; ok {
		return status
	}
	if err.Kind == shared.KindUpstream &&
		(errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)) {
		return http.StatusServiceUnavailable
	}
	if status, ok := kindStatus[err.Kind]; ok {
		return status
	}
	return http.StatusBadRequest
}

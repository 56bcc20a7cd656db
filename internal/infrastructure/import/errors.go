package csvimport

import (
	"errors"
	"fmt"
)

// Row error codes
const (
	CodeRequired    = "REQUIRED"
	CodeInvalidType = "INVALID_TYPE"
	CodeTooLong     = "TOO_LONG"
	CodeOutOfRange  = "OUT_OF_RANGE"
	CodeDuplicate   = "DUPLICATE_IN_FILE"
	CodeRejected    = "REJECTED"
)

// File level errors
var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidEncoding = errors.New("file is not valid UTF-8")
	ErrMissingHeader   = errors.New("file has no header line")
	ErrInvalidHeader   = errors.New("invalid header")
	ErrMalformedRow    = errors.New("malformed row")
	ErrNoDataRows      = errors.New("file has no data rows")
	ErrTooManyRows     = errors.New("too many rows")
)

// RowError locates a problem in the file. Column is empty when the whole
// row was rejected.
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ErrorCollection keeps the first max errors and counts the rest
type ErrorCollection struct {
	errors []RowError
	max    int
	total  int
	lines  map[int]struct{}
}

// NewErrorCollection creates a collection holding at most max errors
// (100 when max is not positive)
func NewErrorCollection(max int) *ErrorCollection {
	if max <= 0 {
		max = 100
	}
	return &ErrorCollection{max: max, lines: make(map[int]struct{})}
}

// Add records err
func (c *ErrorCollection) Add(err RowError) {
	c.total++
	c.lines[err.Line] = struct{}{}
	if len(c.errors) < c.max {
		c.errors = append(c.errors, err)
	}
}

// Reject records a row-level failure reported after validation
func (c *ErrorCollection) Reject(line int, code, message string) {
	c.Add(RowError{Line: line, Code: code, Message: message})
}

// Errors returns the kept errors in the order they were added
func (c *ErrorCollection) Errors() []RowError {
	return c.errors
}

// Total counts every error, kept or not
func (c *ErrorCollection) Total() int {
	return c.total
}

// Lines counts distinct lines with at least one error
func (c *ErrorCollection) Lines() int {
	return len(c.lines)
}

// HasErrors reports whether anything was added
func (c *ErrorCollection) HasErrors() bool {
	return c.total > 0
}

// Truncated reports whether errors were dropped at the limit
func (c *ErrorCollection) Truncated() bool {
	return c.total > len(c.errors)
}

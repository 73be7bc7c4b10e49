// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed validation errors for fluxcheck.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorCode classifies validation failures.
type ErrorCode string

const (
	// CodeSyntax indicates the input could not be parsed at all.
	CodeSyntax ErrorCode = "SYNTAX_ERROR"

	// CodeStructural indicates the parsed data has the wrong shape.
	CodeStructural ErrorCode = "STRUCTURAL_ERROR"

	// CodeSemantic indicates a cross-reference or business rule was violated.
	CodeSemantic ErrorCode = "SEMANTIC_ERROR"

	// CodeInternal indicates an unexpected fault inside the validator.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates a caller supplied unusable arguments.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates a referenced file was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// ValidationError is a typed error carrying the location of a problem in
// the validated document. It can be unwrapped with errors.As().
type ValidationError struct {
	Code    ErrorCode
	Message string
	Path    string // e.g. "resources[0].with[1].count"
	Line    int
	Column  int
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Code)
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	return b.String()
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *ValidationError) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Path    string                 `json:"path,omitempty"`
		Line    int                    `json:"line,omitempty"`
		Column  int                    `json:"column,omitempty"`
		Err     string                 `json:"error,omitempty"`
		Context map[string]interface{} `json:"context,omitempty"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
		Path:    e.Path,
		Line:    e.Line,
		Column:  e.Column,
		Err:     cause,
		Context: e.Context,
	})
}

// New creates a new ValidationError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// Newf creates a ValidationError without a cause from a format string.
func Newf(code ErrorCode, format string, args ...interface{}) *ValidationError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithPath sets the document path of the error.
// Returns the error for method chaining.
func (e *ValidationError) WithPath(path string) *ValidationError {
	e.Path = path
	return e
}

// At sets the source position of the error.
// Returns the error for method chaining.
func (e *ValidationError) At(line, column int) *ValidationError {
	e.Line = line
	e.Column = column
	return e
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// AsValidationError attempts to convert an error to a ValidationError.
// Unknown errors are wrapped as internal errors.
func AsValidationError(err error) *ValidationError {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*ValidationError); ok {
		return ve
	}
	return New(CodeInternal, "unexpected error", err)
}

// List is an ordered collection of validation errors.
type List []*ValidationError

// Strings renders every error with Error().
func (l List) Strings() []string {
	out := make([]string, 0, len(l))
	for _, e := range l {
		out = append(out, e.Error())
	}
	return out
}

// Error joins the rendered errors with "; ".
func (l List) Error() string {
	return strings.Join(l.Strings(), "; ")
}

// Err returns nil for an empty list and the list otherwise.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

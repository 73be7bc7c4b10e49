// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	errs "github.com/jllopis/fluxcheck/pkg/errors"
)

// CLIError wraps a ValidationError with a hint for the terminal.
type CLIError struct {
	*errs.ValidationError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(ve *errs.ValidationError, hint string) *CLIError {
	return &CLIError{ValidationError: ve, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.ValidationError == nil {
		return "unknown error"
	}
	msg := e.ValidationError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// PrintError writes the error to w, as a JSON object when asJSON is set.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	if e.ValidationError == nil {
		fmt.Fprintln(w, "Error: unknown error")
		return
	}
	if asJSON {
		payload := map[string]interface{}{
			"error": map[string]interface{}{
				"code":    e.Code,
				"message": e.message(),
				"hint":    e.Hint,
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s\n", e.Code, e.message())
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

func (e *CLIError) message() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// WrapConnectionError wraps a failure to reach a remote MCP server.
func WrapConnectionError(err error, addr string) *CLIError {
	ve := errs.New(errs.CodeInternal, "connection failed", err).
		WithContext("address", addr)
	return NewCLIError(ve, fmt.Sprintf("check if fluxcheck serve is running at %s", addr))
}

// NewNotFoundError creates a not found error with CLI hints.
func NewNotFoundError(resource, name string) *CLIError {
	ve := errs.Newf(errs.CodeNotFound, "%s '%s' not found", resource, name).
		WithContext("resource", resource).
		WithContext("name", name)
	return NewCLIError(ve, fmt.Sprintf("check that the %s exists and is readable", resource))
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	ve := errs.Newf(errs.CodeInvalidInput, "invalid argument: %s", reason).
		WithContext("argument", arg)
	return NewCLIError(ve, "run 'fluxcheck --help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	ve := errs.New(errs.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath)

	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(ve, hint)
}

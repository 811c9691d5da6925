// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - command error handling and exit codes.
package cli

import (
	"errors"
	"fmt"
	"os"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the server could not be reached
	ExitNetworkError = 5
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError carries a message, an exit code and an optional hint that
// is printed under the error.
type CommandError struct {
	Message string
	Code    int
	Hint    string
	Cause   error
}

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommandError) Unwrap() error { return e.Cause }

// UsageError builds a CommandError for invalid arguments.
func UsageError(format string, a ...any) *CommandError {
	return &CommandError{
		Message: fmt.Sprintf(format, a...),
		Code:    ExitUsageError,
		Hint:    "Run 'convo help' for usage.",
	}
}

// NetworkError builds a CommandError for a failed server request.
func NetworkError(cause error) *CommandError {
	return &CommandError{
		Message: "cannot reach the convo server",
		Code:    ExitNetworkError,
		Hint:    "Start it with 'convo serve'.",
		Cause:   cause,
	}
}

// HandleError prints err and exits with its code. A nil err is a no-op.
func HandleError(err error) {
	if err == nil {
		return
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cmdErr.Error())
		if cmdErr.Hint != "" {
			fmt.Fprintf(os.Stderr, "%s\n", cmdErr.Hint)
		}
		os.Exit(cmdErr.Code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitGeneralError)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERRORS
// =============================================================================

// Sentinel errors for turn and credential state.
var (
	// ErrNoCredentials indicates the client has no API key configured.
	ErrNoCredentials = errors.New("no API key configured")

	// ErrTurnInFlight indicates a send was attempted while a previous
	// turn is still streaming.
	ErrTurnInFlight = errors.New("a turn is already in flight")
)

// TransportError wraps a network or protocol failure while talking to the
// model endpoint. The conversation survives it; the turn does not.
type TransportError struct {
	Op    string // "connect", "request", "read"
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model transport %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ToolError wraps a failure inside a tool handler. It is reported back to
// the model as an error tool result rather than aborting the turn.
type ToolError struct {
	Tool  string
	Cause error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Cause)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

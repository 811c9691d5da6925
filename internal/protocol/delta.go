// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// delta.go - delta event types and the SSE frame codec.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType is the explicit discriminator on every wire event. Consumers
// dispatch on this tag only, never on which payload fields happen to be set.
type EventType string

const (
	// EventBlockStarted announces a new streaming block. It always precedes
	// any appended/finalized event for the same block ID.
	EventBlockStarted EventType = "block-started"

	// EventBlockAppended carries one content increment for a live block.
	EventBlockAppended EventType = "block-appended"

	// EventBlockFinalized marks a block's content as immutable.
	EventBlockFinalized EventType = "block-finalized"

	// EventUsageUpdated carries updated running token totals.
	EventUsageUpdated EventType = "token-usage-updated"

	// EventLifecycleStop is the terminal completion signal for a logical
	// turn. Exactly one is emitted per turn, tool continuations included.
	EventLifecycleStop EventType = "message-lifecycle-stop"

	// EventFault reports a turn-fatal error to the client.
	EventFault EventType = "fault"

	// EventKeepAlive is a periodic heartbeat with no semantic payload.
	EventKeepAlive EventType = "keep-alive"
)

// =============================================================================
// DELTA EVENT
// =============================================================================

// Delta is one incremental mutation to the conversation context. Only the
// fields relevant to Type are populated; BlockID is empty for lifecycle,
// usage, fault and keep-alive events.
type Delta struct {
	Type EventType `json:"type"`

	// Block events
	BlockID   string `json:"blockId,omitempty"`
	BlockType string `json:"blockType,omitempty"`
	ToolName  string `json:"toolName,omitempty"`
	ToolID    string `json:"toolId,omitempty"`
	Text      string `json:"delta,omitempty"`

	// Lifecycle / usage events
	MessageID    string `json:"messageId,omitempty"`
	StopReason   string `json:"stopReason,omitempty"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`

	// Fault events
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// BlockStarted builds a block-started event.
func BlockStarted(blockID, blockType, toolName, toolID string) Delta {
	return Delta{
		Type:      EventBlockStarted,
		BlockID:   blockID,
		BlockType: blockType,
		ToolName:  toolName,
		ToolID:    toolID,
	}
}

// BlockAppended builds a block-appended event.
func BlockAppended(blockID, text string) Delta {
	return Delta{Type: EventBlockAppended, BlockID: blockID, Text: text}
}

// BlockFinalized builds a block-finalized event.
func BlockFinalized(blockID string) Delta {
	return Delta{Type: EventBlockFinalized, BlockID: blockID}
}

// UsageUpdated builds a token-usage-updated event with the new running totals.
func UsageUpdated(inputTokens, outputTokens int) Delta {
	return Delta{
		Type:         EventUsageUpdated,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
}

// LifecycleStop builds the terminal completion event for a turn.
func LifecycleStop(messageID, stopReason string, inputTokens, outputTokens int) Delta {
	return Delta{
		Type:         EventLifecycleStop,
		MessageID:    messageID,
		StopReason:   stopReason,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
}

// Fault builds a fault event.
func Fault(message, code string) Delta {
	return Delta{Type: EventFault, Message: message, Code: code}
}

// KeepAlive builds a heartbeat event.
func KeepAlive() Delta {
	return Delta{Type: EventKeepAlive}
}

// =============================================================================
// SSE FRAMING
// =============================================================================

// MarshalSSE renders the delta as one server-sent-events frame:
//
//	event: <type>
//	data: <json>
//
// followed by the blank separator line.
func (d Delta) MarshalSSE() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal delta: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("event: ")
	sb.WriteString(string(d.Type))
	sb.WriteString("\ndata: ")
	sb.Write(data)
	sb.WriteString("\n\n")
	return []byte(sb.String()), nil
}

// ParseSSEData decodes the JSON payload of one SSE data line into a Delta.
// The embedded type tag is authoritative; an empty tag is rejected so an
// untagged producer fails loudly instead of being shape-sniffed.
func ParseSSEData(data []byte) (Delta, error) {
	var d Delta
	if err := json.Unmarshal(data, &d); err != nil {
		return Delta{}, fmt.Errorf("parse delta: %w", err)
	}
	if d.Type == "" {
		return Delta{}, fmt.Errorf("parse delta: missing type tag")
	}
	return d, nil
}

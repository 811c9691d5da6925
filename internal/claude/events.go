// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import "encoding/json"

// =============================================================================
// STREAM EVENT TYPES
// =============================================================================

// Stream event type tags as they appear on the wire.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// Content sub-block kinds inside a streamed message.
const (
	ContentText     = "text"
	ContentThinking = "thinking"
	ContentToolUse  = "tool_use"
)

// Stop reasons reported by message_delta.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
	StopSequence  = "stop_sequence"
)

// Event is one decoded stream event. Which pointer fields are set depends on
// Type, but dispatch always goes through the tag, never field presence.
type Event struct {
	Type string `json:"type"`

	// message_start
	Message *MessageInfo `json:"message,omitempty"`

	// content_block_*: Index is the remote sub-block index, only stable
	// within one turn.
	Index        int           `json:"index"`
	ContentBlock *ContentStart `json:"content_block,omitempty"`
	Delta        *ContentDelta `json:"delta,omitempty"`

	// message_delta
	Usage *Usage `json:"usage,omitempty"`

	// error
	Error *APIError `json:"error,omitempty"`
}

// MessageInfo is the envelope carried by message_start.
type MessageInfo struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Usage *Usage `json:"usage,omitempty"`
}

// ContentStart describes a new content sub-block.
type ContentStart struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`   // tool_use only
	Name string `json:"name,omitempty"` // tool_use only
	Text string `json:"text,omitempty"`
}

// ContentDelta is one increment for a live sub-block. Exactly one payload
// field is set, selected by Type.
type ContentDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`

	// message_delta reuses this struct for the stop reason.
	StopReason string `json:"stop_reason,omitempty"`
}

// Content returns the delta's payload regardless of which variant it is.
func (d *ContentDelta) Content() string {
	switch d.Type {
	case "text_delta":
		return d.Text
	case "thinking_delta":
		return d.Thinking
	case "input_json_delta":
		return d.PartialJSON
	default:
		return ""
	}
}

// Usage carries token counts. message_start reports input tokens,
// message_delta reports cumulative output tokens for the turn.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// APIError is the payload of an error event.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Request is the body of one streaming Messages call.
type Request struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []Message       `json:"messages"`
	Tools     json.RawMessage `json:"tools,omitempty"`
	Stream    bool            `json:"stream"`
}

// Message is one prior exchange entry replayed to the API.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is one typed part of a message.
type ContentPart struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextPart builds a plain text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ToolUsePart builds a tool_use content part.
func ToolUsePart(id, name string, input json.RawMessage) ContentPart {
	return ContentPart{Type: "tool_use", ID: id, Name: name, Input: input}
}

// ToolResultPart builds a tool_result content part.
func ToolResultPart(toolUseID, content string, isError bool) ContentPart {
	return ContentPart{Type: "tool_result", ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// block.go - content block types and streaming append semantics.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// =============================================================================
// BLOCK TYPE
// =============================================================================

// BlockType identifies what kind of content a block carries.
type BlockType string

const (
	BlockSystem         BlockType = "system"
	BlockToolDefinition BlockType = "tool_definition"
	BlockUser           BlockType = "user"
	BlockThinking       BlockType = "thinking"
	BlockText           BlockType = "text"
	BlockToolUse        BlockType = "tool_use"
	BlockToolResult     BlockType = "tool_result"
	BlockError          BlockType = "error"
)

// String returns the string representation of the block type.
func (t BlockType) String() string {
	return string(t)
}

// DisplayName returns a human-readable label for the block type.
func (t BlockType) DisplayName() string {
	switch t {
	case BlockSystem:
		return "System"
	case BlockToolDefinition:
		return "Tool"
	case BlockUser:
		return "You"
	case BlockThinking:
		return "Thinking"
	case BlockText:
		return "Assistant"
	case BlockToolUse:
		return "Tool Call"
	case BlockToolResult:
		return "Tool Result"
	case BlockError:
		return "Error"
	default:
		return string(t)
	}
}

// =============================================================================
// BLOCK METADATA
// =============================================================================

// Metadata carries the auxiliary fields of a block. Most of it is only known
// at finalize time (stop reason, token counts); tool name/id are known at
// creation for tool_use blocks.
type Metadata struct {
	ToolName     string `json:"tool_name,omitempty"`
	ToolID       string `json:"tool_id,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	IsSuccess    bool   `json:"is_success,omitempty"`
}

// Merge overlays non-zero fields from patch onto m.
func (m *Metadata) Merge(patch Metadata) {
	if patch.ToolName != "" {
		m.ToolName = patch.ToolName
	}
	if patch.ToolID != "" {
		m.ToolID = patch.ToolID
	}
	if patch.StopReason != "" {
		m.StopReason = patch.StopReason
	}
	if patch.InputTokens > 0 {
		m.InputTokens = patch.InputTokens
	}
	if patch.OutputTokens > 0 {
		m.OutputTokens = patch.OutputTokens
	}
	if patch.IsSuccess {
		m.IsSuccess = true
	}
}

// =============================================================================
// BLOCK TYPE
// =============================================================================

// Block is one atomic unit of conversation content. While IsStreaming is
// true the content only grows; once Finalize clears the flag the content is
// immutable and the flag never reverts.
type Block struct {
	// Identity
	ID        string    `json:"id"`
	Type      BlockType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming   bool            `json:"is_streaming"`
	streamContent strings.Builder `json:"-"`

	// Metadata, mostly set at finalize
	Metadata Metadata `json:"metadata"`

	// EstimatedHeight is the derived wrap-aware height used for scroll math.
	// Recomputed on every append with the shared heuristic in height.go.
	EstimatedHeight int `json:"estimated_height"`
}

// NewBlock creates a streaming block with empty content.
func NewBlock(t BlockType, meta Metadata) *Block {
	b := &Block{
		ID:          generateBlockID(),
		Type:        t,
		Timestamp:   time.Now(),
		IsStreaming: true,
		Metadata:    meta,
	}
	b.EstimatedHeight = EstimateHeight("")
	return b
}

// NewCompleteBlock creates a fully-formed, non-streamed block in one call.
func NewCompleteBlock(t BlockType, content string, meta Metadata) *Block {
	return &Block{
		ID:              generateBlockID(),
		Type:            t,
		Timestamp:       time.Now(),
		Content:         content,
		Metadata:        meta,
		EstimatedHeight: EstimateHeight(content),
	}
}

// =============================================================================
// BLOCK METHODS
// =============================================================================

// Append concatenates text onto a streaming block and recomputes the height.
// Ignored on a finalized block.
func (b *Block) Append(text string) {
	if !b.IsStreaming {
		return
	}
	// A block decoded from a snapshot carries partial text in Content;
	// fold it into the builder before the first append.
	if b.streamContent.Len() == 0 && b.Content != "" {
		b.streamContent.WriteString(b.Content)
		b.Content = ""
	}
	b.streamContent.WriteString(text)
	b.EstimatedHeight = EstimateHeight(b.Text())
}

// Finalize clears the streaming flag and merges the metadata patch.
// Idempotent: a second call with the same patch is a no-op.
func (b *Block) Finalize(patch Metadata) {
	if b.IsStreaming {
		if b.streamContent.Len() > 0 {
			b.Content = b.streamContent.String()
		}
		b.streamContent.Reset()
		b.IsStreaming = false
	}
	b.Metadata.Merge(patch)
}

// Text returns the block content, streamed or final.
func (b *Block) Text() string {
	if b.IsStreaming && b.streamContent.Len() > 0 {
		return b.streamContent.String()
	}
	return b.Content
}

// IsEmpty returns true if the block has no content.
func (b *Block) IsEmpty() bool {
	return len(b.Content) == 0 && b.streamContent.Len() == 0
}

// Preview returns a truncated preview of the block content.
// Uses rune-based truncation to handle Unicode correctly.
func (b *Block) Preview(maxLen int) string {
	content := b.Text()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// Clone returns a deep copy with the streaming buffer flattened into Content.
// The copy is detached: mutating the original never changes the clone.
func (b *Block) Clone() *Block {
	return &Block{
		ID:              b.ID,
		Type:            b.Type,
		Timestamp:       b.Timestamp,
		Content:         b.Text(),
		IsStreaming:     b.IsStreaming,
		Metadata:        b.Metadata,
		EstimatedHeight: b.EstimatedHeight,
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateBlockID creates a unique block ID.
func generateBlockID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "blk_" + hex.EncodeToString(bytes)
}

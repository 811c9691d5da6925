// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"
)

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// ToolDefinition describes one tool the model may call during a turn.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// =============================================================================
// CONVERSATION CONTEXT
// =============================================================================

// Context holds a complete conversation: the ordered block sequence plus
// running token totals. Blocks stay in arrival order and are never reordered.
type Context struct {
	// Identity
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Configuration
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Tools        []ToolDefinition `json:"tools,omitempty"`

	// Blocks
	Blocks []*Block `json:"blocks"`

	// Running token totals, monotonically non-decreasing, updated only at
	// turn completion.
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NewContext creates a new empty conversation context with a generated ID.
func NewContext() *Context {
	now := time.Now()
	return &Context{
		ID:        generateContextID(),
		CreatedAt: now,
		UpdatedAt: now,
		Blocks:    make([]*Block, 0),
	}
}

// BlockByID returns the block with the given ID, or nil.
func (c *Context) BlockByID(id string) *Block {
	for _, b := range c.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// LastBlock returns the most recent block, or nil if empty.
func (c *Context) LastBlock() *Block {
	if len(c.Blocks) == 0 {
		return nil
	}
	return c.Blocks[len(c.Blocks)-1]
}

// BlockCount returns the number of blocks.
func (c *Context) BlockCount() int {
	return len(c.Blocks)
}

// IsEmpty returns true if there are no blocks.
func (c *Context) IsEmpty() bool {
	return len(c.Blocks) == 0
}

// Heights returns the per-block estimated heights in block order.
func (c *Context) Heights() []int {
	heights := make([]int, len(c.Blocks))
	for i, b := range c.Blocks {
		heights[i] = b.EstimatedHeight
	}
	return heights
}

// Clone creates a deep copy of the context. Streaming buffers are flattened
// so the copy never aliases live server state.
func (c *Context) Clone() *Context {
	clone := &Context{
		ID:           c.ID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		SystemPrompt: c.SystemPrompt,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
		Blocks:       make([]*Block, len(c.Blocks)),
	}
	if len(c.Tools) > 0 {
		clone.Tools = make([]ToolDefinition, len(c.Tools))
		copy(clone.Tools, c.Tools)
	}
	for i, b := range c.Blocks {
		clone.Blocks[i] = b.Clone()
	}
	return clone
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateContextID creates a unique conversation ID.
func generateContextID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "conv_" + hex.EncodeToString(bytes)
}

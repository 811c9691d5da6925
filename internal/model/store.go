// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"time"
)

// =============================================================================
// CONTEXT STORE
// =============================================================================

// Store owns the authoritative conversation context. All mutations arrive on
// the session adapter's event-delivery path, so there is exactly one writer;
// the lock exists for concurrent readers (HTTP snapshot, export).
//
// The store is an explicit instance passed by handle to collaborators; there
// is deliberately no package-level singleton.
type Store struct {
	mu  sync.RWMutex
	ctx *Context

	// byID indexes live blocks for O(1) delta routing.
	byID map[string]*Block
}

// NewStore creates a Store holding a fresh empty context.
func NewStore() *Store {
	return &Store{
		ctx:  NewContext(),
		byID: make(map[string]*Block),
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateBlock starts a streaming block with empty content and returns its ID.
func (s *Store) CreateBlock(t BlockType, meta Metadata) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := NewBlock(t, meta)
	s.ctx.Blocks = append(s.ctx.Blocks, b)
	s.byID[b.ID] = b
	s.ctx.UpdatedAt = time.Now()
	return b.ID
}

// AddCompleteBlock creates a fully-formed, non-streamed block in one call
// (user input, tool results, errors, system text) and returns its ID.
func (s *Store) AddCompleteBlock(t BlockType, content string, meta Metadata) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := NewCompleteBlock(t, content, meta)
	s.ctx.Blocks = append(s.ctx.Blocks, b)
	s.byID[b.ID] = b
	s.ctx.UpdatedAt = time.Now()
	return b.ID
}

// Append concatenates text onto a streaming block and recomputes its height.
// An unknown ID is a no-op, not an error: stale deltas are expected after a
// mid-turn clear.
func (s *Store) Append(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[id]
	if !ok {
		return
	}
	b.Append(text)
	s.ctx.UpdatedAt = time.Now()
}

// Finalize clears a block's streaming flag and merges the metadata patch.
// Idempotent; unknown IDs are a no-op.
func (s *Store) Finalize(id string, patch Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[id]
	if !ok {
		return
	}
	b.Finalize(patch)
	s.ctx.UpdatedAt = time.Now()
}

// UpdateTokenUsage adds to the running totals. Totals never decrease;
// negative deltas are ignored.
func (s *Store) UpdateTokenUsage(input, output int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input > 0 {
		s.ctx.InputTokens += input
	}
	if output > 0 {
		s.ctx.OutputTokens += output
	}
	s.ctx.UpdatedAt = time.Now()
}

// SetSystemPrompt sets the system prompt on the current context.
func (s *Store) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx.SystemPrompt = prompt
	s.ctx.UpdatedAt = time.Now()
}

// SetTools replaces the tool definitions on the current context.
func (s *Store) SetTools(tools []ToolDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx.Tools = make([]ToolDefinition, len(tools))
	copy(s.ctx.Tools, tools)
	s.ctx.UpdatedAt = time.Now()
}

// Clear replaces the context with a new empty one. The new context gets a
// fresh ID and timestamps, so deltas addressed at the old conversation fall
// into the unknown-ID no-op path.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = NewContext()
	s.byID = make(map[string]*Block)
}

// =============================================================================
// READS
// =============================================================================

// Snapshot returns an immutable deep copy of the current context, used for
// initial client sync and export.
func (s *Store) Snapshot() *Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx.Clone()
}

// ConversationID returns the ID of the current context.
func (s *Store) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx.ID
}

// TokenUsage returns the running input/output totals.
func (s *Store) TokenUsage() (input, output int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx.InputTokens, s.ctx.OutputTokens
}

// BlockText returns the current text of a block, and whether it exists.
func (s *Store) BlockText(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.byID[id]
	if !ok {
		return "", false
	}
	return b.Text(), true
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// mirror.go - the delta-folding replica of the server conversation.
package mirror

import (
	"sync"

	"github.com/jeranaias/convo-tui/internal/model"
	"github.com/jeranaias/convo-tui/internal/protocol"
)

// =============================================================================
// CONTEXT MIRROR
// =============================================================================

// Mirror owns an independent replica of the conversation. It is constructed
// solely from snapshot fetches and delta events, never from references into
// server memory. Deltas referencing unknown block IDs are silently dropped;
// they are expected after a conversation clear, not faults.
type Mirror struct {
	mu sync.RWMutex

	conversationID string
	blocks         []*model.Block
	byID           map[string]*model.Block

	inputTokens  int
	outputTokens int

	// turnActive is set while a turn is streaming and cleared by the
	// terminal lifecycle event or a fault.
	turnActive bool

	// lastFault holds the most recent fault message for display.
	lastFault string
}

// New creates an empty mirror.
func New() *Mirror {
	return &Mirror{byID: make(map[string]*model.Block)}
}

// =============================================================================
// SNAPSHOT SYNC
// =============================================================================

// LoadSnapshot replaces the replica wholesale with a fetched snapshot.
// Heights are recomputed locally with the shared heuristic so the mirror
// never depends on server-computed values.
func (m *Mirror) LoadSnapshot(ctx *model.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversationID = ctx.ID
	m.blocks = make([]*model.Block, 0, len(ctx.Blocks))
	m.byID = make(map[string]*model.Block, len(ctx.Blocks))
	for _, b := range ctx.Blocks {
		replica := b.Clone()
		replica.EstimatedHeight = model.EstimateHeight(replica.Text())
		m.blocks = append(m.blocks, replica)
		m.byID[replica.ID] = replica
	}
	m.inputTokens = ctx.InputTokens
	m.outputTokens = ctx.OutputTokens
}

// Reset drops the replica (conversation cleared).
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversationID = ""
	m.blocks = nil
	m.byID = make(map[string]*model.Block)
	m.inputTokens = 0
	m.outputTokens = 0
	m.turnActive = false
	m.lastFault = ""
}

// =============================================================================
// DELTA APPLICATION
// =============================================================================

// Apply folds one delta event into the replica. It returns the ID of the
// block it touched, or "" for lifecycle/usage/keep-alive events and dropped
// unknown-ID references.
func (m *Mirror) Apply(d protocol.Delta) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch d.Type {
	case protocol.EventBlockStarted:
		if _, exists := m.byID[d.BlockID]; exists {
			// Duplicate start: drop, the original stays authoritative.
			return ""
		}
		b := model.NewBlock(model.BlockType(d.BlockType), model.Metadata{
			ToolName: d.ToolName,
			ToolID:   d.ToolID,
		})
		// The replica reuses the server-assigned ID so later deltas route.
		b.ID = d.BlockID
		m.blocks = append(m.blocks, b)
		m.byID[b.ID] = b
		m.turnActive = true
		return b.ID

	case protocol.EventBlockAppended:
		b, ok := m.byID[d.BlockID]
		if !ok {
			return ""
		}
		b.Append(d.Text)
		b.EstimatedHeight = model.EstimateHeight(b.Text())
		return b.ID

	case protocol.EventBlockFinalized:
		b, ok := m.byID[d.BlockID]
		if !ok {
			return ""
		}
		b.Finalize(model.Metadata{})
		return b.ID

	case protocol.EventUsageUpdated:
		m.applyUsage(d.InputTokens, d.OutputTokens)
		return ""

	case protocol.EventLifecycleStop:
		m.applyUsage(d.InputTokens, d.OutputTokens)
		m.turnActive = false
		return ""

	case protocol.EventFault:
		m.lastFault = d.Message
		m.turnActive = false
		return ""

	default:
		// keep-alive and unknown future events carry no state.
		return ""
	}
}

// applyUsage adopts new running totals without ever decreasing them.
func (m *Mirror) applyUsage(input, output int) {
	if input > m.inputTokens {
		m.inputTokens = input
	}
	if output > m.outputTokens {
		m.outputTokens = output
	}
}

// =============================================================================
// READS
// =============================================================================

// ConversationID returns the replica's conversation ID.
func (m *Mirror) ConversationID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversationID
}

// Blocks returns the replica's blocks in arrival order. The slice is a copy;
// the blocks themselves are owned by the mirror and must be treated as
// read-only by the renderer.
func (m *Mirror) Blocks() []*model.Block {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Block, len(m.blocks))
	copy(out, m.blocks)
	return out
}

// BlockCount returns the number of replica blocks.
func (m *Mirror) BlockCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// BlockText returns the current text of one block.
func (m *Mirror) BlockText(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.byID[id]
	if !ok {
		return "", false
	}
	return b.Text(), true
}

// Heights returns the per-block estimated heights in block order.
func (m *Mirror) Heights() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	heights := make([]int, len(m.blocks))
	for i, b := range m.blocks {
		heights[i] = b.EstimatedHeight
	}
	return heights
}

// Usage returns the replica's running token totals.
func (m *Mirror) Usage() (input, output int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputTokens, m.outputTokens
}

// TurnActive reports whether a turn is currently streaming.
func (m *Mirror) TurnActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.turnActive
}

// LastFault returns the most recent fault message, if any.
func (m *Mirror) LastFault() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFault
}

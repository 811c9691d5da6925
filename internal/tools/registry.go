// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jeranaias/convo-tui/internal/model"
)

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// Handler executes one tool call against the executor's workspace.
type Handler func(ctx context.Context, e *Executor, input json.RawMessage) (string, error)

// Tool is one registered tool: its schema as advertised to the model, and
// the handler that backs it.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the available tools in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates a registry with the built-in tools registered.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]*Tool)}
	r.Register(readTool)
	r.Register(writeTool)
	r.Register(editTool)
	r.Register(bashTool)
	r.Register(globTool)
	r.Register(grepTool)
	return r
}

// Register adds (or replaces) a tool.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = tool
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns the tool schemas in registration order, in the shape
// the conversation store and the model request expect.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return defs
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// EXECUTION RECORD
// =============================================================================

// Record is one audited tool execution.
type Record struct {
	ToolName  string
	Timestamp time.Time
	Duration  time.Duration
	Success   bool
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Default executor limits.
const (
	DefaultMaxOutput = 30000
	DefaultTimeout   = 2 * time.Minute
)

// Executor runs tool calls against a workspace root. It satisfies the
// adapter's ToolRunner interface; calls within a turn arrive sequentially.
type Executor struct {
	registry  *Registry
	workDir   string
	maxOutput int
	timeout   time.Duration

	mu      sync.Mutex
	history []Record
}

// NewExecutor creates an executor rooted at workDir.
func NewExecutor(registry *Registry, workDir string) *Executor {
	return &Executor{
		registry:  registry,
		workDir:   workDir,
		maxOutput: DefaultMaxOutput,
		timeout:   DefaultTimeout,
	}
}

// WorkDir returns the workspace root all paths are validated against.
func (e *Executor) WorkDir() string {
	return e.workDir
}

// SetTimeout overrides the per-call timeout.
func (e *Executor) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// Run executes one tool call and returns its output. Unknown tools and
// handler failures come back as errors; the caller turns them into error
// tool results for the model.
func (e *Executor) Run(ctx context.Context, name string, input json.RawMessage) (string, error) {
	tool := e.registry.Get(name)
	if tool == nil {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	output, err := tool.Handler(callCtx, e, input)
	e.record(name, start, err == nil)
	if err != nil {
		return "", err
	}
	return e.truncate(output), nil
}

// History returns a copy of the audit log.
func (e *Executor) History() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Record, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Executor) record(name string, start time.Time, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, Record{
		ToolName:  name,
		Timestamp: start,
		Duration:  time.Since(start),
		Success:   success,
	})
}

// truncate caps output at maxOutput bytes on a rune boundary.
func (e *Executor) truncate(s string) string {
	if len(s) <= e.maxOutput {
		return s
	}
	runes := []rune(s)
	for len(string(runes)) > e.maxOutput {
		runes = runes[:len(runes)*9/10]
	}
	return string(runes) + "\n[output truncated]"
}

// decodeInput unmarshals a tool input payload with a consistent error shape.
func decodeInput(input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid tool input: %w", err)
	}
	return nil
}

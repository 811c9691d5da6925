// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"sync"
	"time"
)

// =============================================================================
// QUERY DEBOUNCER
// =============================================================================

// DefaultQueryDelay is how long user input must be quiet before a query is
// dispatched to the worker.
const DefaultQueryDelay = 150 * time.Millisecond

// DefaultIndexDelay is the coalescing window for per-block index requests
// under rapid streaming.
const DefaultIndexDelay = 250 * time.Millisecond

// Debouncer delays a callback until input has been quiet for the configured
// window; rapid re-triggers reset the timer and only the last value wins.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func(value string)
}

// NewDebouncer creates a debouncer calling fn with the last triggered value.
func NewDebouncer(delay time.Duration, fn func(value string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultQueryDelay
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules fn(value), replacing any pending schedule.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fn(value)
	})
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// =============================================================================
// INDEX COALESCER
// =============================================================================

// Coalescer batches per-block index requests so the worker sees one message
// per block per flush window instead of one per streamed delta. This bounds
// message volume under rapid streaming.
type Coalescer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]string
	timer   *time.Timer
	worker  *Worker
}

// NewCoalescer creates a coalescer flushing into the given worker.
func NewCoalescer(delay time.Duration, worker *Worker) *Coalescer {
	if delay <= 0 {
		delay = DefaultIndexDelay
	}
	return &Coalescer{
		delay:   delay,
		pending: make(map[string]string),
		worker:  worker,
	}
}

// Add records the latest text for a block. Multiple Adds for the same block
// inside one window collapse to a single IndexBlock call with the newest
// text, which is safe because IndexBlock replaces prior postings wholesale.
func (c *Coalescer) Add(blockID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[blockID] = content
	if c.timer == nil {
		c.timer = time.AfterFunc(c.delay, c.flush)
	}
}

// Flush forces out everything pending immediately.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.flush()
}

// flush drains the pending map and dispatches index requests. Worker errors
// are dropped here: the worker respawns itself and a later append re-indexes
// the block.
func (c *Coalescer) flush() {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[string]string)
	c.timer = nil
	c.mu.Unlock()

	for blockID, content := range batch {
		_ = c.worker.IndexBlock(blockID, content)
	}
}

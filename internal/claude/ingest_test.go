// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/convo-tui/internal/model"
	"github.com/jeranaias/convo-tui/internal/protocol"
)

// =============================================================================
// FAKES
// =============================================================================

// fakeSession replays scripted event rounds. Each Send round consumes the
// next script; an optional per-round error is returned after its events.
type fakeSession struct {
	mu     sync.Mutex
	rounds [][]Event
	errs   []error
	calls  []Request
	gate   chan struct{} // when set, Stream blocks until closed
}

func (f *fakeSession) Stream(ctx context.Context, req Request, fn func(Event) error) error {
	f.mu.Lock()
	round := len(f.calls)
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if round >= len(f.rounds) {
		return fmt.Errorf("unscripted round %d", round)
	}
	for _, ev := range f.rounds[round] {
		if err := fn(ev); err != nil {
			return err
		}
	}
	if round < len(f.errs) && f.errs[round] != nil {
		return f.errs[round]
	}
	return nil
}

func (f *fakeSession) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeRunner resolves tool calls from a fixed table.
type fakeRunner struct {
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, input json.RawMessage) (string, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return "", err
	}
	return f.results[name], nil
}

// collector gathers emitted deltas in order.
type collector struct {
	mu     sync.Mutex
	deltas []protocol.Delta
}

func (c *collector) emit(d protocol.Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deltas = append(c.deltas, d)
}

func (c *collector) ofType(t protocol.EventType) []protocol.Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Delta
	for _, d := range c.deltas {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

// =============================================================================
// EVENT SCRIPT HELPERS
// =============================================================================

func evMessageStart(id string, inputTokens int) Event {
	return Event{Type: EventMessageStart, Message: &MessageInfo{ID: id, Usage: &Usage{InputTokens: inputTokens}}}
}

func evBlockStart(index int, kind, toolID, toolName string) Event {
	return Event{Type: EventContentBlockStart, Index: index, ContentBlock: &ContentStart{Type: kind, ID: toolID, Name: toolName}}
}

func evTextDelta(index int, text string) Event {
	return Event{Type: EventContentBlockDelta, Index: index, Delta: &ContentDelta{Type: "text_delta", Text: text}}
}

func evJSONDelta(index int, partial string) Event {
	return Event{Type: EventContentBlockDelta, Index: index, Delta: &ContentDelta{Type: "input_json_delta", PartialJSON: partial}}
}

func evBlockStop(index int) Event {
	return Event{Type: EventContentBlockStop, Index: index}
}

func evMessageDelta(stopReason string, outputTokens int) Event {
	return Event{Type: EventMessageDelta, Delta: &ContentDelta{StopReason: stopReason}, Usage: &Usage{OutputTokens: outputTokens}}
}

func evMessageStop() Event {
	return Event{Type: EventMessageStop}
}

// =============================================================================
// SINGLE TURN
// =============================================================================

func TestSendSingleTextTurn(t *testing.T) {
	session := &fakeSession{rounds: [][]Event{{
		evMessageStart("msg_1", 10),
		evBlockStart(0, ContentText, "", ""),
		evTextDelta(0, "Hel"),
		evTextDelta(0, "lo"),
		evBlockStop(0),
		evMessageDelta(StopEndTurn, 5),
		evMessageStop(),
	}}}

	store := model.NewStore()
	adapter := NewAdapter(session, store, nil, "test-model", 1024)
	col := &collector{}

	if err := adapter.Send(context.Background(), "hi there", col.emit); err != nil {
		t.Fatalf("Send: %v", err)
	}

	snap := store.Snapshot()
	if len(snap.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(snap.Blocks))
	}
	if snap.Blocks[0].Type != model.BlockUser || snap.Blocks[0].Text() != "hi there" {
		t.Errorf("user block wrong: %q", snap.Blocks[0].Text())
	}
	if snap.Blocks[1].Type != model.BlockText || snap.Blocks[1].Text() != "Hello" {
		t.Errorf("text block wrong: %q", snap.Blocks[1].Text())
	}
	if snap.Blocks[1].IsStreaming {
		t.Error("text block should be finalized")
	}

	in, out := store.TokenUsage()
	if in != 10 || out != 5 {
		t.Errorf("usage = (%d, %d), want (10, 5)", in, out)
	}

	stops := col.ofType(protocol.EventLifecycleStop)
	if len(stops) != 1 {
		t.Fatalf("expected exactly 1 lifecycle stop, got %d", len(stops))
	}
	if stops[0].StopReason != StopEndTurn || stops[0].MessageID != "msg_1" {
		t.Errorf("stop delta wrong: %+v", stops[0])
	}
	if stops[0].InputTokens != 10 || stops[0].OutputTokens != 5 {
		t.Errorf("stop usage wrong: %+v", stops[0])
	}

	// The terminal stop must come last.
	col.mu.Lock()
	last := col.deltas[len(col.deltas)-1]
	col.mu.Unlock()
	if last.Type != protocol.EventLifecycleStop {
		t.Errorf("last delta = %s, want lifecycle stop", last.Type)
	}
}

func TestSendEmitsOrderedBlockLifecycle(t *testing.T) {
	session := &fakeSession{rounds: [][]Event{{
		evMessageStart("msg_1", 1),
		evBlockStart(0, ContentText, "", ""),
		evTextDelta(0, "a"),
		evBlockStop(0),
		evMessageDelta(StopEndTurn, 1),
		evMessageStop(),
	}}}

	store := model.NewStore()
	adapter := NewAdapter(session, store, nil, "test-model", 1024)
	col := &collector{}
	if err := adapter.Send(context.Background(), "q", col.emit); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// For every block ID, started must precede appended must precede
	// finalized.
	seen := map[string]int{} // id -> stage: 1 started, 2 appended, 3 finalized
	for _, d := range col.deltas {
		switch d.Type {
		case protocol.EventBlockStarted:
			if seen[d.BlockID] != 0 {
				t.Fatalf("duplicate start for %s", d.BlockID)
			}
			seen[d.BlockID] = 1
		case protocol.EventBlockAppended:
			if seen[d.BlockID] < 1 || seen[d.BlockID] > 2 {
				t.Fatalf("append out of order for %s", d.BlockID)
			}
			seen[d.BlockID] = 2
		case protocol.EventBlockFinalized:
			if seen[d.BlockID] < 1 {
				t.Fatalf("finalize before start for %s", d.BlockID)
			}
			seen[d.BlockID] = 3
		}
	}
}

// =============================================================================
// TOOL CONTINUATION
// =============================================================================

func TestSendToolLoopSingleLifecycleStop(t *testing.T) {
	session := &fakeSession{rounds: [][]Event{
		{
			evMessageStart("msg_1", 20),
			evBlockStart(0, ContentToolUse, "toolu_1", "read_file"),
			evJSONDelta(0, `{"path":`),
			evJSONDelta(0, `"a.txt"}`),
			evBlockStop(0),
			evMessageDelta(StopToolUse, 8),
			evMessageStop(),
		},
		{
			evMessageStart("msg_2", 30),
			evBlockStart(0, ContentText, "", ""),
			evTextDelta(0, "file contents summarized"),
			evBlockStop(0),
			evMessageDelta(StopEndTurn, 12),
			evMessageStop(),
		},
	}}
	runner := &fakeRunner{results: map[string]string{"read_file": "line one\nline two"}}

	store := model.NewStore()
	adapter := NewAdapter(session, store, runner, "test-model", 1024)
	col := &collector{}

	if err := adapter.Send(context.Background(), "read a.txt", col.emit); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if session.callCount() != 2 {
		t.Fatalf("expected 2 stream rounds, got %d", session.callCount())
	}
	if len(runner.calls) != 1 || runner.calls[0] != "read_file" {
		t.Fatalf("runner calls = %v", runner.calls)
	}

	stops := col.ofType(protocol.EventLifecycleStop)
	if len(stops) != 1 {
		t.Fatalf("expected exactly 1 lifecycle stop across tool rounds, got %d", len(stops))
	}
	if stops[0].StopReason != StopEndTurn {
		t.Errorf("stop reason = %q, want end_turn", stops[0].StopReason)
	}

	// Continuation request replays the tool_use and tool_result parts.
	second := session.calls[1]
	if len(second.Messages) < 3 {
		t.Fatalf("continuation has %d messages, want >= 3", len(second.Messages))
	}
	tail := second.Messages[len(second.Messages)-1]
	if tail.Role != "user" || len(tail.Content) != 1 || tail.Content[0].Type != "tool_result" {
		t.Fatalf("continuation tail wrong: %+v", tail)
	}
	if tail.Content[0].ToolUseID != "toolu_1" || tail.Content[0].Content != "line one\nline two" {
		t.Errorf("tool result part wrong: %+v", tail.Content[0])
	}

	// Store holds user, tool_use, tool_result and text blocks in order.
	snap := store.Snapshot()
	types := make([]model.BlockType, len(snap.Blocks))
	for i, b := range snap.Blocks {
		types[i] = b.Type
	}
	want := []model.BlockType{model.BlockUser, model.BlockToolUse, model.BlockToolResult, model.BlockText}
	if len(types) != len(want) {
		t.Fatalf("block types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("block types = %v, want %v", types, want)
		}
	}
	if snap.Blocks[1].Text() != `{"path":"a.txt"}` {
		t.Errorf("tool_use input = %q", snap.Blocks[1].Text())
	}

	in, out := store.TokenUsage()
	if in != 50 || out != 20 {
		t.Errorf("usage = (%d, %d), want (50, 20)", in, out)
	}
}

func TestSendToolFailureBecomesErrorResult(t *testing.T) {
	session := &fakeSession{rounds: [][]Event{
		{
			evMessageStart("msg_1", 5),
			evBlockStart(0, ContentToolUse, "toolu_1", "bash"),
			evJSONDelta(0, `{"command":"false"}`),
			evBlockStop(0),
			evMessageDelta(StopToolUse, 3),
			evMessageStop(),
		},
		{
			evMessageStart("msg_2", 7),
			evBlockStart(0, ContentText, "", ""),
			evTextDelta(0, "that failed"),
			evBlockStop(0),
			evMessageDelta(StopEndTurn, 2),
			evMessageStop(),
		},
	}}
	runner := &fakeRunner{errs: map[string]error{"bash": errors.New("exit status 1")}}

	store := model.NewStore()
	adapter := NewAdapter(session, store, runner, "test-model", 1024)
	col := &collector{}

	if err := adapter.Send(context.Background(), "run it", col.emit); err != nil {
		t.Fatalf("tool failure must not fail the turn: %v", err)
	}

	second := session.calls[1]
	tail := second.Messages[len(second.Messages)-1]
	if !tail.Content[0].IsError {
		t.Error("tool_result should be marked is_error")
	}

	snap := store.Snapshot()
	var result *model.Block
	for _, b := range snap.Blocks {
		if b.Type == model.BlockToolResult {
			result = b
		}
	}
	if result == nil {
		t.Fatal("no tool_result block")
	}
	if result.Metadata.IsSuccess {
		t.Error("tool_result metadata should record failure")
	}
}

// =============================================================================
// FAILURE PATHS
// =============================================================================

func TestSendTransportErrorEmitsFaultAndStop(t *testing.T) {
	session := &fakeSession{
		rounds: [][]Event{{
			evMessageStart("msg_1", 4),
			evBlockStart(0, ContentText, "", ""),
			evTextDelta(0, "partial answ"),
		}},
		errs: []error{&TransportError{Op: "read", Cause: errors.New("connection reset")}},
	}

	store := model.NewStore()
	adapter := NewAdapter(session, store, nil, "test-model", 1024)
	col := &collector{}

	err := adapter.Send(context.Background(), "q", col.emit)
	if err == nil {
		t.Fatal("expected transport error")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error type = %T", err)
	}

	// Partial content stays; an error block is appended; no rollback.
	snap := store.Snapshot()
	if got := snap.Blocks[1].Text(); got != "partial answ" {
		t.Errorf("partial content = %q, want kept", got)
	}
	last := snap.Blocks[len(snap.Blocks)-1]
	if last.Type != model.BlockError {
		t.Errorf("last block = %s, want error", last.Type)
	}

	faults := col.ofType(protocol.EventFault)
	if len(faults) != 1 || faults[0].Code != "transport" {
		t.Fatalf("faults = %+v", faults)
	}
	stops := col.ofType(protocol.EventLifecycleStop)
	if len(stops) != 1 {
		t.Fatalf("expected unconditional terminal stop, got %d", len(stops))
	}
}

func TestSendAPIErrorEventFailsTurn(t *testing.T) {
	session := &fakeSession{rounds: [][]Event{{
		evMessageStart("msg_1", 2),
		{Type: EventError, Error: &APIError{Type: "overloaded_error", Message: "try again"}},
	}}}

	store := model.NewStore()
	adapter := NewAdapter(session, store, nil, "test-model", 1024)
	col := &collector{}

	if err := adapter.Send(context.Background(), "q", col.emit); err == nil {
		t.Fatal("expected error")
	}
	if stops := col.ofType(protocol.EventLifecycleStop); len(stops) != 1 {
		t.Fatalf("expected 1 terminal stop, got %d", len(stops))
	}
}

func TestSendRejectsConcurrentTurn(t *testing.T) {
	gate := make(chan struct{})
	session := &fakeSession{
		gate: gate,
		rounds: [][]Event{{
			evMessageStart("msg_1", 1),
			evMessageDelta(StopEndTurn, 1),
			evMessageStop(),
		}},
	}

	store := model.NewStore()
	adapter := NewAdapter(session, store, nil, "test-model", 1024)
	col := &collector{}

	done := make(chan error, 1)
	go func() {
		done <- adapter.Send(context.Background(), "first", col.emit)
	}()

	// Wait for the first turn to reach the stream.
	for session.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := adapter.Send(context.Background(), "second", col.emit); !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("concurrent send error = %v, want ErrTurnInFlight", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}

	// The rejected send must not have touched the store.
	snap := store.Snapshot()
	for _, b := range snap.Blocks {
		if b.Text() == "second" {
			t.Error("rejected send leaked a user block")
		}
	}
}

func TestSendDropsUnknownIndexDeltas(t *testing.T) {
	session := &fakeSession{rounds: [][]Event{{
		evMessageStart("msg_1", 1),
		evBlockStart(0, ContentText, "", ""),
		evTextDelta(0, "ok"),
		evTextDelta(7, "ghost"), // never started
		evBlockStop(0),
		evBlockStop(9), // never started
		evMessageDelta(StopEndTurn, 1),
		evMessageStop(),
	}}}

	store := model.NewStore()
	adapter := NewAdapter(session, store, nil, "test-model", 1024)
	col := &collector{}

	if err := adapter.Send(context.Background(), "q", col.emit); err != nil {
		t.Fatalf("Send: %v", err)
	}
	snap := store.Snapshot()
	if len(snap.Blocks) != 2 {
		t.Fatalf("ghost index created a block: %d blocks", len(snap.Blocks))
	}
	if snap.Blocks[1].Text() != "ok" {
		t.Errorf("text = %q, want %q", snap.Blocks[1].Text(), "ok")
	}
}

func TestSendWithoutRunnerStopsOnToolUse(t *testing.T) {
	session := &fakeSession{rounds: [][]Event{{
		evMessageStart("msg_1", 2),
		evBlockStart(0, ContentToolUse, "toolu_1", "read_file"),
		evJSONDelta(0, `{}`),
		evBlockStop(0),
		evMessageDelta(StopToolUse, 3),
		evMessageStop(),
	}}}

	store := model.NewStore()
	adapter := NewAdapter(session, store, nil, "test-model", 1024)
	col := &collector{}

	if err := adapter.Send(context.Background(), "q", col.emit); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if session.callCount() != 1 {
		t.Errorf("no runner configured, expected a single round, got %d", session.callCount())
	}
	stops := col.ofType(protocol.EventLifecycleStop)
	if len(stops) != 1 || stops[0].StopReason != StopToolUse {
		t.Fatalf("stops = %+v", stops)
	}
}

// funcSession lets a test drive arbitrary store state between events.
type funcSession func(ctx context.Context, req Request, fn func(Event) error) error

func (f funcSession) Stream(ctx context.Context, req Request, fn func(Event) error) error {
	return f(ctx, req, fn)
}

func TestSendClearMidTurnLeavesNewContextEmpty(t *testing.T) {
	store := model.NewStore()

	session := funcSession(func(ctx context.Context, req Request, fn func(Event) error) error {
		events := []Event{evMessageStart("msg_1", 10)}
		for _, ev := range events {
			if err := fn(ev); err != nil {
				return err
			}
		}

		// Conversation cleared while the stream is still running.
		store.Clear()

		tail := []Event{
			evBlockStart(0, ContentText, "", ""),
			evTextDelta(0, "stale"),
			evBlockStop(0),
			evMessageDelta(StopEndTurn, 5),
			evMessageStop(),
		}
		for _, ev := range tail {
			if err := fn(ev); err != nil {
				return err
			}
		}
		return nil
	})

	adapter := NewAdapter(session, store, nil, "test-model", 1024)
	col := &collector{}

	if err := adapter.Send(context.Background(), "hi", col.emit); err != nil {
		t.Fatalf("Send: %v", err)
	}

	snap := store.Snapshot()
	if len(snap.Blocks) != 0 {
		t.Fatalf("post-clear context should be empty, got %d blocks (first: type=%s content=%q)",
			len(snap.Blocks), snap.Blocks[0].Type, snap.Blocks[0].Text())
	}
	in, out := store.TokenUsage()
	if in != 0 || out != 0 {
		t.Errorf("post-clear usage = %d/%d, want 0/0", in, out)
	}
	stops := col.ofType(protocol.EventLifecycleStop)
	if len(stops) != 1 {
		t.Fatalf("expected exactly one terminal stop, got %d", len(stops))
	}
}

func TestSendClearMidTurnSkipsToolRounds(t *testing.T) {
	store := model.NewStore()
	runner := &fakeRunner{results: map[string]string{"read_file": "data"}}

	session := funcSession(func(ctx context.Context, req Request, fn func(Event) error) error {
		if err := fn(evMessageStart("msg_1", 4)); err != nil {
			return err
		}
		store.Clear()
		for _, ev := range []Event{
			evBlockStart(0, ContentToolUse, "toolu_1", "read_file"),
			evJSONDelta(0, `{"path":"x"}`),
			evBlockStop(0),
			evMessageDelta(StopToolUse, 3),
			evMessageStop(),
		} {
			if err := fn(ev); err != nil {
				return err
			}
		}
		return nil
	})

	adapter := NewAdapter(session, store, runner, "test-model", 1024)
	col := &collector{}

	if err := adapter.Send(context.Background(), "q", col.emit); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("tools ran against a cleared conversation: %v", runner.calls)
	}
	if n := store.Snapshot().BlockCount(); n != 0 {
		t.Errorf("post-clear context has %d blocks", n)
	}
	if stops := col.ofType(protocol.EventLifecycleStop); len(stops) != 1 {
		t.Fatalf("expected exactly one terminal stop, got %d", len(stops))
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jeranaias/convo-tui/internal/model"
	"github.com/jeranaias/convo-tui/internal/protocol"
)

// =============================================================================
// SESSION AND TOOL INTERFACES
// =============================================================================

// Session is a streaming model endpoint. Client implements it; tests use a
// scripted fake.
type Session interface {
	Stream(ctx context.Context, req Request, fn func(Event) error) error
}

// ToolRunner executes one tool call and returns its textual result.
type ToolRunner interface {
	Run(ctx context.Context, name string, input json.RawMessage) (string, error)
}

// EmitFunc receives every delta the adapter produces, in order, on the
// adapter's goroutine.
type EmitFunc func(protocol.Delta)

// maxToolRounds bounds the tool continuation loop per logical turn.
const maxToolRounds = 25

// =============================================================================
// ADAPTER
// =============================================================================

// Adapter drives the conversation store from a model event stream. It owns
// the per-turn state: the remote-index to block-ID map, the pending tool
// queue and the continuation loop. One logical turn spans every tool round
// and ends with exactly one lifecycle stop delta, success or failure.
type Adapter struct {
	session   Session
	store     *model.Store
	tools     ToolRunner
	model     string
	maxTokens int

	mu       sync.Mutex
	inFlight bool
}

// NewAdapter creates an adapter bound to a session and store. tools may be
// nil, in which case tool_use stops terminate the turn like end_turn.
func NewAdapter(session Session, store *model.Store, tools ToolRunner, modelName string, maxTokens int) *Adapter {
	return &Adapter{
		session:   session,
		store:     store,
		tools:     tools,
		model:     modelName,
		maxTokens: maxTokens,
	}
}

// Busy reports whether a turn is currently in flight.
func (a *Adapter) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// Send runs one logical turn: the user message, the streamed response and
// any tool continuation rounds. A second Send while one is in flight fails
// with ErrTurnInFlight without touching the store.
func (a *Adapter) Send(ctx context.Context, userText string, emit EmitFunc) error {
	a.mu.Lock()
	if a.inFlight {
		a.mu.Unlock()
		return ErrTurnInFlight
	}
	a.inFlight = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.inFlight = false
		a.mu.Unlock()
	}()

	// The turn is bound to the conversation it started on. If the context
	// is cleared while the stream is in flight, every later event is
	// dropped so no stale block lands in the fresh context.
	convID := a.store.ConversationID()

	userID := a.store.AddCompleteBlock(model.BlockUser, userText, model.Metadata{})
	a.emitComplete(emit, userID, model.BlockUser, userText, model.Metadata{})

	snapshot := a.store.Snapshot()
	messages := buildMessages(snapshot)
	toolsJSON := marshalTools(snapshot.Tools)

	var (
		messageID  string
		stopReason string
	)

	for round := 0; ; round++ {
		turn := newTurnState(convID)
		req := Request{
			Model:     a.model,
			MaxTokens: a.maxTokens,
			System:    snapshot.SystemPrompt,
			Messages:  messages,
			Tools:     toolsJSON,
		}

		err := a.session.Stream(ctx, req, func(ev Event) error {
			return a.handleEvent(turn, ev, emit)
		})
		if err != nil {
			a.failTurn(emit, err, convID)
			return err
		}

		if turn.messageID != "" {
			messageID = turn.messageID
		}
		stopReason = turn.stopReason

		if a.store.ConversationID() != convID {
			// Cleared mid-turn: no tool continuation against the new
			// context, just the terminal stop.
			break
		}
		if stopReason != StopToolUse || a.tools == nil || len(turn.pendingTools) == 0 {
			break
		}
		if round+1 >= maxToolRounds {
			err := fmt.Errorf("tool continuation exceeded %d rounds", maxToolRounds)
			a.failTurn(emit, err, convID)
			return err
		}

		messages = append(messages, Message{Role: "assistant", Content: a.assistantParts(turn)})
		messages = append(messages, Message{Role: "user", Content: a.runTools(ctx, turn.pendingTools, emit)})
	}

	in, out := a.store.TokenUsage()
	emit(protocol.LifecycleStop(messageID, stopReason, in, out))
	return nil
}

// =============================================================================
// EVENT HANDLING
// =============================================================================

// pendingTool is one tool_use sub-block awaiting execution after the
// current stream round ends.
type pendingTool struct {
	id      string // remote tool_use ID
	name    string
	blockID string
	input   strings.Builder
}

// turnBlock records one sub-block's position in the streamed response, in
// remote index order, for replaying the assistant message to the API.
type turnBlock struct {
	kind    string
	blockID string
	tool    *pendingTool
}

// turnState is the state of a single streaming round. It is rebuilt for
// every tool continuation: remote indices are only stable within one round.
type turnState struct {
	conversationID string
	messageID      string
	stopReason     string
	indexMap       map[int]string
	blocks         []turnBlock
	pendingTools   []*pendingTool
	lastOutput     int
}

func newTurnState(conversationID string) *turnState {
	return &turnState{conversationID: conversationID, indexMap: make(map[int]string)}
}

// stale reports whether the store was cleared out from under this turn.
func (a *Adapter) stale(turn *turnState) bool {
	return a.store.ConversationID() != turn.conversationID
}

// handleEvent applies one stream event to the store and emits the matching
// deltas. Events for unknown remote indices are dropped, as are all
// store-touching events once the conversation has been cleared mid-turn.
func (a *Adapter) handleEvent(turn *turnState, ev Event, emit EmitFunc) error {
	switch ev.Type {
	case EventMessageStart:
		if ev.Message == nil {
			return nil
		}
		turn.messageID = ev.Message.ID
		if a.stale(turn) {
			return nil
		}
		if ev.Message.Usage != nil && ev.Message.Usage.InputTokens > 0 {
			a.store.UpdateTokenUsage(ev.Message.Usage.InputTokens, 0)
			in, out := a.store.TokenUsage()
			emit(protocol.UsageUpdated(in, out))
		}

	case EventContentBlockStart:
		if ev.ContentBlock == nil || a.stale(turn) {
			return nil
		}
		blockType, meta := startInfo(ev.ContentBlock)
		id := a.store.CreateBlock(blockType, meta)
		turn.indexMap[ev.Index] = id

		tb := turnBlock{kind: ev.ContentBlock.Type, blockID: id}
		if ev.ContentBlock.Type == ContentToolUse {
			pt := &pendingTool{id: ev.ContentBlock.ID, name: ev.ContentBlock.Name, blockID: id}
			tb.tool = pt
			turn.pendingTools = append(turn.pendingTools, pt)
		}
		turn.blocks = append(turn.blocks, tb)
		emit(protocol.BlockStarted(id, blockType.String(), meta.ToolName, meta.ToolID))

		if ev.ContentBlock.Text != "" {
			a.store.Append(id, ev.ContentBlock.Text)
			emit(protocol.BlockAppended(id, ev.ContentBlock.Text))
		}

	case EventContentBlockDelta:
		if ev.Delta == nil || a.stale(turn) {
			return nil
		}
		id, ok := turn.indexMap[ev.Index]
		if !ok {
			return nil
		}
		text := ev.Delta.Content()
		if text == "" {
			return nil
		}
		a.store.Append(id, text)
		emit(protocol.BlockAppended(id, text))
		if ev.Delta.Type == "input_json_delta" {
			if pt := turn.toolForBlock(id); pt != nil {
				pt.input.WriteString(text)
			}
		}

	case EventContentBlockStop:
		if a.stale(turn) {
			return nil
		}
		id, ok := turn.indexMap[ev.Index]
		if !ok {
			return nil
		}
		a.store.Finalize(id, model.Metadata{})
		emit(protocol.BlockFinalized(id))

	case EventMessageDelta:
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			turn.stopReason = ev.Delta.StopReason
		}
		if a.stale(turn) {
			return nil
		}
		if ev.Usage != nil && ev.Usage.OutputTokens > turn.lastOutput {
			a.store.UpdateTokenUsage(0, ev.Usage.OutputTokens-turn.lastOutput)
			turn.lastOutput = ev.Usage.OutputTokens
			in, out := a.store.TokenUsage()
			emit(protocol.UsageUpdated(in, out))
		}

	case EventMessageStop, EventPing:
		// message_stop ends the round in the stream reader; ping carries
		// nothing.

	case EventError:
		if ev.Error == nil {
			return &TransportError{Op: "stream", Cause: fmt.Errorf("malformed error event")}
		}
		return &TransportError{Op: "stream", Cause: fmt.Errorf("%s: %s", ev.Error.Type, ev.Error.Message)}
	}
	return nil
}

// toolForBlock finds the pending tool backing a block ID, if any.
func (t *turnState) toolForBlock(blockID string) *pendingTool {
	for _, pt := range t.pendingTools {
		if pt.blockID == blockID {
			return pt
		}
	}
	return nil
}

// assistantParts rebuilds the assistant message from this round's blocks,
// in remote index order, for the continuation request. Thinking blocks are
// not replayed.
func (a *Adapter) assistantParts(turn *turnState) []ContentPart {
	var parts []ContentPart
	for _, tb := range turn.blocks {
		switch tb.kind {
		case ContentText:
			text, _ := a.store.BlockText(tb.blockID)
			parts = append(parts, TextPart(text))
		case ContentToolUse:
			input := json.RawMessage(tb.tool.input.String())
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			parts = append(parts, ToolUsePart(tb.tool.id, tb.tool.name, input))
		}
	}
	return parts
}

// =============================================================================
// TOOL EXECUTION
// =============================================================================

// runTools executes the pending tools sequentially, in stream order. A
// failing tool becomes an error result for the model, not a turn failure.
func (a *Adapter) runTools(ctx context.Context, pending []*pendingTool, emit EmitFunc) []ContentPart {
	results := make([]ContentPart, 0, len(pending))
	for _, pt := range pending {
		input := json.RawMessage(pt.input.String())
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}

		output, err := a.tools.Run(ctx, pt.name, input)
		isError := err != nil
		if isError {
			output = (&ToolError{Tool: pt.name, Cause: err}).Error()
		}

		meta := model.Metadata{ToolName: pt.name, ToolID: pt.id, IsSuccess: !isError}
		id := a.store.AddCompleteBlock(model.BlockToolResult, output, meta)
		a.emitComplete(emit, id, model.BlockToolResult, output, meta)

		results = append(results, ToolResultPart(pt.id, output, isError))
	}
	return results
}

// =============================================================================
// FAILURE AND EMIT HELPERS
// =============================================================================

// failTurn records a turn-fatal error as an error block, emits a fault and
// the unconditional terminal stop. Content streamed before the failure is
// kept as-is; there is no rollback. The error block is skipped when the
// conversation was cleared mid-turn, so the new context stays empty.
func (a *Adapter) failTurn(emit EmitFunc, err error, convID string) {
	msg := err.Error()
	if a.store.ConversationID() == convID {
		id := a.store.AddCompleteBlock(model.BlockError, msg, model.Metadata{})
		a.emitComplete(emit, id, model.BlockError, msg, model.Metadata{})
	}

	emit(protocol.Fault(msg, faultCode(err)))

	in, out := a.store.TokenUsage()
	emit(protocol.LifecycleStop("", "", in, out))
}

// emitComplete emits the started/appended/finalized trio for a block that
// was created whole, so mirrors see the same shape as streamed blocks.
func (a *Adapter) emitComplete(emit EmitFunc, id string, t model.BlockType, content string, meta model.Metadata) {
	emit(protocol.BlockStarted(id, t.String(), meta.ToolName, meta.ToolID))
	if content != "" {
		emit(protocol.BlockAppended(id, content))
	}
	emit(protocol.BlockFinalized(id))
}

// faultCode classifies an error for the fault delta.
func faultCode(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return "transport"
	}
	return "internal"
}

// =============================================================================
// HISTORY REBUILDING
// =============================================================================

// startInfo maps a content_block_start payload to a store block type and
// its initial metadata.
func startInfo(cb *ContentStart) (model.BlockType, model.Metadata) {
	switch cb.Type {
	case ContentThinking:
		return model.BlockThinking, model.Metadata{}
	case ContentToolUse:
		return model.BlockToolUse, model.Metadata{ToolName: cb.Name, ToolID: cb.ID}
	default:
		return model.BlockText, model.Metadata{}
	}
}

// buildMessages replays the conversation so far as API messages. Adjacent
// blocks of the same role collapse into one message; thinking, system and
// error blocks are not replayed.
func buildMessages(snapshot *model.Context) []Message {
	var messages []Message

	appendPart := func(role string, part ContentPart) {
		n := len(messages)
		if n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, part)
			return
		}
		messages = append(messages, Message{Role: role, Content: []ContentPart{part}})
	}

	for _, b := range snapshot.Blocks {
		switch b.Type {
		case model.BlockUser:
			appendPart("user", TextPart(b.Text()))
		case model.BlockText:
			appendPart("assistant", TextPart(b.Text()))
		case model.BlockToolUse:
			input := json.RawMessage(b.Text())
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			appendPart("assistant", ToolUsePart(b.Metadata.ToolID, b.Metadata.ToolName, input))
		case model.BlockToolResult:
			appendPart("user", ToolResultPart(b.Metadata.ToolID, b.Text(), !b.Metadata.IsSuccess))
		}
	}
	return messages
}

// marshalTools encodes the stored tool definitions for the request, or nil
// when none are registered.
func marshalTools(defs []model.ToolDefinition) json.RawMessage {
	if len(defs) == 0 {
		return nil
	}
	data, err := json.Marshal(defs)
	if err != nil {
		return nil
	}
	return data
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/convo-tui/internal/mirror"
	"github.com/jeranaias/convo-tui/internal/model"
	"github.com/jeranaias/convo-tui/internal/protocol"
	"github.com/jeranaias/convo-tui/internal/search"
)

// =============================================================================
// FOCUS
// =============================================================================

type focusArea int

const (
	focusInput focusArea = iota
	focusSearch
)

// =============================================================================
// MESSAGES
// =============================================================================

type snapshotMsg struct {
	ctx *model.Context
	err error
}

// deltaMsg carries one delta off the turn stream; closed marks stream end.
type deltaMsg struct {
	delta  protocol.Delta
	closed bool
}

type turnStartedMsg struct {
	deltas <-chan protocol.Delta
	cancel context.CancelFunc
}

type sendFailedMsg struct{ err error }

type searchResultMsg struct {
	query   string
	matches []search.Match
	err     error
}

type clearedMsg struct{ err error }

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the conversation client.
type Model struct {
	theme *Theme
	api   *APIClient
	keys  KeyMap

	mirror *mirror.Mirror
	window *mirror.Window

	width  int
	height int
	scroll int
	follow bool // pinned to the tail while streaming

	input       textinput.Model
	searchInput textinput.Model
	focus       focusArea
	spin        spinner.Model

	renderer *glamour.TermRenderer
	rendered map[string]string // finalized text block ID -> glamour output

	deltas     <-chan protocol.Delta
	cancelTurn context.CancelFunc

	debouncer *search.Debouncer
	searchCh  chan searchResultMsg
	matches   []search.Match
	lastQuery string

	status string
	errMsg string
}

// NewModel creates the client model against an API endpoint.
func NewModel(api *APIClient, theme *Theme, overscan int) *Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Focus()
	input.CharLimit = 0

	searchInput := textinput.New()
	searchInput.Placeholder = "Search conversation..."

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	if overscan <= 0 {
		overscan = mirror.DefaultOverscan
	}

	m := &Model{
		theme:       theme,
		api:         api,
		keys:        DefaultKeyMap(),
		mirror:      mirror.New(),
		window:      mirror.NewWindow(overscan),
		input:       input,
		searchInput: searchInput,
		spin:        sp,
		rendered:    make(map[string]string),
		searchCh:    make(chan searchResultMsg, 4),
		follow:      true,
		status:      "connecting",
	}
	m.debouncer = search.NewDebouncer(search.DefaultQueryDelay, m.runSearch)
	return m
}

// runSearch executes on the debouncer's timer goroutine and hands the
// result back to the update loop through searchCh.
func (m *Model) runSearch(query string) {
	if query == "" {
		m.searchCh <- searchResultMsg{query: ""}
		return
	}
	matches, err := m.api.Search(context.Background(), query)
	m.searchCh <- searchResultMsg{query: query, matches: matches, err: err}
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) loadSnapshot() tea.Msg {
	ctx, err := m.api.Snapshot(context.Background())
	return snapshotMsg{ctx: ctx, err: err}
}

func (m *Model) startTurn(message string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := m.api.Send(ctx, message)
		if err != nil {
			cancel()
			return sendFailedMsg{err: err}
		}
		return turnStartedMsg{deltas: ch, cancel: cancel}
	}
}

func waitDelta(ch <-chan protocol.Delta) tea.Cmd {
	return func() tea.Msg {
		d, ok := <-ch
		if !ok {
			return deltaMsg{closed: true}
		}
		return deltaMsg{delta: d}
	}
}

func waitSearch(ch chan searchResultMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m *Model) clearConversation() tea.Msg {
	return clearedMsg{err: m.api.Clear(context.Background())}
}

// =============================================================================
// TEA INTERFACE
// =============================================================================

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadSnapshot, m.spin.Tick, waitSearch(m.searchCh))
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		model.SetAssumedColumns(msg.Width - 4)
		m.rendered = make(map[string]string) // wrap width changed
		m.renderer = nil
		m.refreshHeights()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			m.status = "disconnected"
			return m, nil
		}
		m.mirror.LoadSnapshot(msg.ctx)
		m.refreshHeights()
		m.status = "ready"
		m.scrollToBottom()
		return m, nil

	case turnStartedMsg:
		m.deltas = msg.deltas
		m.cancelTurn = msg.cancel
		m.status = "streaming"
		m.follow = true
		return m, waitDelta(m.deltas)

	case sendFailedMsg:
		m.errMsg = msg.err.Error()
		m.status = "ready"
		return m, nil

	case deltaMsg:
		return m.handleDelta(msg)

	case searchResultMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		} else {
			m.matches = msg.matches
			m.lastQuery = msg.query
		}
		return m, waitSearch(m.searchCh)

	case clearedMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.mirror.Reset()
		m.window.SetHeights(nil)
		m.rendered = make(map[string]string)
		m.matches = nil
		m.scroll = 0
		m.status = "ready"
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, m.updateInputs(msg)
}

// handleDelta applies one stream delta to the mirror and window.
func (m *Model) handleDelta(msg deltaMsg) (tea.Model, tea.Cmd) {
	if msg.closed {
		m.deltas = nil
		if m.cancelTurn != nil {
			m.cancelTurn()
			m.cancelTurn = nil
		}
		m.status = "ready"
		return m, nil
	}

	d := msg.delta
	touched := m.mirror.Apply(d)

	switch d.Type {
	case protocol.EventFault:
		m.errMsg = d.Message
	case protocol.EventBlockFinalized:
		// Drop the streaming render so the finalized block re-renders
		// through glamour.
		delete(m.rendered, d.BlockID)
	}
	if touched != "" {
		m.refreshHeights()
		if m.follow {
			m.scrollToBottom()
		}
	}
	return m, waitDelta(m.deltas)
}

// handleKey routes key presses by focus area.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancelTurn != nil {
			m.cancelTurn()
		}
		m.debouncer.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Search):
		if m.focus == focusSearch {
			m.focus = focusInput
			m.searchInput.Blur()
			m.input.Focus()
		} else {
			m.focus = focusSearch
			m.input.Blur()
			m.searchInput.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.CancelTurn):
		if m.cancelTurn != nil {
			// The server keeps the turn's partial content; we just stop
			// listening and the context cancels the request.
			m.cancelTurn()
			m.cancelTurn = nil
			m.deltas = nil
			m.status = "ready"
			return m, nil
		}
		if m.focus == focusSearch {
			m.focus = focusInput
			m.searchInput.Blur()
			m.searchInput.SetValue("")
			m.matches = nil
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.ClearConvo):
		return m, m.clearConversation

	case key.Matches(msg, m.keys.ScrollUp):
		m.setScroll(m.scroll - 1)
		return m, nil
	case key.Matches(msg, m.keys.ScrollDown):
		m.setScroll(m.scroll + 1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.setScroll(m.scroll - m.transcriptHeight())
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.setScroll(m.scroll + m.transcriptHeight())
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.scrollToBottom()
		return m, nil

	case key.Matches(msg, m.keys.Send) && m.focus == focusInput:
		text := m.input.Value()
		if text == "" || m.deltas != nil {
			return m, nil
		}
		m.input.SetValue("")
		m.errMsg = ""
		return m, m.startTurn(text)
	}

	return m, m.updateInputs(msg)
}

// updateInputs forwards a message to the focused text input.
func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if m.focus == focusSearch {
		before := m.searchInput.Value()
		m.searchInput, cmd = m.searchInput.Update(msg)
		if after := m.searchInput.Value(); after != before {
			m.debouncer.Trigger(after)
		}
		return cmd
	}
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// =============================================================================
// SCROLL AND HEIGHTS
// =============================================================================

// refreshHeights recomputes every block's estimated height at the current
// terminal width and updates the window's prefix sums.
func (m *Model) refreshHeights() {
	blocks := m.mirror.Blocks()
	heights := make([]int, len(blocks))
	for i, b := range blocks {
		heights[i] = model.EstimateHeight(b.Text())
	}
	m.window.SetHeights(heights)
}

func (m *Model) transcriptHeight() int {
	// Status bar, search/input rows and a separator.
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) setScroll(offset int) {
	max := m.window.TotalHeight() - m.transcriptHeight()
	if max < 0 {
		max = 0
	}
	if offset > max {
		offset = max
	}
	if offset < 0 {
		offset = 0
	}
	m.follow = offset == max
	m.scroll = offset
}

func (m *Model) scrollToBottom() {
	max := m.window.TotalHeight() - m.transcriptHeight()
	if max < 0 {
		max = 0
	}
	m.scroll = max
	m.follow = true
}

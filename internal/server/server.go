// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP surface over the conversation store.
//
// Endpoints:
//   - GET    /conversation          - Full context snapshot
//   - DELETE /conversation          - Clear the conversation
//   - POST   /conversation/messages - Send a message; responds with an SSE delta stream
//   - GET    /conversation/export   - Export (format=json|text|markdown|html)
//   - GET    /conversation/search   - Substring search over finalized blocks
//   - GET    /health                - Health check
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/convo-tui/internal/claude"
	"github.com/jeranaias/convo-tui/internal/config"
	"github.com/jeranaias/convo-tui/internal/export"
	"github.com/jeranaias/convo-tui/internal/model"
	"github.com/jeranaias/convo-tui/internal/protocol"
	"github.com/jeranaias/convo-tui/internal/search"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8490"

	// MaxRequestBodySize caps request bodies to prevent DoS (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageLength caps a single user message.
	MaxMessageLength = 100000

	// KeepAliveInterval is how often an idle SSE stream gets a heartbeat.
	KeepAliveInterval = 30 * time.Second

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Server serves the conversation over HTTP. One server owns one
// conversation: the store, the adapter driving it and the search worker
// indexing it.
type Server struct {
	addr    string
	router  *http.ServeMux
	server  *http.Server
	handler http.Handler

	store     *model.Store
	adapter   *claude.Adapter
	worker    *search.Worker
	coalescer *search.Coalescer

	mu sync.RWMutex
}

// NewServer creates a server bound to a store and adapter. worker may be
// nil to disable search.
func NewServer(addr string, store *model.Store, adapter *claude.Adapter, worker *search.Worker) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:    addr,
		router:  http.NewServeMux(),
		store:   store,
		adapter: adapter,
		worker:  worker,
	}
	if worker != nil {
		s.coalescer = search.NewCoalescer(search.DefaultIndexDelay, worker)
	}

	s.setupRoutes()
	s.handler = Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(nil),
	)(s.router)
	return s
}

// Use wraps the server's handler chain with additional middleware, applied
// outermost. Call before Start.
func (s *Server) Use(mw ...func(http.Handler) http.Handler) {
	s.handler = Chain(mw...)(s.handler)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the full middleware-wrapped handler, for tests and for
// embedding under another mux.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /conversation", s.handleSnapshot)
	s.router.HandleFunc("DELETE /conversation", s.handleClear)
	s.router.HandleFunc("POST /conversation/messages", s.handleSendMessage)
	s.router.HandleFunc("GET /conversation/export", s.handleExport)
	s.router.HandleFunc("GET /conversation/search", s.handleSearch)
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// ============================================================================
// SNAPSHOT AND CLEAR
// ============================================================================

// handleSnapshot handles GET /conversation.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleClear handles DELETE /conversation. The search index drops with
// the blocks; deltas for the old conversation become stale no-ops.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	if s.worker != nil {
		if err := s.worker.Clear(); err != nil {
			log.Printf("SEARCH_CLEAR_ERROR | %v", err)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":         "cleared",
		"conversationId": s.store.ConversationID(),
	})
}

// ============================================================================
// MESSAGE STREAMING
// ============================================================================

// sendMessageRequest is the body of POST /conversation/messages.
type sendMessageRequest struct {
	Message string `json:"message"`
}

// handleSendMessage handles POST /conversation/messages. The response is
// an SSE stream of delta events covering the whole logical turn, tool
// continuations included; it ends after the terminal lifecycle stop.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if len(req.Message) > MaxMessageLength {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("message exceeds %d bytes", MaxMessageLength))
		return
	}
	if s.adapter == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no model session configured")
		return
	}
	if s.adapter.Busy() {
		s.writeError(w, http.StatusConflict, "a turn is already in flight")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := newSSEStream(w, flusher)
	defer stream.close()

	stopKeepAlive := s.startKeepAlive(stream)
	defer stopKeepAlive()

	err := s.adapter.Send(r.Context(), req.Message, func(d protocol.Delta) {
		stream.send(d)
		s.indexDelta(d)
	})
	if err != nil {
		// The fault and terminal stop already went out as deltas. The HTTP
		// status was committed when streaming began.
		log.Printf("TURN_ERROR | %v", err)
	}
	s.flushIndex()
}

// startKeepAlive emits heartbeats on an idle stream until stopped.
func (s *Server) startKeepAlive(stream *sseStream) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(KeepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				stream.send(protocol.KeepAlive())
			}
		}
	}()
	return func() { close(done) }
}

// indexDelta feeds finalized block content to the search worker.
func (s *Server) indexDelta(d protocol.Delta) {
	if s.coalescer == nil || d.Type != protocol.EventBlockFinalized {
		return
	}
	if text, ok := s.store.BlockText(d.BlockID); ok {
		s.coalescer.Add(d.BlockID, text)
	}
}

func (s *Server) flushIndex() {
	if s.coalescer != nil {
		s.coalescer.Flush()
	}
}

// ============================================================================
// SSE STREAM
// ============================================================================

// sseStream serializes delta writes to one response. After close, sends
// are silent no-ops: the keep-alive goroutine may race the handler return.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func newSSEStream(w http.ResponseWriter, flusher http.Flusher) *sseStream {
	return &sseStream{w: w, flusher: flusher}
}

func (st *sseStream) send(d protocol.Delta) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	frame, err := d.MarshalSSE()
	if err != nil {
		return
	}
	if _, err := st.w.Write(frame); err != nil {
		// Client went away; drop the rest silently.
		st.closed = true
		return
	}
	st.flusher.Flush()
}

func (st *sseStream) close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.closed = true
}

// ============================================================================
// EXPORT
// ============================================================================

// handleExport handles GET /conversation/export?format=json|text|markdown|html.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	opts := export.DefaultOptions()
	if t := config.Global().UI.Theme; t != "" {
		opts.Theme = t
	}
	if r.URL.Query().Get("thinking") == "true" {
		opts.IncludeThinking = true
	}
	if theme := r.URL.Query().Get("theme"); theme == "light" || theme == "dark" {
		opts.Theme = theme
	}

	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot := s.store.Snapshot()
	data, err := exporter.Export(snapshot)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "export failed")
		log.Printf("EXPORT_ERROR | format=%s error=%v", format, err)
		return
	}

	filename := snapshot.ID + exporter.FileExtension()
	w.Header().Set("Content-Type", exporter.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ============================================================================
// SEARCH
// ============================================================================

// searchResponse is the body of GET /conversation/search.
type searchResponse struct {
	Query   string         `json:"query"`
	Matches []search.Match `json:"matches"`
}

// handleSearch handles GET /conversation/search?q=term.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.worker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "search is disabled")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	matches, err := s.worker.Search(query)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "search failed")
		log.Printf("SEARCH_ERROR | %v", err)
		return
	}
	if matches == nil {
		matches = []search.Match{}
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Query: query, Matches: matches})
}

// ============================================================================
// HEALTH
// ============================================================================

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	in, out := s.store.TokenUsage()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        Version,
		"conversationId": s.store.ConversationID(),
		"turnActive":     s.adapter != nil && s.adapter.Busy(),
		"inputTokens":    in,
		"outputTokens":   out,
	})
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start runs the server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	log.Printf("SERVER_START | addr=%s", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and the search worker.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()

	if s.worker != nil {
		s.worker.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ============================================================================
// RESPONSE HELPERS
// ============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ENCODE_ERROR | %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

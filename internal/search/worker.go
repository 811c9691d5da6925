// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrWorkerTimeout is returned when a request exceeds its deadline. The
	// worker is respawned and the request is rejected to the caller.
	ErrWorkerTimeout = errors.New("search worker: request timed out")

	// ErrWorkerCrashed is returned for requests pending when the worker
	// panicked. The worker respawns with an empty index.
	ErrWorkerCrashed = errors.New("search worker: worker crashed")

	// ErrWorkerClosed is returned for requests submitted after Close.
	ErrWorkerClosed = errors.New("search worker: worker closed")
)

// DefaultRequestTimeout bounds how long a caller waits on the worker.
const DefaultRequestTimeout = 30 * time.Second

// requestBuffer is the depth of the worker mailbox. Indexing traffic is
// coalesced upstream, so a small buffer suffices.
const requestBuffer = 64

// =============================================================================
// REQUESTS
// =============================================================================

type opKind int

const (
	opIndex opKind = iota
	opRemove
	opClear
	opSearch
)

// request is one message to the worker goroutine. Every request carries a
// correlation ID so replies and faults can be traced in logs.
type request struct {
	id      string
	op      opKind
	blockID string
	content string
	query   string
	reply   chan response
}

type response struct {
	matches []Match
	err     error
}

// =============================================================================
// WORKER
// =============================================================================

// Worker owns an Index on a dedicated goroutine. Collaborators communicate
// only through request/response messages; nothing else touches the index.
// A panicked or unresponsive worker is terminated and transparently
// respawned with its pending requests rejected.
type Worker struct {
	mu      sync.Mutex
	reqCh   chan request
	stopCh  chan struct{}
	closed  bool
	timeout time.Duration
}

// NewWorker creates and starts a search worker.
func NewWorker() *Worker {
	w := &Worker{timeout: DefaultRequestTimeout}
	w.spawn()
	return w
}

// SetTimeout overrides the per-request timeout (used by tests).
func (w *Worker) SetTimeout(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeout = d
}

// spawn starts a fresh goroutine with a fresh mailbox and empty index.
// Callers must hold no assumptions about prior index contents afterwards.
func (w *Worker) spawn() {
	ch := make(chan request, requestBuffer)
	stop := make(chan struct{})
	w.reqCh = ch
	w.stopCh = stop
	go runLoop(ch, stop)
}

// runLoop executes requests until the mailbox closes, the stop sentinel
// fires, or a request panics. On panic the faulting request and everything
// still queued are rejected, then the loop exits; the owner respawns on the
// next submit failure path.
func runLoop(ch chan request, stop chan struct{}) {
	idx := NewIndex()
	for {
		select {
		case req, ok := <-ch:
			if !ok {
				return
			}
			if crashed := execute(idx, req); crashed {
				rejectPending(ch)
				return
			}
		case <-stop:
			// Abandoned after a timeout respawn. The mailbox cannot be
			// closed here: a submit that captured it before the respawn
			// could still be sending. Reject whatever raced in and exit.
			rejectPending(ch)
			return
		}
	}
}

// execute runs one request, converting a panic into ErrWorkerCrashed.
// Returns true if the request panicked.
func execute(idx *Index, req request) (crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			crashed = true
			req.reply <- response{err: fmt.Errorf("%w: %v", ErrWorkerCrashed, r)}
		}
	}()

	switch req.op {
	case opIndex:
		idx.IndexBlock(req.blockID, req.content)
		req.reply <- response{}
	case opRemove:
		idx.RemoveBlock(req.blockID)
		req.reply <- response{}
	case opClear:
		idx.Clear()
		req.reply <- response{}
	case opSearch:
		req.reply <- response{matches: idx.Search(req.query)}
	default:
		panic(fmt.Sprintf("search worker: unknown op %d", req.op))
	}
	return false
}

// rejectPending drains whatever is already queued after a crash.
func rejectPending(ch chan request) {
	for {
		select {
		case req := <-ch:
			req.reply <- response{err: ErrWorkerCrashed}
		default:
			return
		}
	}
}

// submit sends one request and waits for the reply or the deadline. A
// timeout or crash triggers a respawn before returning the error.
func (w *Worker) submit(op opKind, blockID, content, query string) ([]Match, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrWorkerClosed
	}
	ch := w.reqCh
	timeout := w.timeout
	w.mu.Unlock()

	req := request{
		id:      uuid.NewString(),
		op:      op,
		blockID: blockID,
		content: content,
		query:   query,
		reply:   make(chan response, 1),
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- req:
	case <-timer.C:
		w.respawn(ch)
		return nil, fmt.Errorf("%w (id=%s)", ErrWorkerTimeout, req.id)
	}

	select {
	case resp := <-req.reply:
		if resp.err != nil {
			w.respawn(ch)
			return nil, resp.err
		}
		return resp.matches, nil
	case <-timer.C:
		w.respawn(ch)
		return nil, fmt.Errorf("%w (id=%s)", ErrWorkerTimeout, req.id)
	}
}

// respawn replaces the mailbox (and with it the goroutine) unless another
// caller already did, or the worker is closed. The old loop is told to
// exit via its stop sentinel so an unresponsive goroutine is not leaked.
func (w *Worker) respawn(old chan request) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.reqCh != old {
		return
	}
	close(w.stopCh)
	w.spawn()
}

// Close shuts the worker down. Subsequent requests fail with ErrWorkerClosed.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.reqCh)
}

// =============================================================================
// PUBLIC API
// =============================================================================

// IndexBlock (re)indexes one block's text.
func (w *Worker) IndexBlock(id, content string) error {
	_, err := w.submit(opIndex, id, content, "")
	return err
}

// RemoveBlock purges one block from the index.
func (w *Worker) RemoveBlock(id string) error {
	_, err := w.submit(opRemove, id, "", "")
	return err
}

// Clear drops the whole index, used on conversation clear.
func (w *Worker) Clear() error {
	_, err := w.submit(opClear, "", "", "")
	return err
}

// Search runs a substring query and returns all (overlapping) matches.
func (w *Worker) Search(query string) ([]Match, error) {
	return w.submit(opSearch, "", "", query)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Messages API client.
type ClientConfig struct {
	// BaseURL is the API base URL (default: https://api.anthropic.com)
	BaseURL string

	// APIKey authenticates requests. Empty is allowed at construction;
	// sending without one fails with ErrNoCredentials.
	APIKey string

	// Model is the default model for new turns.
	Model string

	// MaxTokens caps the response length per turn.
	MaxTokens int

	// ConnectTimeout bounds establishing the streaming connection. The
	// stream itself is bounded by the caller's context, not a timeout.
	ConnectTimeout time.Duration
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "https://api.anthropic.com",
		Model:          "claude-sonnet-4-20250514",
		MaxTokens:      8192,
		ConnectTimeout: 15 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// apiVersion is the anthropic-version header value.
const apiVersion = "2023-06-01"

// Client is the HTTP client for the streaming Messages API. It implements
// Session for the adapter; tests substitute a scripted fake.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	// keyMu guards apiKey: SetAPIKey runs on the config watcher goroutine
	// while Stream reads on the turn goroutine.
	keyMu  sync.Mutex
	apiKey string
}

// NewClient creates a client with the given configuration.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &Client{
		config: config,
		apiKey: config.APIKey,
		// No overall timeout: streams are long-lived and cancelled via ctx.
		httpClient: &http.Client{},
	}
}

// SetAPIKey swaps the credential, e.g. after a config hot-reload. Streams
// already in flight keep the key they started with; the next Stream uses
// the new one.
func (c *Client) SetAPIKey(key string) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	c.apiKey = key
}

// currentAPIKey reads the credential for a new stream.
func (c *Client) currentAPIKey() string {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	return c.apiKey
}

// Model returns the configured default model.
func (c *Client) Model() string {
	return c.config.Model
}

// MaxTokens returns the configured per-turn response cap.
func (c *Client) MaxTokens() int {
	return c.config.MaxTokens
}

// =============================================================================
// STREAMING
// =============================================================================

// Stream opens one streaming Messages call and invokes fn for every decoded
// event, in arrival order, on the calling goroutine. It returns when the
// stream ends, fn returns an error, or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, req Request, fn func(Event) error) error {
	apiKey := c.currentAPIKey()
	if apiKey == "" {
		return ErrNoCredentials
	}

	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Api-Key", apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Op: "connect", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Error bodies are small JSON documents; cap the read anyway.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransportError{
			Op:    "request",
			Cause: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	return readEventStream(ctx, resp.Body, fn)
}

// readEventStream decodes SSE frames line by line and dispatches data
// payloads to fn. Malformed lines are skipped, matching how the stream
// reader tolerates partial writes from the upstream.
func readEventStream(ctx context.Context, r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	// Single deltas can carry large tool inputs; allow up to 1MB per line.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			// event:/id:/comment lines carry no payload we need; the JSON
			// type tag is authoritative.
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		if err := fn(event); err != nil {
			return err
		}
		if event.Type == EventMessageStop {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return &TransportError{Op: "read", Cause: err}
	}
	// Stream ended without message_stop: the peer went away mid-turn.
	return &TransportError{Op: "read", Cause: io.ErrUnexpectedEOF}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jeranaias/convo-tui/internal/model"
	"github.com/jeranaias/convo-tui/internal/protocol"
	"github.com/jeranaias/convo-tui/internal/search"
)

// =============================================================================
// API CLIENT
// =============================================================================

// APIClient talks to the conversation server's HTTP surface.
type APIClient struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// NewAPIClient creates a client for the given base URL.
func NewAPIClient(baseURL, authToken string) *APIClient {
	return &APIClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		// Streams are long-lived; no client timeout.
		http: &http.Client{},
	}
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

// Snapshot fetches the full conversation context.
func (c *APIClient) Snapshot(ctx context.Context) (*model.Context, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/conversation", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot: status %d", resp.StatusCode)
	}

	var out model.Context
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return &out, nil
}

// Clear resets the conversation.
func (c *APIClient) Clear(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/conversation", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clear: status %d", resp.StatusCode)
	}
	return nil
}

// Search runs a substring search on the server.
func (c *APIClient) Search(ctx context.Context, query string) ([]search.Match, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/conversation/search?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: status %d", resp.StatusCode)
	}

	var body struct {
		Matches []search.Match `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return body.Matches, nil
}

// Send posts a user message and returns a channel of deltas for the whole
// logical turn. The channel closes when the stream ends; a read error
// surfaces as a fault delta so consumers have one code path.
func (c *APIClient) Send(ctx context.Context, message string) (<-chan protocol.Delta, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/conversation/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	ch := make(chan protocol.Delta, 32)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			d, err := protocol.ParseSSEData([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))))
			if err != nil {
				continue
			}
			select {
			case ch <- d:
			case <-ctx.Done():
				return
			}
			if d.Type == protocol.EventLifecycleStop {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			ch <- protocol.Fault("stream interrupted: "+err.Error(), "transport")
		}
	}()
	return ch, nil
}

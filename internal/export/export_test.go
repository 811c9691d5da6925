// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jeranaias/convo-tui/internal/model"
)

func sampleContext() *model.Context {
	store := model.NewStore()
	store.AddCompleteBlock(model.BlockUser, "show me a loop", model.Metadata{})
	store.AddCompleteBlock(model.BlockThinking, "they want an example", model.Metadata{})
	store.AddCompleteBlock(model.BlockText, "Here you go:\n\n```go\nfor i := 0; i < 3; i++ {}\n```", model.Metadata{})
	store.AddCompleteBlock(model.BlockToolUse, `{"path":"main.go"}`, model.Metadata{ToolName: "read_file", ToolID: "toolu_1"})
	store.AddCompleteBlock(model.BlockToolResult, "package main", model.Metadata{ToolID: "toolu_1", IsSuccess: true})
	store.UpdateTokenUsage(12, 34)
	return store.Snapshot()
}

func TestForFormat(t *testing.T) {
	for _, format := range []string{"json", "text", "markdown", "md", "html"} {
		if _, err := ForFormat(format, nil); err != nil {
			t.Errorf("ForFormat(%q): %v", format, err)
		}
	}
	if _, err := ForFormat("pdf", nil); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestJSONExportRoundTrips(t *testing.T) {
	ctx := sampleContext()

	data, err := NewJSONExporter().Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var decoded model.Context
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != ctx.ID || len(decoded.Blocks) != len(ctx.Blocks) {
		t.Errorf("round trip lost data: %s/%d vs %s/%d", decoded.ID, len(decoded.Blocks), ctx.ID, len(ctx.Blocks))
	}
	if decoded.InputTokens != 12 || decoded.OutputTokens != 34 {
		t.Errorf("tokens = %d/%d", decoded.InputTokens, decoded.OutputTokens)
	}
}

func TestTextExportSkipsThinkingByDefault(t *testing.T) {
	ctx := sampleContext()

	data, err := NewTextExporter(nil).Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "they want an example") {
		t.Error("thinking block leaked into default text export")
	}
	if !strings.Contains(out, "show me a loop") || !strings.Contains(out, "read_file") {
		t.Errorf("text export missing content:\n%s", out)
	}
	if !strings.Contains(out, "12 in / 34 out") {
		t.Errorf("text export missing token totals:\n%s", out)
	}
}

func TestTextExportIncludesThinkingWhenAsked(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeThinking = true

	data, err := NewTextExporter(opts).Export(sampleContext())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(string(data), "they want an example") {
		t.Error("thinking block missing despite IncludeThinking")
	}
}

func TestMarkdownExportStructure(t *testing.T) {
	data, err := NewMarkdownExporter(nil).Export(sampleContext())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "## User") || !strings.Contains(out, "## Assistant") {
		t.Errorf("markdown sections missing:\n%s", out)
	}
	if !strings.Contains(out, "### Tool call: read_file") {
		t.Errorf("tool call heading missing:\n%s", out)
	}
	if !strings.Contains(out, "```json") {
		t.Errorf("tool input not fenced:\n%s", out)
	}
}

func TestHTMLExportEscapesAndHighlights(t *testing.T) {
	store := model.NewStore()
	store.AddCompleteBlock(model.BlockUser, "<script>alert(1)</script>", model.Metadata{})
	store.AddCompleteBlock(model.BlockText, "```go\npackage main\n```", model.Metadata{})
	ctx := store.Snapshot()

	data, err := NewHTMLExporter(nil).Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Error("user content not escaped")
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Error("escaped form missing")
	}
	if !strings.Contains(out, "<!DOCTYPE html>") || !strings.Contains(out, "</html>") {
		t.Error("not a standalone document")
	}
	// Highlighted code comes back as styled spans, not a bare fence.
	if strings.Contains(out, "```go") {
		t.Error("fence markers leaked into HTML")
	}
}

func TestExportersRejectNilContext(t *testing.T) {
	exporters := []Exporter{
		NewJSONExporter(),
		NewTextExporter(nil),
		NewMarkdownExporter(nil),
		NewHTMLExporter(nil),
	}
	for _, e := range exporters {
		if _, err := e.Export(nil); err == nil {
			t.Errorf("%T accepted nil context", e)
		}
	}
}

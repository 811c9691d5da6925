// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/convo-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders the conversation as a markdown document, with
// tool calls and results in fenced blocks.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders the context as markdown.
func (e *MarkdownExporter) Export(ctx *model.Context) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}

	var sb strings.Builder

	sb.WriteString("# " + title(e.options, ctx) + "\n\n")
	if e.options.IncludeMetadata {
		sb.WriteString(fmt.Sprintf("> Created %s · %d tokens in · %d tokens out\n\n",
			ctx.CreatedAt.Format(time.RFC1123), ctx.InputTokens, ctx.OutputTokens))
	}

	for _, b := range ctx.Blocks {
		switch b.Type {
		case model.BlockThinking:
			if !e.options.IncludeThinking {
				continue
			}
			sb.WriteString("## Thinking\n\n")
			sb.WriteString(quote(b.Text()) + "\n\n")
		case model.BlockUser:
			sb.WriteString("## User\n\n" + b.Text() + "\n\n")
		case model.BlockText:
			sb.WriteString("## Assistant\n\n" + b.Text() + "\n\n")
		case model.BlockToolUse:
			sb.WriteString(fmt.Sprintf("### Tool call: %s\n\n```json\n%s\n```\n\n", b.Metadata.ToolName, b.Text()))
		case model.BlockToolResult:
			sb.WriteString("### Tool result\n\n```\n" + b.Text() + "\n```\n\n")
		case model.BlockError:
			sb.WriteString("### Error\n\n" + quote(b.Text()) + "\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string { return ".md" }

// MimeType returns the markdown MIME type.
func (e *MarkdownExporter) MimeType() string { return "text/markdown; charset=utf-8" }

// quote prefixes every line with a blockquote marker.
func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

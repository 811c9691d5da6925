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
// TEXT EXPORTER
// =============================================================================

// TextExporter renders a plain-text transcript: one labeled section per
// block, separated by rules.
type TextExporter struct {
	options *Options
}

// NewTextExporter creates a text exporter.
func NewTextExporter(opts *Options) *TextExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &TextExporter{options: opts}
}

// Export renders the context as plain text.
func (e *TextExporter) Export(ctx *model.Context) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}

	var sb strings.Builder
	rule := strings.Repeat("-", 72)

	if e.options.IncludeMetadata {
		sb.WriteString(title(e.options, ctx) + "\n")
		sb.WriteString(fmt.Sprintf("Created: %s\n", ctx.CreatedAt.Format(time.RFC1123)))
		sb.WriteString(fmt.Sprintf("Tokens: %d in / %d out\n", ctx.InputTokens, ctx.OutputTokens))
		sb.WriteString(rule + "\n")
	}

	for _, b := range ctx.Blocks {
		if b.Type == model.BlockThinking && !e.options.IncludeThinking {
			continue
		}

		label := b.Type.DisplayName()
		if b.Metadata.ToolName != "" {
			label = fmt.Sprintf("%s (%s)", label, b.Metadata.ToolName)
		}
		sb.WriteString(fmt.Sprintf("[%s]\n%s\n%s\n", label, b.Text(), rule))
	}

	return []byte(sb.String()), nil
}

// FileExtension returns ".txt".
func (e *TextExporter) FileExtension() string { return ".txt" }

// MimeType returns the plain text MIME type.
func (e *TextExporter) MimeType() string { return "text/plain; charset=utf-8" }

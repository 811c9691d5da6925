// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders a conversation context to portable formats: raw
// JSON, plain text, markdown and standalone HTML.
package export

import (
	"fmt"

	"github.com/jeranaias/convo-tui/internal/model"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders one conversation context to a target format.
type Exporter interface {
	// Export renders the context and returns the encoded document.
	Export(ctx *model.Context) ([]byte, error)

	// FileExtension returns the output extension, e.g. ".json".
	FileExtension() string

	// MimeType returns the MIME type served for this format.
	MimeType() string
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures rendering. JSON ignores them: a JSON export is always
// the complete context so it can be re-imported.
type Options struct {
	// Title overrides the document title; default is the conversation ID.
	Title string

	// IncludeMetadata adds the header with timestamps and token totals.
	IncludeMetadata bool

	// IncludeThinking includes thinking blocks in the output.
	IncludeThinking bool

	// Theme for HTML export ("light" or "dark").
	Theme string
}

// DefaultOptions returns the default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		IncludeThinking: false,
		Theme:           "dark",
	}
}

// =============================================================================
// FORMAT DISPATCH
// =============================================================================

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch format {
	case "json":
		return NewJSONExporter(), nil
	case "text":
		return NewTextExporter(opts), nil
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "html":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// title picks the document title for a context.
func title(opts *Options, ctx *model.Context) string {
	if opts != nil && opts.Title != "" {
		return opts.Title
	}
	return "Conversation " + ctx.ID
}

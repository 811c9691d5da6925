// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/jeranaias/convo-tui/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter renders a standalone HTML document with embedded CSS. Fenced
// code blocks inside text content are syntax-highlighted.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates an HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export renders the context as HTML.
func (e *HTMLExporter) Export(ctx *model.Context) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}

	var sb strings.Builder
	docTitle := title(e.options, ctx)

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(docTitle)))
	sb.WriteString(fmt.Sprintf("    <meta name=\"date\" content=\"%s\">\n", ctx.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(embeddedCSS)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n<div class=\"container\">\n", e.options.Theme))

	if e.options.IncludeMetadata {
		sb.WriteString("<header class=\"header\">\n")
		sb.WriteString(fmt.Sprintf("    <h1>%s</h1>\n", html.EscapeString(docTitle)))
		sb.WriteString("    <div class=\"metadata\">\n")
		sb.WriteString(fmt.Sprintf("        <span><strong>Created:</strong> %s</span>\n", ctx.CreatedAt.Format("January 2, 2006 15:04")))
		sb.WriteString(fmt.Sprintf("        <span><strong>Tokens:</strong> %d in / %d out</span>\n", ctx.InputTokens, ctx.OutputTokens))
		sb.WriteString(fmt.Sprintf("        <span><strong>Blocks:</strong> %d</span>\n", len(ctx.Blocks)))
		sb.WriteString("    </div>\n</header>\n")
	}

	sb.WriteString("<main class=\"conversation\">\n")
	for _, b := range ctx.Blocks {
		if b.Type == model.BlockThinking && !e.options.IncludeThinking {
			continue
		}
		e.renderBlock(&sb, b)
	}
	sb.WriteString("</main>\n")

	sb.WriteString("<footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("    <p>Exported %s</p>\n", time.Now().Format("January 2, 2006 at 15:04")))
	sb.WriteString("</footer>\n</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns ".html".
func (e *HTMLExporter) FileExtension() string { return ".html" }

// MimeType returns the HTML MIME type.
func (e *HTMLExporter) MimeType() string { return "text/html; charset=utf-8" }

// =============================================================================
// BLOCK RENDERING
// =============================================================================

func (e *HTMLExporter) renderBlock(sb *strings.Builder, b *model.Block) {
	cssClass := "block block-" + string(b.Type)
	label := b.Type.DisplayName()
	if b.Metadata.ToolName != "" {
		label += " · " + b.Metadata.ToolName
	}

	sb.WriteString(fmt.Sprintf("<section class=\"%s\">\n", cssClass))
	sb.WriteString(fmt.Sprintf("    <div class=\"block-label\">%s</div>\n", html.EscapeString(label)))
	sb.WriteString("    <div class=\"block-content\">\n")

	switch b.Type {
	case model.BlockToolUse:
		sb.WriteString(highlightCode(b.Text(), "json", e.options.Theme))
	case model.BlockToolResult:
		sb.WriteString("<pre><code>" + html.EscapeString(b.Text()) + "</code></pre>\n")
	default:
		sb.WriteString(renderProse(b.Text(), e.options.Theme))
	}

	sb.WriteString("    </div>\n</section>\n")
}

// renderProse converts text with fenced code blocks: fences become
// highlighted code, everything else becomes escaped paragraphs.
func renderProse(text, theme string) string {
	var sb strings.Builder
	segments := strings.Split(text, "```")

	for i, seg := range segments {
		if i%2 == 0 {
			for _, para := range strings.Split(strings.TrimSpace(seg), "\n\n") {
				if para == "" {
					continue
				}
				escaped := strings.ReplaceAll(html.EscapeString(para), "\n", "<br>\n")
				sb.WriteString("<p>" + escaped + "</p>\n")
			}
			continue
		}

		// Odd segments are fence bodies; the first line may name a language.
		lang := ""
		body := seg
		if idx := strings.Index(seg, "\n"); idx >= 0 {
			lang = strings.TrimSpace(seg[:idx])
			body = seg[idx+1:]
		}
		sb.WriteString(highlightCode(body, lang, theme))
	}
	return sb.String()
}

// highlightCode syntax-highlights code, falling back to an escaped pre
// block when the lexer fails.
func highlightCode(code, lang, theme string) string {
	style := "monokai"
	if theme == "light" {
		style = "github"
	}
	if lang == "" {
		lang = "text"
	}

	var buf strings.Builder
	if err := quick.Highlight(&buf, code, lang, "html", style); err != nil {
		return "<pre><code>" + html.EscapeString(code) + "</code></pre>\n"
	}
	return buf.String()
}

// =============================================================================
// STYLESHEET
// =============================================================================

const embeddedCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, "Segoe UI", Roboto, sans-serif;
            line-height: 1.6;
        }
        body.dark-theme { background: #1a1b26; color: #c0caf5; }
        body.light-theme { background: #fafafa; color: #24283b; }
        .container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
        .header { margin-bottom: 2rem; border-bottom: 1px solid #41496b; padding-bottom: 1rem; }
        .header h1 { font-size: 1.5rem; margin-bottom: 0.5rem; }
        .metadata { display: flex; gap: 1.5rem; flex-wrap: wrap; font-size: 0.85rem; opacity: 0.8; }
        .block { margin-bottom: 1.25rem; border-radius: 8px; padding: 1rem; }
        .dark-theme .block { background: #24283b; }
        .light-theme .block { background: #ffffff; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }
        .block-user { border-left: 3px solid #7aa2f7; }
        .block-text { border-left: 3px solid #9ece6a; }
        .block-thinking { border-left: 3px solid #565f89; opacity: 0.85; }
        .block-tool_use { border-left: 3px solid #e0af68; }
        .block-tool_result { border-left: 3px solid #bb9af7; }
        .block-error { border-left: 3px solid #f7768e; }
        .block-label {
            font-size: 0.75rem; text-transform: uppercase;
            letter-spacing: 0.05em; opacity: 0.7; margin-bottom: 0.5rem;
        }
        .block-content p { margin-bottom: 0.75rem; }
        pre { overflow-x: auto; padding: 0.75rem; border-radius: 6px; font-size: 0.875rem; }
        .dark-theme pre { background: #16161e; }
        .light-theme pre { background: #f0f0f0; }
        .footer { margin-top: 2rem; font-size: 0.8rem; opacity: 0.6; text-align: center; }
    </style>
`

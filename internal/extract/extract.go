// Package extract implements file ingestion content extraction (spec §4
// file preprocessing, SPEC_FULL.md §5 item 4): deciding how much of an
// uploaded or tool-produced file to pull into the session's context, and
// converting HTML content to plain-text-friendly markdown along the way.
package extract

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/atlaschat/core/internal/domain"
)

const (
	// fullExtractMaxBytes is the size threshold under which a text file
	// is extracted in full rather than truncated to a preview.
	fullExtractMaxBytes = 50_000
	previewMaxLines     = 10
	previewMaxChars     = 2000
)

var textLikeContentTypes = map[string]bool{
	"text/plain":       true,
	"text/markdown":    true,
	"text/csv":         true,
	"application/json": true,
	"text/html":        true,
}

// Result is the outcome of extracting content from a file.
type Result struct {
	Mode     domain.ExtractMode
	Content  string // populated for ExtractFull
	Preview  string // populated for ExtractPreview
	Metadata map[string]any
}

// Extract selects an ExtractMode for (contentType, raw) and produces the
// corresponding content/preview, per the size-threshold and line/char-cap
// rules. HTML content is converted to markdown first so both full and
// preview extraction operate on readable text rather than markup.
func Extract(contentType string, raw []byte) Result {
	if !textLikeContentTypes[contentType] {
		return Result{Mode: domain.ExtractNone, Metadata: map[string]any{"extractor": "none", "original_size": len(raw)}}
	}

	text := string(raw)
	extractor := "plain"
	if contentType == "text/html" {
		if converted, err := convertHTMLToMarkdown(text); err == nil {
			text = converted
			extractor = "html-to-markdown"
		}
	}

	if len(raw) <= fullExtractMaxBytes {
		return Result{
			Mode:    domain.ExtractFull,
			Content: text,
			Metadata: map[string]any{
				"extractor":     extractor,
				"truncated":     false,
				"original_size": len(raw),
			},
		}
	}

	preview, truncated := takePreview(text)
	return Result{
		Mode:    domain.ExtractPreview,
		Preview: preview,
		Metadata: map[string]any{
			"extractor":     extractor,
			"truncated":     truncated,
			"original_size": len(raw),
		},
	}
}

// takePreview returns the first previewMaxLines lines, further capped to
// previewMaxChars characters.
func takePreview(text string) (preview string, truncated bool) {
	lines := strings.SplitN(text, "\n", previewMaxLines+1)
	truncated = len(lines) > previewMaxLines
	if truncated {
		lines = lines[:previewMaxLines]
	}
	preview = strings.Join(lines, "\n")
	if len(preview) > previewMaxChars {
		preview = preview[:previewMaxChars]
		truncated = true
	}
	return preview, truncated
}

// ExtractTextFromHTML strips an HTML document down to its visible text,
// used when a tool result embeds raw HTML that must be summarized rather
// than preserved as markup (e.g. a RAG source's raw page content).
func ExtractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

// convertHTMLToMarkdown converts HTML content to markdown, dropping
// non-content elements (script/style/meta/link) first.
func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}

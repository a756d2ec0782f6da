package extract

import (
	"strings"
	"testing"

	"github.com/atlaschat/core/internal/domain"
)

func TestExtract_SmallTextFile_FullMode(t *testing.T) {
	r := Extract("text/plain", []byte("hello world"))
	if r.Mode != domain.ExtractFull {
		t.Errorf("expected ExtractFull, got %v", r.Mode)
	}
	if r.Content != "hello world" {
		t.Errorf("unexpected content: %q", r.Content)
	}
	if r.Metadata["truncated"] != false {
		t.Errorf("expected truncated=false, got %v", r.Metadata["truncated"])
	}
}

func TestExtract_LargeTextFile_PreviewMode(t *testing.T) {
	big := strings.Repeat("line\n", 20000)
	r := Extract("text/plain", []byte(big))
	if r.Mode != domain.ExtractPreview {
		t.Errorf("expected ExtractPreview, got %v", r.Mode)
	}
	if r.Metadata["truncated"] != true {
		t.Errorf("expected truncated=true, got %v", r.Metadata["truncated"])
	}
	if strings.Count(r.Preview, "\n") > previewMaxLines {
		t.Errorf("expected preview capped at %d lines", previewMaxLines)
	}
}

func TestExtract_BinaryContentType_NoneMode(t *testing.T) {
	r := Extract("application/octet-stream", []byte{0x00, 0x01, 0x02})
	if r.Mode != domain.ExtractNone {
		t.Errorf("expected ExtractNone for binary content, got %v", r.Mode)
	}
}

func TestExtract_HTML_ConvertsToMarkdown(t *testing.T) {
	r := Extract("text/html", []byte("<h1>Title</h1><p>body text</p>"))
	if r.Mode != domain.ExtractFull {
		t.Fatalf("expected ExtractFull for small HTML, got %v", r.Mode)
	}
	if !strings.Contains(r.Content, "Title") || !strings.Contains(r.Content, "body text") {
		t.Errorf("expected converted markdown to retain text content, got %q", r.Content)
	}
	if r.Metadata["extractor"] != "html-to-markdown" {
		t.Errorf("expected extractor=html-to-markdown, got %v", r.Metadata["extractor"])
	}
}

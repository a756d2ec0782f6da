package tool

import (
	"encoding/json"
	"strings"

	"github.com/atlaschat/core/internal/domain"
)

const (
	resultsSizeGuardBytes  = 8 * 1024
	metaDataSizeGuardBytes = 4 * 1024
)

// Normalize implements spec §4.5's "Result normalization": pick the raw
// result's structured mapping (structured_content, then data, then the
// first content[] entry whose text parses as a JSON object), extract results/
// meta_data/artifacts/display, and apply the size guards.
func Normalize(toolCallID string, raw RawResult) domain.ToolResult {
	structured := selectStructuredMapping(raw)

	result := domain.ToolResult{ToolCallID: toolCallID, Success: true}

	resultsValue, resultsKeySet := extractResults(structured)
	contentBytes, _ := json.Marshal(resultsValue)
	if len(contentBytes) > resultsSizeGuardBytes {
		summary := map[string]any{"results_summary": topLevelKeys(structured)}
		b, _ := json.Marshal(summary)
		result.Content = string(b)
	} else if resultsKeySet {
		result.Content = string(contentBytes)
	} else {
		result.Content = "{}"
	}

	if md := extractMetaData(structured); md != nil {
		mdBytes, _ := json.Marshal(md)
		if len(mdBytes) < metaDataSizeGuardBytes {
			result.MetaData = md
		} else {
			result.MetaData = map[string]any{"meta_data_truncated": true}
		}
	}

	result.Artifacts = extractArtifacts(structured, raw.Content)

	if display, ok := structured["display"].(map[string]any); ok {
		result.DisplayConfig = toDisplayConfig(display)
	}
	if result.DisplayConfig == nil && hasImageArtifact(result.Artifacts) {
		result.DisplayConfig = &domain.DisplayConfig{OpenCanvas: true, PrimaryFile: firstImageArtifact(result.Artifacts)}
	}

	return result
}

func selectStructuredMapping(raw RawResult) map[string]any {
	if len(raw.StructuredContent) > 0 {
		return raw.StructuredContent
	}
	if len(raw.Data) > 0 {
		return raw.Data
	}
	for _, item := range raw.Content {
		if strings.HasPrefix(strings.TrimSpace(item.Text), "{") {
			var m map[string]any
			if err := json.Unmarshal([]byte(item.Text), &m); err == nil {
				return m
			}
		}
	}
	return map[string]any{}
}

// extractResults returns structured["results"] (or legacy "result"); if
// neither is present, the whole mapping minus returned_file_contents
// becomes the results value, and resultsKeySet reports which case
// applied for the "absent -> whole mapping" fallback vs. an explicit key.
func extractResults(structured map[string]any) (any, bool) {
	if v, ok := structured["results"]; ok {
		return v, true
	}
	if v, ok := structured["result"]; ok {
		return v, true
	}
	fallback := make(map[string]any, len(structured))
	for k, v := range structured {
		if k == "returned_file_contents" {
			continue
		}
		fallback[k] = v
	}
	return fallback, len(fallback) > 0
}

func extractMetaData(structured map[string]any) map[string]any {
	for _, key := range []string{"meta_data", "meta-data", "metadata"} {
		if v, ok := structured[key].(map[string]any); ok {
			return v
		}
	}
	return nil
}

func extractArtifacts(structured map[string]any, content []ContentItem) []domain.Artifact {
	var artifacts []domain.Artifact
	if rawArtifacts, ok := structured["artifacts"].([]any); ok {
		for _, a := range rawArtifacts {
			m, ok := a.(map[string]any)
			if !ok {
				continue
			}
			name, nameOK := m["name"].(string)
			b64, b64OK := m["b64"].(string)
			if !nameOK || !b64OK {
				continue
			}
			artifacts = append(artifacts, domain.Artifact{
				Name:        name,
				B64:         b64,
				Mime:        stringField(m, "mime"),
				Description: stringField(m, "description"),
				Viewer:      stringField(m, "viewer"),
			})
		}
	}

	for i, item := range content {
		if item.Type != "image" || item.Data == "" || !strings.HasPrefix(item.MimeType, "image/") {
			continue
		}
		ext := strings.TrimPrefix(item.MimeType, "image/")
		artifacts = append(artifacts, domain.Artifact{
			Name:   "mcp_image_" + itoa(i) + "." + ext,
			B64:    item.Data,
			Mime:   item.MimeType,
			Viewer: "image",
		})
	}
	return artifacts
}

func hasImageArtifact(artifacts []domain.Artifact) bool {
	return firstImageArtifact(artifacts) != ""
}

func firstImageArtifact(artifacts []domain.Artifact) string {
	for _, a := range artifacts {
		if a.Viewer == "image" {
			return a.Name
		}
	}
	return ""
}

func toDisplayConfig(m map[string]any) *domain.DisplayConfig {
	return &domain.DisplayConfig{
		OpenCanvas:  boolField(m, "open_canvas"),
		PrimaryFile: stringField(m, "primary_file"),
		Mode:        stringField(m, "mode"),
		ViewerHint:  stringField(m, "viewer_hint"),
		Title:       stringField(m, "title"),
		URL:         stringField(m, "url"),
	}
}

func topLevelKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

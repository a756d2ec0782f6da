package tool

import "encoding/json"

// sensitiveKeys are the keys whose values get the tighter 1KB bloat
// threshold regardless of whether they look base64-ish (spec §4.5's
// base64-bloat sanitizer).
var sensitiveKeys = map[string]bool{
	"b64": true, "data": true, "base64": true, "image_data": true,
}

const sensitiveKeyMaxBytes = 1024

// SanitizeBase64Bloat walks content's JSON structure (falling back to a
// plain string check if it isn't valid JSON) and replaces any value that
// looks like base64 bloat — either an oversized base64-looking string
// anywhere, or an oversized string under a known binary-payload key —
// with a "<N bytes removed>" placeholder, so the LLM's context window
// never has to carry a tool result's raw image/file payload.
func SanitizeBase64Bloat(content string) string {
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		if isBase64ish(content) {
			return placeholderFor(len(content))
		}
		return content
	}
	sanitized := sanitizeValue(parsed, "")
	out, err := json.Marshal(sanitized)
	if err != nil {
		return content
	}
	return string(out)
}

func sanitizeValue(v any, key string) any {
	switch val := v.(type) {
	case string:
		if sensitiveKeys[key] && len(val) > sensitiveKeyMaxBytes {
			return placeholderFor(len(val))
		}
		if isBase64ish(val) {
			return placeholderFor(len(val))
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = sanitizeValue(v, k)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item, key)
		}
		return out
	default:
		return v
	}
}

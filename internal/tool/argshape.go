package tool

import (
	"net/url"
	"path"
	"strings"

	"github.com/atlaschat/core/internal/capability"
)

// ShapeArguments applies the context-injection rules of spec §4.5 in
// order: username injection, filename-to-signed-URL substitution, then
// schema-based property filtering.
func ShapeArguments(args map[string]any, schema *Schema, userEmail string, resolver FileResolver, issuer *capability.Issuer) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	if userEmail != "" && (schema.HasProperty("username") || schema == nil) {
		out["username"] = userEmail
	}

	injectFileURL(out, resolver, issuer, userEmail)

	return filterToSchema(out, schema)
}

// injectFileURL substitutes `filename`/`file_names` values with signed
// download URLs when the referenced file is known to the session's file
// store, preserving the original name(s) under original_filename /
// original_file_names (spec §4.5 rule 2).
func injectFileURL(args map[string]any, resolver FileResolver, issuer *capability.Issuer, userEmail string) {
	if resolver == nil || issuer == nil {
		return
	}

	if name, ok := args["filename"].(string); ok {
		if key, found := resolver.Resolve(name); found {
			if signedURL, err := issuer.Issue(userEmail, key); err == nil {
				args["original_filename"] = name
				args["filename"] = signedURL
				if _, exists := args["file_url"]; !exists {
					args["file_url"] = signedURL
				}
			}
		}
	}

	if names, ok := args["file_names"].([]any); ok {
		var originals []any
		var urls []any
		for _, n := range names {
			name, ok := n.(string)
			if !ok {
				continue
			}
			key, found := resolver.Resolve(name)
			if !found {
				urls = append(urls, name)
				continue
			}
			signedURL, err := issuer.Issue(userEmail, key)
			if err != nil {
				urls = append(urls, name)
				continue
			}
			originals = append(originals, name)
			urls = append(urls, signedURL)
		}
		if len(originals) > 0 {
			args["original_file_names"] = originals
			args["file_names"] = urls
			if _, exists := args["file_urls"]; !exists {
				args["file_urls"] = urls
			}
		}
	}
}

// filterToSchema keeps only the schema's declared property names. When
// schema is unavailable, it drops the original_*/file_url/file_urls keys
// injected above instead (spec §4.5 rule 3) — those are meaningless to a
// tool whose parameter list we can't see.
func filterToSchema(args map[string]any, schema *Schema) map[string]any {
	if schema == nil || len(schema.Properties) == 0 {
		out := make(map[string]any, len(args))
		for k, v := range args {
			if strings.HasPrefix(k, "original_") || k == "file_url" || k == "file_urls" {
				continue
			}
			out[k] = v
		}
		return out
	}
	out := make(map[string]any, len(schema.Properties))
	for k, v := range args {
		if schema.HasProperty(k) {
			out[k] = v
		}
	}
	return out
}

// SanitizeForDisplay reduces filename/file_names/file_url/file_urls
// values to a clean basename for the tool_start UI event (spec §4.5's
// UI-sanitization paragraph) — stripping query strings, URL paths, and
// any storage timestamp-hash prefix.
func SanitizeForDisplay(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch k {
		case "filename", "file_url":
			if s, ok := v.(string); ok {
				out[k] = sanitizeOne(s)
				continue
			}
		case "file_names", "file_urls":
			if list, ok := v.([]any); ok {
				cleaned := make([]any, 0, len(list))
				for _, item := range list {
					if s, ok := item.(string); ok {
						cleaned = append(cleaned, sanitizeOne(s))
					}
				}
				out[k] = cleaned
				continue
			}
		}
		out[k] = v
	}
	return out
}

func sanitizeOne(s string) string {
	if u, err := url.Parse(s); err == nil && u.Path != "" {
		s = u.Path
	} else if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	base := path.Base(s)
	if m := storagePrefixPattern.FindStringSubmatch(base); m != nil {
		base = m[1]
	}
	return base
}

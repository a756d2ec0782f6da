// Package authz implements the tool Authorization port (spec §4.9, C11):
// deciding which tools a session may call, and which calls require an
// approval round trip before dispatch.
package authz

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/bmatcuk/doublestar/v4"
)

// Policy is a per-session (or per-agent-config) authorization policy: a set
// of allowed tool-name patterns, a set of tool names that always require
// approval regardless of allow-listing, and a global force-approval flag
// that overrides everything (used for untrusted/incognito sessions).
type Policy struct {
	// AllowPatterns are doublestar glob patterns matched against fully
	// qualified tool names ("server:tool"). A tool is authorized if any
	// pattern matches.
	AllowPatterns []string
	// RequireApproval names tools (or patterns) that always need an
	// elicitation round trip before dispatch, even if allow-listed.
	RequireApproval []string
	// ForceApproval, when true, requires approval for every tool call
	// regardless of AllowPatterns/RequireApproval.
	ForceApproval bool
}

// DefaultPolicy authorizes everything without requiring approval — the
// permissive default used when no agent-specific policy is configured.
func DefaultPolicy() Policy {
	return Policy{AllowPatterns: []string{"*"}}
}

// IsAuthorized reports whether toolName (a fully qualified "server:tool"
// name) is permitted to run under p.
//
// Matching is longest-prefix-first: among all AllowPatterns that match,
// the longest one (fewest wildcard characters, i.e. most specific) wins.
// If no pattern matches exactly, a Levenshtein-distance fallback checks
// for a near match (distance <= 2) against the literal (non-glob) patterns,
// to tolerate small naming drift between a configured allow-list and the
// tool names an MCP server actually advertises (SPEC_FULL.md §5 item 2).
func (p Policy) IsAuthorized(toolName string) bool {
	if toolName == "canvas_canvas" {
		return true
	}
	best := matchLongestPrefix(p.AllowPatterns, toolName)
	if best != "" {
		return true
	}
	return levenshteinFallback(p.AllowPatterns, toolName)
}

// RequiresApproval reports whether toolName must go through the
// elicitation approval gate before dispatch.
func (p Policy) RequiresApproval(toolName string) bool {
	if p.ForceApproval {
		return true
	}
	for _, pattern := range p.RequireApproval {
		if matched, _ := doublestar.Match(pattern, toolName); matched {
			return true
		}
	}
	return false
}

// matchLongestPrefix returns the longest literal prefix, among patterns
// that glob-match name, with wildcard metacharacters stripped for length
// comparison — "server:file_*" beats "*" for "server:file_read" because
// its literal prefix ("server:file_") is longer.
func matchLongestPrefix(patterns []string, name string) string {
	type candidate struct {
		pattern string
		prefix  string
	}
	var matches []candidate
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, name); matched {
			matches = append(matches, candidate{pattern: pattern, prefix: literalPrefix(pattern)})
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Slice(matches, func(i, j int) bool { return len(matches[i].prefix) > len(matches[j].prefix) })
	return matches[0].pattern
}

// literalPrefix returns the portion of a glob pattern before its first
// wildcard metacharacter.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?[{"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// levenshteinFallback checks name against every non-glob (literal)
// pattern in patterns, authorizing on a close-enough match. This exists
// to tolerate drift between an operator's configured allow-list and the
// exact tool names a remote MCP server registers (e.g. a server renaming
// "send_email" to "send_mail" between versions).
func levenshteinFallback(patterns []string, name string) bool {
	const maxDistance = 2
	for _, pattern := range patterns {
		if strings.ContainsAny(pattern, "*?[{") {
			continue
		}
		if levenshtein.ComputeDistance(pattern, name) <= maxDistance {
			return true
		}
	}
	return false
}

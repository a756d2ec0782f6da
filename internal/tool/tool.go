// Package tool implements the Tool Executor (spec §4.5, C5) — the densest
// subsystem: argument shaping, approval gating, MCP dispatch with progress
// relay, result normalization, and base64-bloat sanitization. Execute
// never returns a Go error for a tool-level failure; it always produces a
// domain.ToolResult with success=false and an Error string instead (spec
// §4.5(g)).
package tool

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/atlaschat/core/internal/authz"
	"github.com/atlaschat/core/internal/capability"
	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/publisher"
)

// RawResult is what the MCP client returns before normalization — a
// grab-bag shape mirroring spec §6's "structured_content/data/content[]"
// tool client port contract.
type RawResult struct {
	StructuredContent map[string]any
	Data              map[string]any
	Content           []ContentItem
}

// ContentItem is one entry of a raw MCP result's content[] array.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ProgressFunc is the per-call progress callback threaded through
// dispatch (spec §4.5's "Dispatch" paragraph).
type ProgressFunc func(progress, total float64, message string)

// Schema is a resolved tool's JSON Schema, enough of it to drive argument
// shaping/filtering (spec §4.5's Argument shaping + UI-sanitization).
type Schema struct {
	Properties map[string]any // property name -> JSON Schema fragment
	Required   []string
}

// HasProperty reports whether name is a declared schema property. An
// empty/nil Schema (unavailable) treats every property as absent, per
// the "schema is unavailable" fallback rules in spec §4.5.
func (s *Schema) HasProperty(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Properties[name]
	return ok
}

// Client is the Tool client port (spec §6): schema lookup and dispatch to
// an MCP server. Implemented by internal/mcp's adapted client.
type Client interface {
	GetToolSchema(ctx context.Context, serverName, toolName string) (*Schema, error)
	ExecuteTool(ctx context.Context, serverName, toolName string, arguments map[string]any, progress ProgressFunc) (RawResult, error)
}

// FileResolver looks up a session's attached files by filename, returning
// the storage key needed to mint a signed download URL.
type FileResolver interface {
	Resolve(filename string) (storageKey string, ok bool)
}

// SessionFiles looks up one session's current file map by id. A Repository
// satisfies this trivially; kept as its own narrow interface so the tool
// package doesn't need to depend on the full Repository port for the one
// method it actually calls.
type SessionFiles interface {
	Files(sessionID string) (files map[string]*domain.FileRef, ok bool)
}

// Executor wires a Client, an authz.Policy, a capability.Issuer, and a
// publisher.Publisher into the full dispatch pipeline.
type Executor struct {
	Client   Client
	Policy   authz.Policy
	Issuer   *capability.Issuer
	Pub      publisher.Publisher
	Resolver FileResolver

	// KnownServers names every configured MCP server, used to split a
	// fully qualified "<server>_<tool>" name on the longest matching
	// server prefix instead of naively on the first underscore, so a
	// server whose own name contains an underscore still dispatches to
	// the right tool (spec §4.11; mirrors authz.Policy.IsAuthorized's own
	// longest-prefix preference). A nil/empty list falls back to
	// splitting on the first underscore.
	KnownServers []string

	// Sessions, when set, resolves filename arguments against the calling
	// session's own files (keyed by the sessionID Execute receives)
	// instead of the static Resolver above — the Tool Executor is a
	// process-wide singleton but a filename reference is always relative
	// to one session, so a single fixed Resolver can only ever be correct
	// for one session at a time without this.
	Sessions SessionFiles

	active sync.Map // sessionID (string) -> publisher.Publisher, set by Bind
}

// Bind registers pub as the publisher Execute uses for calls made on
// behalf of sessionID, for as long as the caller holds the returned
// unbind function un-invoked. The Tool Executor is a single process-wide
// instance shared by every concurrent session (spec §5: distinct
// sessions run in parallel), but each request's tool events must reach
// that request's own transport — so the orchestrator binds the request's
// publisher around each mode runner call instead of the Executor holding
// one fixed Pub for its whole lifetime.
func (e *Executor) Bind(sessionID string, pub publisher.Publisher) (unbind func()) {
	e.active.Store(sessionID, pub)
	return func() { e.active.Delete(sessionID) }
}

// pubFor returns the publisher bound to sessionID, falling back to the
// static Pub field (set directly by tests, or a single-session CLI run
// that never calls Bind at all).
func (e *Executor) pubFor(sessionID string) publisher.Publisher {
	if v, ok := e.active.Load(sessionID); ok {
		return v.(publisher.Publisher)
	}
	return e.Pub
}

// fileResolverFunc adapts a plain function to FileResolver.
type fileResolverFunc func(filename string) (string, bool)

func (f fileResolverFunc) Resolve(filename string) (string, bool) { return f(filename) }

// resolverFor picks the per-session resolver when e.Sessions is wired,
// falling back to the static e.Resolver otherwise (e.g. tests, or a
// single-session CLI run where there is only ever one session anyway).
func (e *Executor) resolverFor(sessionID string) FileResolver {
	if e.Sessions == nil {
		return e.Resolver
	}
	files, ok := e.Sessions.Files(sessionID)
	if !ok {
		return e.Resolver
	}
	return fileResolverFunc(func(filename string) (string, bool) {
		ref, ok := files[filename]
		if !ok {
			return "", false
		}
		return ref.Key, true
	})
}

// storagePrefixPattern matches a "<timestamp>_<hash>_" prefix prepended
// to a stored filename (spec §4.5 UI-sanitization).
var storagePrefixPattern = regexp.MustCompile(`^[0-9]{9,}_[0-9a-f]{6,}_(.+)$`)

// userRejectedContent is the sentinel content returned when a user
// rejects an approval-gated tool call.
const userRejectedContent = "User rejected this tool call."

// Execute runs the full pipeline for one tool call: parse arguments,
// shape them, gate on approval, dispatch, normalize, sanitize, and emit
// the UI notifications — returning a ToolResult that never represents a
// Go error.
func (e *Executor) Execute(ctx context.Context, call domain.ToolCall, sessionID, userEmail string) domain.ToolResult {
	pub := e.pubFor(sessionID)
	if call.Name == canvasToolName {
		return e.executeCanvas(ctx, call, pub)
	}

	serverName, toolName := SplitQualifiedName(call.Name, e.KnownServers)
	qualified := call.Name

	schema, _ := e.Client.GetToolSchema(ctx, serverName, toolName)
	resolver := e.resolverFor(sessionID)

	args := ParseArguments(call.Arguments)
	args = ShapeArguments(args, schema, userEmail, resolver, e.Issuer)

	uiArgs := SanitizeForDisplay(args)
	pub.PublishToolStart(ctx, call.ID, qualified, serverName, uiArgs)

	if e.Policy.RequiresApproval(qualified) {
		respCh := pub.PublishElicitationRequest(ctx, "", call.ID, qualified, "Approve tool call?", schemaSummary(schema))
		resp := <-respCh
		if resp.Rejected {
			result := domain.ToolResult{ToolCallID: call.ID, Success: false, Content: userRejectedContent, Error: "rejected_by_user"}
			pub.PublishToolComplete(ctx, call.ID, qualified, false, result.Content)
			return result
		}
		if resp.EditedArguments != nil {
			args = ShapeArguments(resp.EditedArguments, schema, userEmail, resolver, e.Issuer)
		}
	}

	if !e.Policy.IsAuthorized(qualified) {
		err := domain.NewToolAuthorizationError(qualified)
		pub.PublishToolError(ctx, call.ID, qualified, err.Error())
		return domain.ToolResult{ToolCallID: call.ID, Success: false, Error: err.Error(), Content: err.Error()}
	}

	progress := func(progress, total float64, message string) {
		e.relayProgress(ctx, pub, call.ID, qualified, progress, total, message)
	}

	raw, err := e.Client.ExecuteTool(ctx, serverName, toolName, args, progress)
	if err != nil {
		pub.PublishToolError(ctx, call.ID, qualified, err.Error())
		return domain.ToolResult{ToolCallID: call.ID, Success: false, Error: err.Error(), Content: err.Error()}
	}

	result := Normalize(call.ID, raw)
	result.Content = SanitizeBase64Bloat(result.Content)
	pub.PublishToolComplete(ctx, call.ID, qualified, true, result.Content)
	return result
}

// canvasToolName is the always-authorized pseudo-tool that renders
// content directly into the client's canvas without any MCP dispatch
// (spec §4.7).
const canvasToolName = "canvas_canvas"

func (e *Executor) executeCanvas(ctx context.Context, call domain.ToolCall, pub publisher.Publisher) domain.ToolResult {
	args := ParseArguments(call.Arguments)
	content, _ := args["content"].(string)

	pub.PublishToolStart(ctx, call.ID, canvasToolName, "", SanitizeForDisplay(args))
	pub.PublishCanvasContent(ctx, content, "text/html")
	result := domain.ToolResult{ToolCallID: call.ID, Success: true, Content: "Content displayed in canvas."}
	pub.PublishToolComplete(ctx, call.ID, canvasToolName, true, result.Content)
	return result
}

// relayProgress publishes tool_progress, and additionally parses any
// MCP_UPDATE: prefixed message into its own event (spec §4.5 Dispatch).
func (e *Executor) relayProgress(ctx context.Context, pub publisher.Publisher, toolCallID, toolName string, progress, total float64, message string) {
	pub.PublishToolProgress(ctx, toolCallID, toolName, progress, total, message)

	const prefix = "MCP_UPDATE:"
	if !strings.HasPrefix(message, prefix) {
		return
	}
	var update struct {
		Type      string          `json:"type"`
		Content   string          `json:"content"`
		Message   string          `json:"message"`
		Artifacts json.RawMessage `json:"artifacts"`
	}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(message, prefix)), &update); err != nil {
		return
	}
	switch update.Type {
	case "canvas_update":
		pub.PublishCanvasContent(ctx, update.Content, "text/html")
	case "system_message":
		pub.PublishIntermediateUpdate(ctx, "system_message", update.Message)
	case "artifacts":
		pub.PublishIntermediateUpdate(ctx, "progress_artifacts", update.Artifacts)
	}
}

// SplitQualifiedName splits a fully qualified "<server>_<tool>" name into
// its server and tool parts. It prefers the longest knownServers entry
// that is an exact prefix of name (so a server whose own name contains an
// underscore, e.g. "file_store", is not mis-split into server "file" /
// tool "store_read"), falling back to splitting on the first underscore
// when knownServers is empty or none of them match.
func SplitQualifiedName(name string, knownServers []string) (serverName, toolName string) {
	best := ""
	for _, server := range knownServers {
		prefix := server + "_"
		if len(prefix) > len(best) && strings.HasPrefix(name, prefix) {
			best = prefix
		}
	}
	if best != "" {
		return strings.TrimSuffix(best, "_"), name[len(best):]
	}

	parts := strings.SplitN(name, "_", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", name
}

func schemaSummary(s *Schema) map[string]any {
	if s == nil {
		return nil
	}
	return map[string]any{"properties": s.Properties, "required": s.Required}
}

// ParseArguments parses a ToolCall's Arguments field, which may arrive as
// a JSON string (most LLM providers) or already as a map (§4.5: "on parse
// failure, use {}").
func ParseArguments(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return map[string]any{}
		}
		return m
	case nil:
		return map[string]any{}
	default:
		return map[string]any{}
	}
}

func isBase64ish(s string) bool {
	if len(s) <= 10_000 {
		return false
	}
	for i := 0; i < 200 && i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '+' || c == '/' || c == '=') {
			return false
		}
	}
	return true
}

func placeholderFor(n int) string {
	return "<" + strconv.Itoa(n) + " bytes removed>"
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atlaschat/core/internal/tool"
)

// ToolClientAdapter implements the Tool Executor's Client port (spec §6,
// internal/tool.Client) over the raw SDK-backed Client above — the "MCP
// tool transport" spec §1 explicitly calls out as an external
// collaborator this core only talks to through a narrow interface.
//
// The underlying transport's ExecuteTool is a single synchronous
// round-trip (spec §1's transport boundary), so the progress callback
// required by tool.Client's signature is accepted but never invoked here;
// a transport that exposes MCP progress notifications would wire it
// through Client.ExecuteTool instead.
type ToolClientAdapter struct {
	Client *Client
}

// NewToolClientAdapter wraps client to satisfy tool.Client.
func NewToolClientAdapter(client *Client) *ToolClientAdapter {
	return &ToolClientAdapter{Client: client}
}

// GetToolSchema resolves a tool's JSON Schema from the client's cached
// tool list, matching on the "<server>_<tool>" qualified name the way
// Client.Tools() already builds it.
func (a *ToolClientAdapter) GetToolSchema(ctx context.Context, serverName, toolName string) (*tool.Schema, error) {
	qualified := sanitizeToolName(serverName) + "_" + sanitizeToolName(toolName)
	for _, t := range a.Client.Tools() {
		if t.Name != qualified {
			continue
		}
		return schemaFromInputSchema(t.InputSchema), nil
	}
	return nil, fmt.Errorf("mcp: tool schema not found: %s", qualified)
}

// ExecuteTool dispatches through the underlying Client and wraps its
// plain-text result as a tool.RawResult content item, letting
// tool.Normalize's content[]-text-as-JSON fallback (spec §4.5) do the
// structured extraction.
func (a *ToolClientAdapter) ExecuteTool(ctx context.Context, serverName, toolName string, arguments map[string]any, progress tool.ProgressFunc) (tool.RawResult, error) {
	qualified := sanitizeToolName(serverName) + "_" + sanitizeToolName(toolName)
	argsJSON, err := json.Marshal(arguments)
	if err != nil {
		return tool.RawResult{}, fmt.Errorf("mcp: marshal arguments for %s: %w", qualified, err)
	}

	output, err := a.Client.ExecuteTool(ctx, qualified, argsJSON)
	if err != nil {
		return tool.RawResult{}, err
	}

	return tool.RawResult{Content: []tool.ContentItem{{Type: "text", Text: output}}}, nil
}

// schemaFromInputSchema parses an MCP tool's raw JSON Schema into the
// subset tool.Schema needs for argument shaping/filtering.
func schemaFromInputSchema(raw json.RawMessage) *tool.Schema {
	if len(raw) == 0 {
		return nil
	}
	var parsed struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	return &tool.Schema{Properties: parsed.Properties, Required: parsed.Required}
}

var _ tool.Client = (*ToolClientAdapter)(nil)

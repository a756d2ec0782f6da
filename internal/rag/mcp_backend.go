package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atlaschat/core/internal/domain"
)

// MCPClient is the subset of internal/mcp.Client's method set a RAG
// backend needs: listing the server's registered tools and invoking one.
// Kept as a narrow local interface so this package doesn't import the
// transport-heavy internal/mcp package directly.
type MCPClient interface {
	ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) (string, error)
}

// MCPBackend wraps a single MCP server that exposes retrieval as tools —
// a conventional `discover_sources` tool and a `query` tool — letting an
// MCP-hosted corpus participate as a RAG backend alongside HTTP and
// embedded ones (spec §9: "HTTP-only vs. MCP-wrapped RAG" variants are
// selected at construction time).
type MCPBackend struct {
	serverName       string
	client           MCPClient
	discoverToolName string
	queryToolName    string
}

// NewMCPBackend wires an MCP-hosted RAG backend. discoverTool/queryTool
// default to "discover_sources"/"query" when left empty.
func NewMCPBackend(serverName string, client MCPClient, discoverTool, queryTool string) *MCPBackend {
	if discoverTool == "" {
		discoverTool = "discover_sources"
	}
	if queryTool == "" {
		queryTool = "query"
	}
	return &MCPBackend{serverName: serverName, client: client, discoverToolName: discoverTool, queryToolName: queryTool}
}

func (b *MCPBackend) ServerName() string { return b.serverName }

func (b *MCPBackend) DiscoverSources(ctx context.Context, user, compliance string) (ServerSources, error) {
	args, err := json.Marshal(map[string]any{"user": user, "compliance": compliance})
	if err != nil {
		return ServerSources{}, err
	}
	raw, err := b.client.ExecuteTool(ctx, b.discoverToolName, args)
	if err != nil {
		return ServerSources{}, fmt.Errorf("rag: mcp backend %s discovery failed: %w", b.serverName, err)
	}

	var payload struct {
		DisplayName     string       `json:"displayName"`
		Icon            string       `json:"icon"`
		ComplianceLevel string       `json:"complianceLevel"`
		Sources         []DataSource `json:"sources"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return ServerSources{}, fmt.Errorf("rag: mcp backend %s returned unparseable discovery payload: %w", b.serverName, err)
	}
	return ServerSources{
		Server:          b.serverName,
		DisplayName:     payload.DisplayName,
		Icon:            payload.Icon,
		ComplianceLevel: payload.ComplianceLevel,
		Sources:         payload.Sources,
	}, nil
}

func (b *MCPBackend) Query(ctx context.Context, sourceID, user string, messages []domain.Message) (Response, error) {
	args, err := json.Marshal(map[string]any{"source": sourceID, "user": user, "messages": messages})
	if err != nil {
		return Response{}, err
	}
	raw, err := b.client.ExecuteTool(ctx, b.queryToolName, args)
	if err != nil {
		return Response{}, fmt.Errorf("rag: mcp backend %s query failed: %w", b.serverName, err)
	}

	var payload struct {
		Content    string         `json:"content"`
		Metadata   map[string]any `json:"metadata,omitempty"`
		IsComplete bool           `json:"is_completion"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Some MCP servers return bare text rather than the RAGResponse
		// shape; treat the whole payload as content in that case.
		return Response{Content: raw, IsComplete: true}, nil
	}
	return Response{Content: payload.Content, Metadata: payload.Metadata, IsComplete: payload.IsComplete}, nil
}

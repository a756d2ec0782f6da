package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestToolClientAdapter_ExecuteTool_NotConnected exercises the adapter's
// error path when no server is registered under the requested name — the
// same "no server found for tool" failure the underlying Client.ExecuteTool
// surfaces, just routed through the tool.Client signature.
func TestToolClientAdapter_ExecuteTool_NotConnected(t *testing.T) {
	client := NewClient()
	defer client.Close()

	adapter := NewToolClientAdapter(client)
	_, err := adapter.ExecuteTool(context.Background(), "calculator", "sum", map[string]any{"numbers": []int{1, 2, 3}}, nil)
	assert.Error(t, err)
}

// TestToolClientAdapter_ExecuteTool_EncodesArgumentsBeforeDispatch verifies
// the adapter marshals arguments without error before handing the call to
// the underlying Client, for a server that is registered but has no live
// session.
func TestToolClientAdapter_ExecuteTool_EncodesArgumentsBeforeDispatch(t *testing.T) {
	client := NewClient()
	defer client.Close()
	client.servers["calculator"] = &mcpServer{
		name:   "calculator",
		status: StatusConnected,
		tools: []Tool{
			{Name: "sum", Description: "adds numbers"},
		},
	}

	adapter := NewToolClientAdapter(client)

	// With no live session the call still fails: the qualified-name lookup
	// finds the server, and the call then stops at "server not connected"
	// rather than at a marshaling error, proving arguments were encoded
	// correctly first.
	_, err := adapter.ExecuteTool(context.Background(), "calculator", "sum", map[string]any{"numbers": []int{1, 2, 3}}, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "marshal arguments")
}

func TestToolClientAdapter_GetToolSchema_QualifiesName(t *testing.T) {
	client := NewClient()
	defer client.Close()
	client.servers["calculator"] = &mcpServer{
		name:   "calculator",
		status: StatusConnected,
		tools: []Tool{
			{
				Name:        "sum",
				Description: "adds numbers",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"numbers":{"type":"array"}}}`),
			},
		},
	}

	adapter := NewToolClientAdapter(client)
	schema, err := adapter.GetToolSchema(context.Background(), "calculator", "sum")
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Contains(t, schema.Properties, "numbers")
}

package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/atlaschat/core/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolClientAdapter_ImplementsInterface(t *testing.T) {
	var _ tool.Client = (*ToolClientAdapter)(nil)
}

func TestToolClientAdapter_GetToolSchema(t *testing.T) {
	client := NewClient()
	defer client.Close()
	client.servers["calc"] = &mcpServer{
		name:   "calc",
		status: StatusConnected,
		tools: []Tool{
			{
				Name:        "sum",
				Description: "adds numbers",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"numbers":{"type":"array"}},"required":["numbers"]}`),
			},
		},
	}

	adapter := NewToolClientAdapter(client)
	schema, err := adapter.GetToolSchema(context.Background(), "calc", "sum")
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Contains(t, schema.Properties, "numbers")
	assert.Equal(t, []string{"numbers"}, schema.Required)
}

func TestToolClientAdapter_GetToolSchema_NotFound(t *testing.T) {
	client := NewClient()
	defer client.Close()

	adapter := NewToolClientAdapter(client)
	_, err := adapter.GetToolSchema(context.Background(), "calc", "missing")
	assert.Error(t, err)
}

func TestSchemaFromInputSchema(t *testing.T) {
	tests := []struct {
		name           string
		schema         json.RawMessage
		expectNil      bool
		expectedProps  []string
		expectedReqLen int
	}{
		{
			name:          "object schema",
			schema:        json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
			expectedProps: []string{"name"},
		},
		{
			name:      "empty",
			schema:    json.RawMessage(``),
			expectNil: true,
		},
		{
			name:      "invalid",
			schema:    json.RawMessage(`invalid`),
			expectNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := schemaFromInputSchema(tt.schema)
			if tt.expectNil {
				assert.Nil(t, schema)
				return
			}
			require.NotNil(t, schema)
			for _, p := range tt.expectedProps {
				assert.Contains(t, schema.Properties, p)
			}
		})
	}
}

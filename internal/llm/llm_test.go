package llm

import (
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/atlaschat/core/internal/domain"
)

func TestToEinoMessages_PrependsRAGContextAsSystemMessage(t *testing.T) {
	messages := []domain.Message{domain.NewMessage(domain.RoleUser, "what's the weather?")}
	out := toEinoMessages(messages, "forecast: sunny")
	if len(out) != 2 {
		t.Fatalf("expected 2 messages (system + user), got %d", len(out))
	}
	if out[0].Role != schema.System {
		t.Errorf("expected first message to be system, got %v", out[0].Role)
	}
}

func TestToEinoMessages_NoRAGContextPassesThrough(t *testing.T) {
	messages := []domain.Message{domain.NewMessage(domain.RoleUser, "hi")}
	out := toEinoMessages(messages, "")
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	if out[0].Role != schema.User {
		t.Errorf("expected user role, got %v", out[0].Role)
	}
}

func TestToEinoTools_ConvertsJSONSchemaParameters(t *testing.T) {
	tools := []ToolSpec{{
		Name:        "read_file",
		Description: "reads a file",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "file path"},
			},
			"required": []any{"path"},
		},
	}}
	out := toEinoTools(tools)
	if len(out) != 1 || out[0].Name != "read_file" {
		t.Fatalf("expected one tool named read_file, got %+v", out)
	}
}

func TestArgumentsToJSON_PassesThroughExistingString(t *testing.T) {
	s, err := argumentsToJSON(`{"a":1}`)
	if err != nil || s != `{"a":1}` {
		t.Errorf("expected passthrough, got %q, %v", s, err)
	}
}

func TestArgumentsToJSON_MarshalsMap(t *testing.T) {
	s, err := argumentsToJSON(map[string]any{"a": 1})
	if err != nil || s != `{"a":1}` {
		t.Errorf("expected marshaled map, got %q, %v", s, err)
	}
}

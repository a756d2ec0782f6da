// Package llm implements the LLM Caller port (spec §4.6/§6, C7): plain,
// with-tools, with-RAG, and with-RAG-and-tools entry points in both
// blocking and streaming forms, wrapping an underlying Eino ChatModel with
// retry/backoff. The provider adapter itself (which vendor SDK backs a
// given model) is the out-of-scope "external collaborator" named in spec
// §1 — this package is the in-scope port plus one concrete Eino-backed
// implementation of it.
package llm

import (
	"context"
	"encoding/json"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/streaming"
)

// ToolSpec is a tool definition offered to the LLM, converted from an MCP
// tool schema by the Tool Executor.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// Response is the result of a non-streaming call: text content plus any
// tool calls the model requested.
type Response struct {
	Content   string
	ToolCalls []domain.ToolCall
}

// Caller is the LLM Caller port.
type Caller interface {
	CallPlain(ctx context.Context, model string, messages []domain.Message, temperature float64) (Response, error)
	StreamPlain(ctx context.Context, model string, messages []domain.Message, temperature float64) streaming.TokenSource

	CallWithTools(ctx context.Context, model string, messages []domain.Message, tools []ToolSpec, temperature float64) (Response, error)
	StreamWithTools(ctx context.Context, model string, messages []domain.Message, tools []ToolSpec, temperature float64) (streaming.TokenSource, func() Response)

	CallWithRAG(ctx context.Context, model string, messages []domain.Message, ragContext string, temperature float64) (Response, error)
	StreamWithRAG(ctx context.Context, model string, messages []domain.Message, ragContext string, temperature float64) streaming.TokenSource

	CallWithRAGAndTools(ctx context.Context, model string, messages []domain.Message, ragContext string, tools []ToolSpec, temperature float64) (Response, error)
	StreamWithRAGAndTools(ctx context.Context, model string, messages []domain.Message, ragContext string, tools []ToolSpec, temperature float64) (streaming.TokenSource, func() Response)
}

// ChatModelResolver returns the Eino chat model backing a given model ID,
// so one Caller can span multiple providers/models behind a single
// registry lookup (grounded on the teacher's internal/provider.Registry).
type ChatModelResolver func(modelID string) (model.ToolCallingChatModel, error)

// toEinoMessages converts domain messages to Eino's schema.Message,
// folding RAG context in as a synthetic leading system message when
// present (grounded on the teacher's provider.ConvertToEinoMessages).
func toEinoMessages(messages []domain.Message, ragContext string) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages)+1)
	if ragContext != "" {
		out = append(out, &schema.Message{Role: schema.System, Content: "Relevant context:\n" + ragContext})
	}
	for _, m := range messages {
		role := schema.Assistant
		switch m.Role {
		case domain.RoleUser:
			role = schema.User
		case domain.RoleSystem:
			role = schema.System
		case domain.RoleTool:
			role = schema.Tool
		}
		em := &schema.Message{Role: role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			args, _ := argumentsToJSON(tc.Arguments)
			em.ToolCalls = append(em.ToolCalls, schema.ToolCall{
				ID:       tc.ID,
				Function: schema.FunctionCall{Name: tc.Name, Arguments: args},
			})
		}
		out = append(out, em)
	}
	return out
}

func toEinoTools(tools []ToolSpec) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		params := make(map[string]*schema.ParameterInfo)
		if props, ok := t.Parameters["properties"].(map[string]any); ok {
			required := map[string]bool{}
			if req, ok := t.Parameters["required"].([]any); ok {
				for _, r := range req {
					if s, ok := r.(string); ok {
						required[s] = true
					}
				}
			}
			for name, raw := range props {
				prop, _ := raw.(map[string]any)
				params[name] = &schema.ParameterInfo{
					Type:     jsonSchemaType(prop["type"]),
					Desc:     stringOr(prop["description"]),
					Required: required[name],
				}
			}
		}
		result[i] = &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

func jsonSchemaType(v any) schema.DataType {
	switch stringOr(v) {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

// fromEinoResponse converts a terminal Eino message into Response.
func fromEinoResponse(msg *schema.Message) Response {
	r := Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		r.ToolCalls = append(r.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Type:      "function",
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return r
}

// tokenSourceFromEino adapts an Eino StreamReader into the streaming
// package's iter.Seq2 token source, additionally threading the
// accumulating tool-call builder so StreamWithTools can expose a
// deferred terminal Response once the source is exhausted.
func tokenSourceFromEino(reader *schema.StreamReader[*schema.Message], onToolCalls func([]schema.ToolCall)) streaming.TokenSource {
	return func(yield func(string, error) bool) {
		defer reader.Close()
		var toolCalls []schema.ToolCall
		for {
			msg, err := reader.Recv()
			if err != nil {
				if isEOF(err) {
					if onToolCalls != nil {
						onToolCalls(toolCalls)
					}
					return
				}
				yield("", err)
				return
			}
			if len(msg.ToolCalls) > 0 {
				toolCalls = append(toolCalls, msg.ToolCalls...)
			}
			if msg.Content != "" {
				if !yield(msg.Content, nil) {
					return
				}
			}
		}
	}
}

func isEOF(err error) bool {
	return err == io.EOF
}

// argumentsToJSON renders a ToolCall's arguments (which may already be a
// JSON string, or a map) to the JSON string Eino's FunctionCall expects.
func argumentsToJSON(args any) (string, error) {
	if s, ok := args.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(args)
	return string(b), err
}

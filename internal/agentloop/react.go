package agentloop

import (
	"context"
	"strings"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/tool"
)

// ReActStrategy implements the classic Reason -> Act -> Observe loop
// (spec §4.8). Each step asks the model to reason and optionally call a
// tool; a response containing finalAnswerMarker ends the loop.
type ReActStrategy struct{}

func (ReActStrategy) Name() string { return "react" }

func (s ReActStrategy) Run(ctx context.Context, caller llm.Caller, executor *tool.Executor, relay Relay, params RunParams) (domain.AgentResult, error) {
	emitStart(ctx, relay, s.Name(), params.MaxSteps)
	doomLoop.Clear(params.Context.SessionID)

	tools := buildToolSpecs(ctx, executor, params.SelectedTools)
	transcript := append([]domain.Message{}, params.Messages...)

	for step := 1; step <= params.MaxSteps; step++ {
		emitTurnStart(ctx, relay, step)

		resp, err := caller.CallWithTools(ctx, params.Model, transcript, tools, params.Temperature)
		if err != nil {
			relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentError, Payload: map[string]any{"error": err.Error()}})
			return domain.AgentResult{}, err
		}

		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentReason, Payload: map[string]any{"content": resp.Content, "step": step}})

		if answer, ok := extractFinalAnswer(resp.Content); ok {
			emitCompletion(ctx, relay, step)
			return s.finish(ctx, relay, params, answer, step)
		}

		if len(resp.ToolCalls) == 0 {
			// No tool call and no final-answer marker: treat the reasoning
			// content itself as an implicit observation and keep going.
			transcript = append(transcript, domain.Message{Role: domain.RoleAssistant, Content: resp.Content})
			continue
		}

		assistantMsg := domain.Message{Role: domain.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
		transcript = append(transcript, assistantMsg)

		doomLooped := false
		for _, call := range resp.ToolCalls {
			if doomLoop.Check(params.Context.SessionID, call.Name, call.Arguments) {
				relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentError, Payload: map[string]any{"error": "doom loop detected: repeated identical tool call", "tool_name": call.Name}})
				doomLooped = true
				break
			}

			result := dispatchToolCall(ctx, executor, relay, call, params.Context.SessionID, params.Context.UserEmail)
			transcript = append(transcript, domain.Message{Role: domain.RoleTool, Content: result.Content, ToolCallID: call.ID})
			relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentObserve, Payload: map[string]any{"tool_call_id": call.ID, "content": result.Content}})
		}
		if doomLooped {
			break
		}
	}

	doomLoop.Clear(params.Context.SessionID)
	return forcedSummarization(ctx, caller, params, relay, transcript)
}

func (s ReActStrategy) finish(ctx context.Context, relay Relay, params RunParams, answer string, step int) (domain.AgentResult, error) {
	if params.Streaming {
		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentTokenStream, Payload: map[string]any{"token": answer, "is_first": true, "is_last": false}})
		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentTokenStream, Payload: map[string]any{"token": "", "is_first": false, "is_last": true}})
	}
	return domain.AgentResult{FinalAnswer: answer, Steps: step}, nil
}

// extractFinalAnswer reports whether content carries the ReAct
// termination marker and returns the trailing answer text.
func extractFinalAnswer(content string) (string, bool) {
	idx := strings.Index(strings.ToUpper(content), finalAnswerMarker)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(content[idx+len(finalAnswerMarker):]), true
}

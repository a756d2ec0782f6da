package agentloop

import (
	"context"
	"encoding/json"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/tool"
)

const finishedToolName = "finished"

var finishedToolSpec = llm.ToolSpec{
	Name:        finishedToolName,
	Description: "Call this when you have the final answer, instead of any other tool.",
	Parameters:  reflectSchema[finishedArgs](),
}

// ActStrategy is a tool-only loop: the model must choose a tool every
// step, with a synthetic "finished" control tool standing in for a plain
// text answer (spec §4.8). The underlying Caller port has no tool_choice
// parameter to force selection server-side, so forcing is advisory here —
// the prompt and tool list are built as if tool_choice="required", and a
// step producing no tool call is treated as an implicit continue rather
// than a hard failure.
type ActStrategy struct{}

func (ActStrategy) Name() string { return "act" }

func (s ActStrategy) Run(ctx context.Context, caller llm.Caller, executor *tool.Executor, relay Relay, params RunParams) (domain.AgentResult, error) {
	emitStart(ctx, relay, s.Name(), params.MaxSteps)
	doomLoop.Clear(params.Context.SessionID)

	tools := append(buildToolSpecs(ctx, executor, params.SelectedTools), finishedToolSpec)
	transcript := append([]domain.Message{}, params.Messages...)

	for step := 1; step <= params.MaxSteps; step++ {
		emitTurnStart(ctx, relay, step)

		resp, err := caller.CallWithTools(ctx, params.Model, transcript, tools, params.Temperature)
		if err != nil {
			relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentError, Payload: map[string]any{"error": err.Error()}})
			return domain.AgentResult{}, err
		}

		if len(resp.ToolCalls) == 0 {
			transcript = append(transcript, domain.Message{Role: domain.RoleAssistant, Content: resp.Content})
			continue
		}

		call := resp.ToolCalls[0]
		if call.Name == finishedToolName {
			answer := finishedAnswer(call.Arguments)
			emitCompletion(ctx, relay, step)
			return s.finish(ctx, relay, params, answer, step)
		}

		if doomLoop.Check(params.Context.SessionID, call.Name, call.Arguments) {
			relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentError, Payload: map[string]any{"error": "doom loop detected: repeated identical tool call", "tool_name": call.Name}})
			break
		}

		transcript = append(transcript, domain.Message{Role: domain.RoleAssistant, Content: resp.Content, ToolCalls: []domain.ToolCall{call}})
		result := dispatchToolCall(ctx, executor, relay, call, params.Context.SessionID, params.Context.UserEmail)
		transcript = append(transcript, domain.Message{Role: domain.RoleTool, Content: result.Content, ToolCallID: call.ID})
	}

	doomLoop.Clear(params.Context.SessionID)
	return forcedSummarization(ctx, caller, params, relay, transcript)
}

func (s ActStrategy) finish(ctx context.Context, relay Relay, params RunParams, answer string, step int) (domain.AgentResult, error) {
	if params.Streaming {
		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentTokenStream, Payload: map[string]any{"token": answer, "is_first": true, "is_last": false}})
		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentTokenStream, Payload: map[string]any{"token": "", "is_first": false, "is_last": true}})
	}
	return domain.AgentResult{FinalAnswer: answer, Steps: step}, nil
}

func finishedAnswer(rawArgs any) string {
	var args finishedArgs
	raw, ok := rawArgs.(string)
	if !ok {
		b, err := json.Marshal(rawArgs)
		if err != nil {
			return ""
		}
		raw = string(b)
	}
	_ = json.Unmarshal([]byte(raw), &args)
	return args.FinalAnswer
}

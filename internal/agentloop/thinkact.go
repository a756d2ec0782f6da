package agentloop

import (
	"context"
	"encoding/json"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/tool"
)

const thinkToolName = "think"

var thinkToolSpec = llm.ToolSpec{
	Name:        thinkToolName,
	Description: "Record your reasoning for this step; set finish=true once the user's question is fully answered.",
	Parameters:  reflectSchema[thinkArgs](),
}

// ThinkActStrategy interleaves a "think" tool-call, which carries the
// loop's finish/continue decision, with a single user-tool call per step
// (spec §4.8).
type ThinkActStrategy struct{}

func (ThinkActStrategy) Name() string { return "think-act" }

func (s ThinkActStrategy) Run(ctx context.Context, caller llm.Caller, executor *tool.Executor, relay Relay, params RunParams) (domain.AgentResult, error) {
	emitStart(ctx, relay, s.Name(), params.MaxSteps)

	actionTools := buildToolSpecs(ctx, executor, params.SelectedTools)
	transcript := append([]domain.Message{}, params.Messages...)

	for step := 1; step <= params.MaxSteps; step++ {
		emitTurnStart(ctx, relay, step)

		thinkResp, err := caller.CallWithTools(ctx, params.Model, transcript, []llm.ToolSpec{thinkToolSpec}, params.Temperature)
		if err != nil {
			relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentError, Payload: map[string]any{"error": err.Error()}})
			return domain.AgentResult{}, err
		}

		think, ok := findThinkCall(thinkResp.ToolCalls)
		if !ok {
			// Model didn't call think; treat its content as the reasoning
			// trace and keep going rather than failing the whole loop.
			relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentReason, Payload: map[string]any{"content": thinkResp.Content, "step": step}})
			transcript = append(transcript, domain.Message{Role: domain.RoleAssistant, Content: thinkResp.Content})
			continue
		}

		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentReason, Payload: map[string]any{"finish": think.Finish, "next_action_hint": think.NextActionHint, "step": step}})
		transcript = append(transcript, domain.Message{Role: domain.RoleAssistant, Content: think.NextActionHint})

		if think.Finish {
			emitCompletion(ctx, relay, step)
			return s.finish(ctx, relay, params, think.FinalAnswer, step)
		}

		if len(actionTools) == 0 {
			continue
		}

		actionResp, err := caller.CallWithTools(ctx, params.Model, transcript, actionTools, params.Temperature)
		if err != nil {
			relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentError, Payload: map[string]any{"error": err.Error()}})
			return domain.AgentResult{}, err
		}
		if len(actionResp.ToolCalls) == 0 {
			continue
		}

		call := actionResp.ToolCalls[0] // "a single user-tool call per step"
		transcript = append(transcript, domain.Message{Role: domain.RoleAssistant, Content: actionResp.Content, ToolCalls: []domain.ToolCall{call}})
		result := dispatchToolCall(ctx, executor, relay, call, params.Context.SessionID, params.Context.UserEmail)
		transcript = append(transcript, domain.Message{Role: domain.RoleTool, Content: result.Content, ToolCallID: call.ID})
		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentObserve, Payload: map[string]any{"tool_call_id": call.ID, "content": result.Content}})
	}

	return forcedSummarization(ctx, caller, params, relay, transcript)
}

func (s ThinkActStrategy) finish(ctx context.Context, relay Relay, params RunParams, answer string, step int) (domain.AgentResult, error) {
	if params.Streaming {
		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentTokenStream, Payload: map[string]any{"token": answer, "is_first": true, "is_last": false}})
		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentTokenStream, Payload: map[string]any{"token": "", "is_first": false, "is_last": true}})
	}
	return domain.AgentResult{FinalAnswer: answer, Steps: step}, nil
}

func findThinkCall(calls []domain.ToolCall) (thinkArgs, bool) {
	for _, c := range calls {
		if c.Name != thinkToolName {
			continue
		}
		var args thinkArgs
		raw, ok := c.Arguments.(string)
		if !ok {
			b, err := json.Marshal(c.Arguments)
			if err != nil {
				continue
			}
			raw = string(b)
		}
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			continue
		}
		return args, true
	}
	return thinkArgs{}, false
}

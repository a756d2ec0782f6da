// Package agentloop implements the three Agent Loop strategies (spec
// §4.8, C9): ReAct, Think-Act, and Act. Each drives a bounded number of
// LLM/tool round trips, emitting AgentEvents that a Relay (relay.go) maps
// onto the publisher port, and returns an AgentResult once a strategy-
// specific termination condition fires or max_steps is exhausted.
package agentloop

import (
	"context"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/streaming"
	"github.com/atlaschat/core/internal/tool"
)

// finalAnswerMarker is the convention a ReAct-prompted model uses to
// signal it is done reasoning and ready to answer (spec §4.8: "the LLM
// produces a final-answer marker").
const finalAnswerMarker = "FINAL ANSWER:"

// RunParams bundles the parameters spec §4.8's run() signature threads
// through every strategy.
type RunParams struct {
	Model         string
	Messages      []domain.Message
	Context       domain.AgentContext
	SelectedTools []string
	DataSources   []string
	MaxSteps      int
	Temperature   float64
	Streaming     bool
}

// Strategy is one of ReAct / Think-Act / Act.
type Strategy interface {
	Name() string
	Run(ctx context.Context, caller llm.Caller, executor *tool.Executor, relay Relay, params RunParams) (domain.AgentResult, error)
}

// buildToolSpecs resolves each selected "<server>_<tool>" name's schema
// through the executor's Client, skipping any that can't be resolved
// rather than failing the whole loop over one bad name.
func buildToolSpecs(ctx context.Context, executor *tool.Executor, toolNames []string) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(toolNames))
	for _, name := range toolNames {
		server, toolName := tool.SplitQualifiedName(name, executor.KnownServers)
		schema, err := executor.Client.GetToolSchema(ctx, server, toolName)
		if err != nil || schema == nil {
			continue
		}
		specs = append(specs, llm.ToolSpec{
			Name:       name,
			Parameters: map[string]any{"type": "object", "properties": schema.Properties, "required": schema.Required},
		})
	}
	return specs
}

// emitStart/emitTurnStart/emitCompletion are shared across all three
// strategies; each strategy's distinctive step logic lives in its own
// file (react.go, thinkact.go, act.go).
func emitStart(ctx context.Context, relay Relay, strategy string, maxSteps int) {
	relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentStart, Payload: map[string]any{"max_steps": maxSteps, "strategy": strategy}})
}

func emitTurnStart(ctx context.Context, relay Relay, step int) {
	relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentTurnStart, Payload: map[string]any{"step": step}})
}

func emitCompletion(ctx context.Context, relay Relay, steps int) {
	relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentCompletion, Payload: map[string]any{"steps": steps}})
}

func emitToolResults(ctx context.Context, relay Relay, results map[string]any) {
	relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentToolResults, Payload: results})
}

// dispatchToolCall runs one tool call through the executor and emits the
// agent_tool_start/agent_tool_complete/agent_tool_results events around
// it, in the order the concurrency model requires (spec §5 rule 3).
func dispatchToolCall(ctx context.Context, executor *tool.Executor, relay Relay, call domain.ToolCall, sessionID, userEmail string) domain.ToolResult {
	relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentToolStart, Payload: map[string]any{"tool_call_id": call.ID, "tool_name": call.Name}})
	result := executor.Execute(ctx, call, sessionID, userEmail)
	relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentToolComplete, Payload: map[string]any{"tool_call_id": call.ID, "tool_name": call.Name, "success": result.Success}})
	if len(result.Artifacts) > 0 {
		emitToolResults(ctx, relay, map[string]any{"tool_call_id": call.ID, "artifacts": result.Artifacts})
	}
	return result
}

// streamFinalAnswer runs the accumulator (spec §4.3) over the given
// streaming source, relaying each token as agent_token_stream instead of
// a plain token_stream event, used when RunParams.Streaming is true.
func streamFinalAnswer(ctx context.Context, relay Relay, source streaming.TokenSource) string {
	var accumulated string
	first := true
	for token, err := range source {
		if err != nil {
			relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentError, Payload: map[string]any{"error": err.Error()}})
			break
		}
		if token == "" {
			continue
		}
		relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentTokenStream, Payload: map[string]any{"token": token, "is_first": first, "is_last": false}})
		first = false
		accumulated += token
	}
	relay.Dispatch(ctx, domain.AgentEvent{Type: domain.AgentTokenStream, Payload: map[string]any{"token": "", "is_first": false, "is_last": true}})
	return accumulated
}

// forcedSummarization implements spec §4.8's "if no final answer is
// produced within max_steps, call plain LLM on the accumulated messages
// as a forced summarization."
func forcedSummarization(ctx context.Context, caller llm.Caller, params RunParams, relay Relay, transcript []domain.Message) (domain.AgentResult, error) {
	summaryPrompt := domain.NewMessage(domain.RoleUser, "Summarize the work done so far and give your best final answer now.")
	messages := append(append([]domain.Message{}, transcript...), summaryPrompt)

	var answer string
	if params.Streaming {
		answer = streamFinalAnswer(ctx, relay, caller.StreamPlain(ctx, params.Model, messages, params.Temperature))
	} else {
		resp, err := caller.CallPlain(ctx, params.Model, messages, params.Temperature)
		if err != nil {
			return domain.AgentResult{}, err
		}
		answer = resp.Content
	}
	emitCompletion(ctx, relay, params.MaxSteps)
	return domain.AgentResult{FinalAnswer: answer, Steps: params.MaxSteps, Metadata: map[string]any{"forced_summarization": true}}, nil
}

package modes

import (
	"context"
	"fmt"

	"github.com/atlaschat/core/internal/agentloop"
	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/publisher"
	"github.com/atlaschat/core/internal/tool"
)

// StrategyName selects one of agentloop's three Strategy implementations
// (spec §4.8).
type StrategyName string

const (
	StrategyReAct    StrategyName = "react"
	StrategyThinkAct StrategyName = "think-act"
	StrategyAct      StrategyName = "act"

	defaultMaxSteps = 10
)

func resolveStrategy(name StrategyName) agentloop.Strategy {
	switch name {
	case StrategyThinkAct:
		return agentloop.ThinkActStrategy{}
	case StrategyAct:
		return agentloop.ActStrategy{}
	default:
		return agentloop.ReActStrategy{}
	}
}

// AgentRunner delegates to an agentloop.Strategy, wiring the session's
// tool executor and a Relay whose artifact processor publishes the loop's
// tool results as a files_update (spec §4.8/§4.9). The artifacts are not
// written to the file store or added to the session's files.
type AgentRunner struct {
	Caller   llm.Caller
	Executor *tool.Executor
}

// Run drives one agent loop to completion, streaming or not depending on
// params.Streaming, and appends the final answer to session history.
func (r AgentRunner) Run(ctx context.Context, session *domain.Session, strategy StrategyName, model string, messages []domain.Message, selectedTools, dataSources []string, maxSteps int, temperature float64, streaming bool, pub publisher.Publisher) (domain.AgentResult, error) {
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	relay := agentloop.Relay{
		Pub: pub,
		Artifacts: func(ctx context.Context, results map[string]any) {
			pub.PublishFilesUpdate(ctx, results)
		},
	}

	params := agentloop.RunParams{
		Model:    model,
		Messages: messages,
		Context: domain.AgentContext{
			SessionID: session.ID,
			UserEmail: session.UserEmail,
			Files:     session.Files(),
			History:   session.History,
		},
		SelectedTools: selectedTools,
		DataSources:   dataSources,
		MaxSteps:      maxSteps,
		Temperature:   temperature,
		Streaming:     streaming,
	}

	result, err := resolveStrategy(strategy).Run(ctx, r.Caller, r.Executor, relay, params)
	if err != nil {
		pub.PublishError(ctx, fmt.Sprintf("agent loop failed: %v", err))
		return result, err
	}

	assistant := domain.NewMessage(domain.RoleAssistant, result.FinalAnswer)
	assistant.Metadata["agent_steps"] = result.Steps
	session.AppendMessage(assistant)
	if !streaming {
		pub.PublishChatResponse(ctx, result.FinalAnswer, false)
	}
	pub.PublishResponseComplete(ctx)
	return result, nil
}

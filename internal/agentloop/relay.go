package agentloop

import (
	"context"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/publisher"
)

// ArtifactProcessor ingests an agent_tool_results event's results into the
// session's file store (spec §4.9: "agent_tool_results does not map to a
// publisher call but invokes the artifact processor").
type ArtifactProcessor func(ctx context.Context, results map[string]any)

// Relay is a pure mapper from AgentEvent to publisher calls (spec §4.9).
// Every event type dispatches trivially to PublishAgentUpdate except
// agent_token_stream (routed through the token-stream channel so the
// client's streaming UI doesn't need a second code path) and
// agent_tool_results (never reaches the publisher at all).
type Relay struct {
	Pub       publisher.Publisher
	Artifacts ArtifactProcessor
}

func (r Relay) Dispatch(ctx context.Context, evt domain.AgentEvent) {
	switch evt.Type {
	case domain.AgentToolResults:
		if r.Artifacts != nil {
			r.Artifacts(ctx, evt.Payload)
		}
	case domain.AgentTokenStream:
		token, _ := evt.Payload["token"].(string)
		isFirst, _ := evt.Payload["is_first"].(bool)
		isLast, _ := evt.Payload["is_last"].(bool)
		r.Pub.PublishTokenStream(ctx, token, isFirst, isLast)
	default:
		r.Pub.PublishAgentUpdate(ctx, evt.Type, evt.Payload)
	}
}

// Package modes implements the four mode runners (spec §4.4-§4.8, C8):
// Plain, RAG, Tools, and Agent. Each owns the session-history mutation
// and publisher notifications for one execution path; the orchestrator
// (internal/orchestrator) only decides which one to call.
package modes

import (
	"context"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/publisher"
	"github.com/atlaschat/core/internal/streaming"
)

// PlainRunner streams a bare LLM completion with no RAG context and no
// tools (spec §4.4).
type PlainRunner struct {
	Caller llm.Caller
}

func (r PlainRunner) RunStreaming(ctx context.Context, session *domain.Session, model string, messages []domain.Message, temperature float64, pub publisher.Publisher) {
	fallback := func(ctx context.Context) (string, error) {
		resp, err := r.Caller.CallPlain(ctx, model, messages, temperature)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	content := streaming.StreamAndAccumulate(ctx, r.Caller.StreamPlain(ctx, model, messages, temperature), pub, fallback, "plain")

	session.AppendMessage(domain.NewMessage(domain.RoleAssistant, content))
	pub.PublishResponseComplete(ctx)
}

// RunBlocking is the non-streaming variant with identical semantics
// minus token fan-out (spec §4.4: "Non-streaming variants exist with the
// same semantics minus token fan-out").
func (r PlainRunner) RunBlocking(ctx context.Context, session *domain.Session, model string, messages []domain.Message, temperature float64, pub publisher.Publisher) (string, error) {
	resp, err := r.Caller.CallPlain(ctx, model, messages, temperature)
	if err != nil {
		return "", err
	}
	session.AppendMessage(domain.NewMessage(domain.RoleAssistant, resp.Content))
	pub.PublishChatResponse(ctx, resp.Content, false)
	pub.PublishResponseComplete(ctx)
	return resp.Content, nil
}

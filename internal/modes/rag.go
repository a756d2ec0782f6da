package modes

import (
	"context"
	"strings"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/publisher"
	"github.com/atlaschat/core/internal/rag"
	"github.com/atlaschat/core/internal/streaming"
)

// RAGRunner assembles context from one or more qualified data sources and
// streams an LLM completion augmented with it (spec §4.4).
type RAGRunner struct {
	Caller     llm.Caller
	Aggregator *rag.Aggregator
}

// assembleContext queries every selected data source and concatenates the
// results, tolerating individual failures the same way discovery does —
// one unreachable RAG backend must not abort the whole request. A runner
// with no Aggregator assembles no context.
func (r RAGRunner) assembleContext(ctx context.Context, dataSources []string, userEmail string, messages []domain.Message) string {
	if r.Aggregator == nil {
		return ""
	}
	var sections []string
	for _, id := range dataSources {
		resp, err := r.Aggregator.QueryRAG(ctx, id, userEmail, messages)
		if err != nil || resp.Content == "" {
			continue
		}
		sections = append(sections, resp.Content)
	}
	return strings.Join(sections, "\n\n")
}

func (r RAGRunner) RunStreaming(ctx context.Context, session *domain.Session, model string, messages []domain.Message, dataSources []string, userEmail string, temperature float64, pub publisher.Publisher) {
	ragContext := r.assembleContext(ctx, dataSources, userEmail, messages)

	fallback := func(ctx context.Context) (string, error) {
		resp, err := r.Caller.CallWithRAG(ctx, model, messages, ragContext, temperature)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	content := streaming.StreamAndAccumulate(ctx, r.Caller.StreamWithRAG(ctx, model, messages, ragContext, temperature), pub, fallback, "rag")

	assistant := domain.NewMessage(domain.RoleAssistant, content)
	assistant.Metadata["data_sources"] = dataSources
	session.AppendMessage(assistant)
	pub.PublishResponseComplete(ctx)
}

func (r RAGRunner) RunBlocking(ctx context.Context, session *domain.Session, model string, messages []domain.Message, dataSources []string, userEmail string, temperature float64, pub publisher.Publisher) (string, error) {
	ragContext := r.assembleContext(ctx, dataSources, userEmail, messages)

	resp, err := r.Caller.CallWithRAG(ctx, model, messages, ragContext, temperature)
	if err != nil {
		return "", err
	}
	assistant := domain.NewMessage(domain.RoleAssistant, resp.Content)
	assistant.Metadata["data_sources"] = dataSources
	session.AppendMessage(assistant)
	pub.PublishChatResponse(ctx, resp.Content, false)
	pub.PublishResponseComplete(ctx)
	return resp.Content, nil
}

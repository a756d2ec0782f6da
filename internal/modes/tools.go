package modes

import (
	"context"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/event"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/publisher"
	"github.com/atlaschat/core/internal/security"
	"github.com/atlaschat/core/internal/streaming"
	"github.com/atlaschat/core/internal/tool"
)

const canvasToolName = "canvas_canvas"

// SynthesisPromptProvider returns a system prompt parameterized on the
// most recent user question, or "" if none is configured (spec §4.6
// step 3: "if a prompt provider is configured").
type SynthesisPromptProvider func(userQuestion string) string

// ToolsRunner implements spec §4.5's execute_tools_workflow plus the §4.6
// synthesis step.
type ToolsRunner struct {
	Caller          llm.Caller
	Executor        *tool.Executor
	Security        security.Checker
	SynthesisPrompt SynthesisPromptProvider
	FilesManifest   func(session *domain.Session) string
}

// historyToStrings flattens session history into the plain-text form the
// security.Checker port expects.
func historyToStrings(messages []domain.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}

func (r ToolsRunner) checker() security.Checker {
	if r.Security != nil {
		return r.Security
	}
	return security.NoOp{}
}

// RunStreaming resolves the tool specs, calls the LLM with tools, executes
// whatever it requests, and streams the synthesis (or short-circuits it
// when every call was the canvas pseudo-tool, per spec §4.6/S4).
func (r ToolsRunner) RunStreaming(ctx context.Context, session *domain.Session, model string, messages []domain.Message, toolNames []string, userEmail string, temperature float64, pub publisher.Publisher) error {
	specs := buildToolSpecsFromExecutor(ctx, r.Executor, toolNames)

	resp, err := r.Caller.CallWithTools(ctx, model, messages, specs, temperature)
	if err != nil {
		return err
	}

	transcript := append(append([]domain.Message{}, messages...), domain.Message{Role: domain.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})

	if len(resp.ToolCalls) == 0 {
		session.AppendMessage(domain.NewMessage(domain.RoleAssistant, resp.Content))
		pub.PublishChatResponse(ctx, resp.Content, false)
		pub.PublishResponseComplete(ctx)
		return nil
	}

	allCanvas := true
	for _, call := range resp.ToolCalls {
		result := r.Executor.Execute(ctx, call, session.ID, userEmail)
		transcript = append(transcript, domain.Message{Role: domain.RoleTool, Content: result.Content, ToolCallID: call.ID})
		if call.Name != canvasToolName {
			allCanvas = false
		}

		if checked, err := r.checker().CheckToolRAGOutput(ctx, result.Content, "tool", historyToStrings(session.History), userEmail); err == nil && checked.Blocked() {
			session.ClearHistory()
			pub.PublishSecurityWarning(ctx, event.SecurityBlocked, checked.Message)
			return domain.NewToolError("tool output blocked by security check")
		}

		if len(result.Artifacts) > 0 {
			pub.PublishFilesUpdate(ctx, result.Artifacts)
		}
	}

	session.AppendMessage(domain.Message{Role: domain.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
	for _, m := range transcript[len(messages)+1:] {
		session.AppendMessage(m)
	}

	if allCanvas {
		content := resp.Content
		if content == "" {
			content = "Content displayed in canvas."
		}
		session.AppendMessage(domain.NewMessage(domain.RoleAssistant, content))
		pub.PublishChatResponse(ctx, content, false)
		pub.PublishResponseComplete(ctx)
		return nil
	}

	r.synthesize(ctx, session, model, transcript, temperature, pub)
	return nil
}

// synthesize implements spec §4.6: append a files manifest, find the most
// recent user message, prepend a synthesis system prompt if configured,
// and stream the result with a non-streaming fallback.
func (r ToolsRunner) synthesize(ctx context.Context, session *domain.Session, model string, transcript []domain.Message, temperature float64, pub publisher.Publisher) {
	if r.FilesManifest != nil {
		if manifest := r.FilesManifest(session); manifest != "" {
			transcript = append(transcript, domain.Message{Role: domain.RoleSystem, Content: manifest})
		}
	}

	if r.SynthesisPrompt != nil {
		if question, ok := mostRecentUserMessage(transcript); ok {
			prompt := r.SynthesisPrompt(question)
			if prompt != "" {
				transcript = append([]domain.Message{{Role: domain.RoleSystem, Content: prompt}}, transcript...)
			}
		}
	}

	fallback := func(ctx context.Context) (string, error) {
		resp, err := r.Caller.CallPlain(ctx, model, transcript, temperature)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	content := streaming.StreamAndAccumulate(ctx, r.Caller.StreamPlain(ctx, model, transcript, temperature), pub, fallback, "synthesis")
	session.AppendMessage(domain.NewMessage(domain.RoleAssistant, content))
	pub.PublishResponseComplete(ctx)
}

func mostRecentUserMessage(messages []domain.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content, true
		}
	}
	return "", false
}

func buildToolSpecsFromExecutor(ctx context.Context, executor *tool.Executor, toolNames []string) []llm.ToolSpec {
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

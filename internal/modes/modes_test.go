package modes

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/atlaschat/core/internal/authz"
	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/event"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/publisher"
	"github.com/atlaschat/core/internal/streaming"
	"github.com/atlaschat/core/internal/tool"
)

// fakeCaller is a minimal llm.Caller stub; each field/method override
// controls one code path under test.
type fakeCaller struct {
	streamTokens  []string
	plainContent  string
	toolCallsOnce []domain.ToolCall
	toolContent   string
	calledTools   bool
}

func (f *fakeCaller) CallPlain(ctx context.Context, model string, messages []domain.Message, temperature float64) (llm.Response, error) {
	return llm.Response{Content: f.plainContent}, nil
}
func (f *fakeCaller) StreamPlain(ctx context.Context, model string, messages []domain.Message, temperature float64) streaming.TokenSource {
	return func(yield func(string, error) bool) {
		for _, tok := range f.streamTokens {
			if !yield(tok, nil) {
				return
			}
		}
	}
}
func (f *fakeCaller) CallWithTools(ctx context.Context, model string, messages []domain.Message, tools []llm.ToolSpec, temperature float64) (llm.Response, error) {
	if !f.calledTools {
		f.calledTools = true
		return llm.Response{Content: f.toolContent, ToolCalls: f.toolCallsOnce}, nil
	}
	return llm.Response{Content: f.plainContent}, nil
}
func (f *fakeCaller) StreamWithTools(ctx context.Context, model string, messages []domain.Message, tools []llm.ToolSpec, temperature float64) (streaming.TokenSource, func() llm.Response) {
	return func(yield func(string, error) bool) {}, func() llm.Response { return llm.Response{} }
}
func (f *fakeCaller) CallWithRAG(ctx context.Context, model string, messages []domain.Message, ragContext string, temperature float64) (llm.Response, error) {
	return llm.Response{Content: f.plainContent}, nil
}
func (f *fakeCaller) StreamWithRAG(ctx context.Context, model string, messages []domain.Message, ragContext string, temperature float64) streaming.TokenSource {
	return f.StreamPlain(ctx, model, messages, temperature)
}
func (f *fakeCaller) CallWithRAGAndTools(ctx context.Context, model string, messages []domain.Message, ragContext string, tools []llm.ToolSpec, temperature float64) (llm.Response, error) {
	return llm.Response{}, nil
}
func (f *fakeCaller) StreamWithRAGAndTools(ctx context.Context, model string, messages []domain.Message, ragContext string, tools []llm.ToolSpec, temperature float64) (streaming.TokenSource, func() llm.Response) {
	return func(yield func(string, error) bool) {}, func() llm.Response { return llm.Response{} }
}

type noopClient struct{}

func (noopClient) GetToolSchema(ctx context.Context, serverName, toolName string) (*tool.Schema, error) {
	return &tool.Schema{}, nil
}
func (noopClient) ExecuteTool(ctx context.Context, serverName, toolName string, arguments map[string]any, progress tool.ProgressFunc) (tool.RawResult, error) {
	return tool.RawResult{Content: []tool.ContentItem{{Type: "text", Text: "ok"}}}, nil
}

func newBus() (*event.Bus, publisher.Publisher) {
	bus := event.NewBus()
	return bus, publisher.NewBusPublisher(bus, "session-1", zerolog.Nop())
}

// TestPlainRunner_StreamingHappyPath models scenario S1: three tokens
// stream through, then the empty is_last terminator, then
// response_complete, with the assistant message recorded as their
// concatenation.
func TestPlainRunner_StreamingHappyPath(t *testing.T) {
	bus, pub := newBus()
	defer bus.Close()

	var tokens []string
	var complete bool
	bus.Subscribe(event.TokenStream, func(e event.Event) {
		tokens = append(tokens, e.Data.(event.TokenStreamData).Token)
	})
	bus.Subscribe(event.ResponseComplete, func(e event.Event) { complete = true })

	session := domain.NewSession("")
	runner := PlainRunner{Caller: &fakeCaller{streamTokens: []string{"Hello", " ", "World"}}}
	runner.RunStreaming(context.Background(), session, "test-model", []domain.Message{domain.NewMessage(domain.RoleUser, "hi")}, 0.0, pub)

	if len(tokens) != 4 {
		t.Fatalf("expected 4 token_stream events (3 tokens + terminator), got %d: %v", len(tokens), tokens)
	}
	if !complete {
		t.Error("expected response_complete to fire")
	}
	last := session.History[len(session.History)-1]
	if last.Content != "Hello World" {
		t.Errorf("expected accumulated content %q, got %q", "Hello World", last.Content)
	}
}

func newExecutor(pub publisher.Publisher) *tool.Executor {
	return &tool.Executor{Client: noopClient{}, Policy: authz.DefaultPolicy(), Pub: pub}
}

// TestToolsRunner_CanvasOnlyCall_SkipsSynthesis models scenario S4: a
// single canvas_canvas tool call must short-circuit synthesis entirely.
func TestToolsRunner_CanvasOnlyCall_SkipsSynthesis(t *testing.T) {
	bus, pub := newBus()
	defer bus.Close()

	var canvasContent string
	var synthesisCalls int
	bus.Subscribe(event.CanvasContent, func(e event.Event) {
		canvasContent = e.Data.(event.CanvasContentData).Content
	})

	caller := &fakeCaller{
		toolCallsOnce: []domain.ToolCall{{ID: "call-1", Name: "canvas_canvas", Arguments: map[string]any{"content": "# Hi"}}},
		plainContent:  "should not be called",
	}
	session := domain.NewSession("")
	runner := ToolsRunner{Caller: caller, Executor: newExecutor(pub)}

	err := runner.RunStreaming(context.Background(), session, "test-model", []domain.Message{domain.NewMessage(domain.RoleUser, "show this")}, nil, "user@example.com", 0.0, pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canvasContent != "# Hi" {
		t.Errorf("expected canvas_content %q, got %q", "# Hi", canvasContent)
	}

	last := session.History[len(session.History)-1]
	if last.Content != "Content displayed in canvas." {
		t.Errorf("expected canned canvas content, got %q", last.Content)
	}
	_ = synthesisCalls
}

// TestToolsRunner_NonCanvasCall_RunsSynthesis asserts a real tool call
// does proceed to the synthesis step and streams its own tokens.
func TestToolsRunner_NonCanvasCall_RunsSynthesis(t *testing.T) {
	bus, pub := newBus()
	defer bus.Close()

	var tokens []string
	bus.Subscribe(event.TokenStream, func(e event.Event) {
		tokens = append(tokens, e.Data.(event.TokenStreamData).Token)
	})

	caller := &fakeCaller{
		toolCallsOnce: []domain.ToolCall{{ID: "call-1", Name: "search_lookup", Arguments: map[string]any{"q": "x"}}},
		streamTokens:  []string{"synth", "esized"},
	}
	session := domain.NewSession("")
	runner := ToolsRunner{Caller: caller, Executor: newExecutor(pub)}

	err := runner.RunStreaming(context.Background(), session, "test-model", []domain.Message{domain.NewMessage(domain.RoleUser, "look this up")}, []string{"search_lookup"}, "user@example.com", 0.0, pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected synthesis to stream 2 tokens + terminator, got %d: %v", len(tokens), tokens)
	}
	last := session.History[len(session.History)-1]
	if last.Content != "synthesized" {
		t.Errorf("expected synthesized content, got %q", last.Content)
	}
}

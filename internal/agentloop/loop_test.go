package agentloop

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

// fakeCaller never produces a tool call, so any strategy driven by it
// must exhaust max_steps and fall back to forced summarization.
type fakeCaller struct {
	plainContent string
}

func (f *fakeCaller) CallPlain(ctx context.Context, model string, messages []domain.Message, temperature float64) (llm.Response, error) {
	return llm.Response{Content: f.plainContent}, nil
}
func (f *fakeCaller) StreamPlain(ctx context.Context, model string, messages []domain.Message, temperature float64) streaming.TokenSource {
	return func(yield func(string, error) bool) { yield(f.plainContent, nil) }
}
func (f *fakeCaller) CallWithTools(ctx context.Context, model string, messages []domain.Message, tools []llm.ToolSpec, temperature float64) (llm.Response, error) {
	return llm.Response{Content: "thinking out loud"}, nil
}
func (f *fakeCaller) StreamWithTools(ctx context.Context, model string, messages []domain.Message, tools []llm.ToolSpec, temperature float64) (streaming.TokenSource, func() llm.Response) {
	return func(yield func(string, error) bool) {}, func() llm.Response { return llm.Response{} }
}
func (f *fakeCaller) CallWithRAG(ctx context.Context, model string, messages []domain.Message, ragContext string, temperature float64) (llm.Response, error) {
	return llm.Response{}, nil
}
func (f *fakeCaller) StreamWithRAG(ctx context.Context, model string, messages []domain.Message, ragContext string, temperature float64) streaming.TokenSource {
	return func(yield func(string, error) bool) {}
}
func (f *fakeCaller) CallWithRAGAndTools(ctx context.Context, model string, messages []domain.Message, ragContext string, tools []llm.ToolSpec, temperature float64) (llm.Response, error) {
	return llm.Response{}, nil
}
func (f *fakeCaller) StreamWithRAGAndTools(ctx context.Context, model string, messages []domain.Message, ragContext string, tools []llm.ToolSpec, temperature float64) (streaming.TokenSource, func() llm.Response) {
	return func(yield func(string, error) bool) {}, func() llm.Response { return llm.Response{} }
}

type noopClient struct{}

func (noopClient) GetToolSchema(ctx context.Context, serverName, toolName string) (*tool.Schema, error) {
	return nil, nil
}
func (noopClient) ExecuteTool(ctx context.Context, serverName, toolName string, arguments map[string]any, progress tool.ProgressFunc) (tool.RawResult, error) {
	return tool.RawResult{}, nil
}

func newTestSetup(caller llm.Caller) (llm.Caller, *tool.Executor, Relay, *event.Bus) {
	bus := event.NewBus()
	pub := publisher.NewBusPublisher(bus, "session-1", zerolog.Nop())
	executor := &tool.Executor{Client: noopClient{}, Policy: authz.DefaultPolicy(), Pub: pub}
	relay := Relay{Pub: pub}
	return caller, executor, relay, bus
}

func TestReActStrategy_MaxStepsReached_FallsBackToForcedSummarization(t *testing.T) {
	caller, executor, relay, bus := newTestSetup(&fakeCaller{plainContent: "final summary"})
	defer bus.Close()

	params := RunParams{
		Model:    "test-model",
		Messages: []domain.Message{domain.NewMessage(domain.RoleUser, "do something")},
		MaxSteps: 2,
	}

	var turnStarts []int
	bus.Subscribe(event.AgentUpdate, func(e event.Event) {
		d := e.Data.(event.AgentUpdateData)
		if d.UpdateType == domain.AgentTurnStart {
			turnStarts = append(turnStarts, d.Payload["step"].(int))
		}
	})

	result, err := ReActStrategy{}.Run(context.Background(), caller, executor, relay, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalAnswer != "final summary" {
		t.Errorf("expected forced summarization content, got %q", result.FinalAnswer)
	}
	if len(turnStarts) != 2 || turnStarts[0] != 1 || turnStarts[1] != 2 {
		t.Errorf("expected exactly two agent_turn_start events with steps 1,2, got %v", turnStarts)
	}
}

func TestActStrategy_FinishedToolCall_EndsLoopWithFinalAnswer(t *testing.T) {
	caller := &actFinishCaller{}
	_, executor, relay, bus := newTestSetup(caller)
	defer bus.Close()

	params := RunParams{Model: "test-model", Messages: []domain.Message{domain.NewMessage(domain.RoleUser, "q")}, MaxSteps: 5}

	result, err := ActStrategy{}.Run(context.Background(), caller, executor, relay, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalAnswer != "done" {
		t.Errorf("expected final answer %q, got %q", "done", result.FinalAnswer)
	}
	if result.Steps != 1 {
		t.Errorf("expected the loop to end on step 1, got %d", result.Steps)
	}
}

// actFinishCaller always picks the "finished" tool on its very first call.
type actFinishCaller struct{ fakeCaller }

func (c *actFinishCaller) CallWithTools(ctx context.Context, model string, messages []domain.Message, tools []llm.ToolSpec, temperature float64) (llm.Response, error) {
	return llm.Response{ToolCalls: []domain.ToolCall{{ID: "call-1", Name: finishedToolName, Arguments: map[string]any{"final_answer": "done"}}}}, nil
}

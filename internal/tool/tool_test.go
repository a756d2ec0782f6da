package tool

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/atlaschat/core/internal/authz"
	"github.com/atlaschat/core/internal/capability"
	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/event"
	"github.com/atlaschat/core/internal/publisher"
)

type fakeClient struct {
	schema  *Schema
	result  RawResult
	err     error
	calls   []string
	onExec  func(args map[string]any, progress ProgressFunc)
}

func (f *fakeClient) GetToolSchema(ctx context.Context, serverName, toolName string) (*Schema, error) {
	return f.schema, nil
}

func (f *fakeClient) ExecuteTool(ctx context.Context, serverName, toolName string, arguments map[string]any, progress ProgressFunc) (RawResult, error) {
	f.calls = append(f.calls, serverName+"_"+toolName)
	if f.onExec != nil {
		f.onExec(arguments, progress)
	}
	return f.result, f.err
}

type fakeResolver struct {
	known map[string]string
}

func (f *fakeResolver) Resolve(filename string) (string, bool) {
	key, ok := f.known[filename]
	return key, ok
}

func newTestExecutor(client Client) (*Executor, *event.Bus) {
	bus := event.NewBus()
	pub := publisher.NewBusPublisher(bus, "session-1", zerolog.Nop())
	return &Executor{
		Client: client,
		Policy: authz.DefaultPolicy(),
		Pub:    pub,
	}, bus
}

func TestExecute_HappyPath_NormalizesResult(t *testing.T) {
	client := &fakeClient{
		schema: &Schema{Properties: map[string]any{"query": map[string]any{"type": "string"}}},
		result: RawResult{StructuredContent: map[string]any{"results": map[string]any{"answer": "42"}}},
	}
	exec, bus := newTestExecutor(client)
	defer bus.Close()

	call := domain.ToolCall{ID: "call-1", Name: "search_query", Arguments: map[string]any{"query": "life"}}
	result := exec.Execute(context.Background(), call, "session-1", "user@example.com")

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Content == "" || result.Content == "{}" {
		t.Errorf("expected normalized content, got %q", result.Content)
	}
	if len(client.calls) != 1 || client.calls[0] != "search_query" {
		t.Errorf("unexpected dispatch calls: %v", client.calls)
	}
}

func TestExecute_ToolError_ReturnsFailedResultNotGoError(t *testing.T) {
	client := &fakeClient{err: domain.NewToolError("boom")}
	exec, bus := newTestExecutor(client)
	defer bus.Close()

	call := domain.ToolCall{ID: "call-2", Name: "search_query", Arguments: map[string]any{}}
	result := exec.Execute(context.Background(), call, "session-1", "user@example.com")

	if result.Success {
		t.Fatalf("expected failed ToolResult")
	}
	if result.Error == "" {
		t.Errorf("expected Error populated")
	}
}

func TestExecute_Unauthorized_BlocksDispatch(t *testing.T) {
	client := &fakeClient{}
	exec, bus := newTestExecutor(client)
	defer bus.Close()
	exec.Policy = authz.Policy{AllowPatterns: []string{"other_*"}}

	call := domain.ToolCall{ID: "call-3", Name: "search_query", Arguments: map[string]any{}}
	result := exec.Execute(context.Background(), call, "session-1", "user@example.com")

	if result.Success {
		t.Fatalf("expected unauthorized tool call to fail")
	}
	if len(client.calls) != 0 {
		t.Errorf("expected no dispatch, got %v", client.calls)
	}
}

func TestExecute_ApprovalRejected_ReturnsRejectionWithoutDispatch(t *testing.T) {
	client := &fakeClient{}
	exec, bus := newTestExecutor(client)
	defer bus.Close()
	exec.Policy = authz.Policy{AllowPatterns: []string{"*"}, ForceApproval: true}

	var elicitationID string
	bus.Subscribe(event.ElicitationRequest, func(e event.Event) {
		elicitationID = e.Data.(event.ElicitationRequestData).ElicitationID
		responder := exec.Pub.(publisher.Responder)
		responder.Respond(elicitationID, event.ElicitationResponse{ElicitationID: elicitationID, Rejected: true})
	})

	call := domain.ToolCall{ID: "call-4", Name: "search_query", Arguments: map[string]any{}}
	result := exec.Execute(context.Background(), call, "session-1", "user@example.com")

	if result.Success {
		t.Fatalf("expected rejection to fail the tool call")
	}
	if result.Content != userRejectedContent {
		t.Errorf("expected rejection content, got %q", result.Content)
	}
	if len(client.calls) != 0 {
		t.Errorf("expected no dispatch after rejection, got %v", client.calls)
	}
}

func TestExecute_FilenameRewrite_InjectsSignedURLButUIShowsOriginal(t *testing.T) {
	client := &fakeClient{
		schema: &Schema{Properties: map[string]any{"filename": map[string]any{"type": "string"}}},
	}
	exec, bus := newTestExecutor(client)
	defer bus.Close()
	exec.Resolver = &fakeResolver{known: map[string]string{"data.csv": "storage-key-1"}}

	exec.Issuer = capability.NewIssuer([]byte("test-secret"), capability.DefaultTTL)

	var capturedArgs map[string]any
	client.onExec = func(args map[string]any, progress ProgressFunc) { capturedArgs = args }

	var uiArgs map[string]any
	bus.Subscribe(event.ToolStart, func(e event.Event) {
		uiArgs = e.Data.(event.ToolStartData).Arguments
	})

	call := domain.ToolCall{ID: "call-5", Name: "reader_read", Arguments: map[string]any{"filename": "data.csv"}}
	exec.Execute(context.Background(), call, "session-1", "user@example.com")

	if capturedArgs["filename"] == "data.csv" {
		t.Errorf("expected dispatched filename to be rewritten, got %v", capturedArgs["filename"])
	}
	if uiArgs["filename"] != "data.csv" {
		t.Errorf("expected UI filename to stay %q, got %v", "data.csv", uiArgs["filename"])
	}
}

func TestExecute_CanvasPseudoTool_SkipsDispatchAndEmitsCanvasContent(t *testing.T) {
	client := &fakeClient{}
	exec, bus := newTestExecutor(client)
	defer bus.Close()
	exec.Policy = authz.Policy{AllowPatterns: []string{}}

	var canvasContent string
	bus.Subscribe(event.CanvasContent, func(e event.Event) {
		canvasContent = e.Data.(event.CanvasContentData).Content
	})

	call := domain.ToolCall{ID: "call-6", Name: canvasToolName, Arguments: map[string]any{"content": "# Hi"}}
	result := exec.Execute(context.Background(), call, "session-1", "user@example.com")

	if !result.Success {
		t.Fatalf("expected canvas pseudo-tool to succeed")
	}
	if canvasContent != "# Hi" {
		t.Errorf("expected canvas_content event with %q, got %q", "# Hi", canvasContent)
	}
	if len(client.calls) != 0 {
		t.Errorf("expected canvas pseudo-tool never to dispatch, got %v", client.calls)
	}
}

func TestNormalize_SizeGuardFallsBackToSummary(t *testing.T) {
	big := make(map[string]any, 2000)
	for i := 0; i < 2000; i++ {
		big["key"+itoa(i)] = "some fairly long repeated filler value to inflate size"
	}
	result := Normalize("call-7", RawResult{StructuredContent: map[string]any{"results": big}})
	if result.Content == "{}" {
		t.Fatalf("expected a results_summary fallback, got empty object")
	}
}

func TestSanitizeBase64Bloat_ReplacesOversizedValues(t *testing.T) {
	huge := make([]byte, 20000)
	for i := range huge {
		huge[i] = 'A'
	}
	content := `{"b64": "` + string(huge) + `"}`
	sanitized := SanitizeBase64Bloat(content)
	if sanitized == content {
		t.Fatalf("expected sanitization to replace the oversized b64 value")
	}
}

package publisher

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/event"
)

// StreamingCLIPublisher writes tokens and tool activity straight to an
// io.Writer (typically os.Stdout) as they happen, for interactive terminal
// use. Elicitation requests auto-approve: there is no round-trip client to
// answer them in a one-shot CLI session.
type StreamingCLIPublisher struct {
	out io.Writer
	mu  sync.Mutex
}

// NewStreamingCLIPublisher creates a Publisher that prints directly to out.
func NewStreamingCLIPublisher(out io.Writer) *StreamingCLIPublisher {
	return &StreamingCLIPublisher{out: out}
}

func (p *StreamingCLIPublisher) PublishChatResponse(ctx context.Context, message string, hasPendingTools bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, message)
}

func (p *StreamingCLIPublisher) PublishResponseComplete(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}

func (p *StreamingCLIPublisher) PublishAgentUpdate(ctx context.Context, updateType domain.AgentEventType, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%s] %v\n", updateType, payload)
}

func (p *StreamingCLIPublisher) PublishTokenStream(ctx context.Context, token string, isFirst, isLast bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, token)
	if isLast {
		fmt.Fprintln(p.out)
	}
}

func (p *StreamingCLIPublisher) PublishToolStart(ctx context.Context, toolCallID, toolName, serverName string, arguments map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "→ %s (%s)\n", toolName, serverName)
}

func (p *StreamingCLIPublisher) PublishToolProgress(ctx context.Context, toolCallID, toolName string, progress, total float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if message != "" {
		fmt.Fprintf(p.out, "  … %s\n", message)
	}
}

func (p *StreamingCLIPublisher) PublishToolComplete(ctx context.Context, toolCallID, toolName string, success bool, result any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := "ok"
	if !success {
		status = "failed"
	}
	fmt.Fprintf(p.out, "✓ %s (%s)\n", toolName, status)
}

func (p *StreamingCLIPublisher) PublishToolError(ctx context.Context, toolCallID, toolName, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "✗ %s: %s\n", toolName, errMsg)
}

func (p *StreamingCLIPublisher) PublishFilesUpdate(ctx context.Context, files any) {}

func (p *StreamingCLIPublisher) PublishCanvasContent(ctx context.Context, content, contentType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[canvas:%s, %d bytes]\n", contentType, len(content))
}

func (p *StreamingCLIPublisher) PublishIntermediateUpdate(ctx context.Context, kind event.IntermediateUpdateKind, data any) {
}

// PublishElicitationRequest auto-approves: a one-shot CLI session has no
// user to round-trip an approval through.
func (p *StreamingCLIPublisher) PublishElicitationRequest(ctx context.Context, elicitationID, toolCallID, toolName, message string, schema map[string]any) <-chan event.ElicitationResponse {
	ch := make(chan event.ElicitationResponse, 1)
	ch <- event.ElicitationResponse{ElicitationID: elicitationID, Approved: true}
	return ch
}

func (p *StreamingCLIPublisher) PublishError(ctx context.Context, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "error: %s\n", message)
}

func (p *StreamingCLIPublisher) PublishSecurityWarning(ctx context.Context, status event.SecurityWarningStatus, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[security:%s] %s\n", status, message)
}

func (p *StreamingCLIPublisher) PublishConversationSaved(ctx context.Context, conversationID string) {}

func (p *StreamingCLIPublisher) PublishSessionReset(ctx context.Context, sessionID, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, message)
}

func (p *StreamingCLIPublisher) SendJSON(ctx context.Context, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%v\n", data)
}

var _ Publisher = (*StreamingCLIPublisher)(nil)

// CollectedToolCall records one tool invocation observed by a
// CollectingCLIPublisher.
type CollectedToolCall struct {
	ToolCallID string
	ToolName   string
	Success    bool
	Result     any
}

// CollectedResult is the accumulated output of a non-interactive run —
// used by headless/scripted invocations and by tests that assert on final
// state rather than the live event stream.
type CollectedResult struct {
	Message        string
	ToolCalls      []CollectedToolCall
	Files          []any
	CanvasContent  string
	RawEvents      []event.Event
}

// CollectingCLIPublisher accumulates everything published into an
// in-memory CollectedResult instead of writing it anywhere, for
// programmatic (non-interactive) invocation. Like StreamingCLIPublisher,
// elicitation requests auto-approve.
type CollectingCLIPublisher struct {
	mu     sync.Mutex
	result CollectedResult
	sb     strings.Builder
}

// NewCollectingCLIPublisher creates a Publisher that accumulates output for
// later retrieval via Result.
func NewCollectingCLIPublisher() *CollectingCLIPublisher {
	return &CollectingCLIPublisher{}
}

// Result returns a snapshot of everything collected so far.
func (p *CollectingCLIPublisher) Result() CollectedResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.result
	r.Message = p.sb.String()
	return r
}

func (p *CollectingCLIPublisher) record(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.RawEvents = append(p.result.RawEvents, e)
}

func (p *CollectingCLIPublisher) PublishChatResponse(ctx context.Context, message string, hasPendingTools bool) {
	p.record(event.Event{Type: event.ChatResponse, Data: event.ChatResponseData{Message: message, HasPendingTools: hasPendingTools}})
	p.mu.Lock()
	p.sb.WriteString(message)
	p.mu.Unlock()
}

func (p *CollectingCLIPublisher) PublishResponseComplete(ctx context.Context) {
	p.record(event.Event{Type: event.ResponseComplete, Data: event.ResponseCompleteData{}})
}

func (p *CollectingCLIPublisher) PublishAgentUpdate(ctx context.Context, updateType domain.AgentEventType, payload map[string]any) {
	p.record(event.Event{Type: event.AgentUpdate, Data: event.AgentUpdateData{UpdateType: updateType, Payload: payload}})
}

func (p *CollectingCLIPublisher) PublishTokenStream(ctx context.Context, token string, isFirst, isLast bool) {
	p.record(event.Event{Type: event.TokenStream, Data: event.TokenStreamData{Token: token, IsFirst: isFirst, IsLast: isLast}})
	p.mu.Lock()
	p.sb.WriteString(token)
	p.mu.Unlock()
}

func (p *CollectingCLIPublisher) PublishToolStart(ctx context.Context, toolCallID, toolName, serverName string, arguments map[string]any) {
	p.record(event.Event{Type: event.ToolStart, Data: event.ToolStartData{ToolCallID: toolCallID, ToolName: toolName, ServerName: serverName, Arguments: arguments}})
}

func (p *CollectingCLIPublisher) PublishToolProgress(ctx context.Context, toolCallID, toolName string, progress, total float64, message string) {
	p.record(event.Event{Type: event.ToolProgress, Data: event.ToolProgressData{ToolCallID: toolCallID, ToolName: toolName, Progress: progress, Total: total, Message: message}})
}

func (p *CollectingCLIPublisher) PublishToolComplete(ctx context.Context, toolCallID, toolName string, success bool, result any) {
	p.record(event.Event{Type: event.ToolComplete, Data: event.ToolCompleteData{ToolCallID: toolCallID, ToolName: toolName, Success: success, Result: result}})
	p.mu.Lock()
	p.result.ToolCalls = append(p.result.ToolCalls, CollectedToolCall{ToolCallID: toolCallID, ToolName: toolName, Success: success, Result: result})
	p.mu.Unlock()
}

func (p *CollectingCLIPublisher) PublishToolError(ctx context.Context, toolCallID, toolName, errMsg string) {
	p.record(event.Event{Type: event.ToolError, Data: event.ToolErrorData{ToolCallID: toolCallID, ToolName: toolName, Error: errMsg}})
	p.mu.Lock()
	p.result.ToolCalls = append(p.result.ToolCalls, CollectedToolCall{ToolCallID: toolCallID, ToolName: toolName, Success: false, Result: errMsg})
	p.mu.Unlock()
}

func (p *CollectingCLIPublisher) PublishFilesUpdate(ctx context.Context, files any) {
	p.mu.Lock()
	if fs, ok := files.([]any); ok {
		p.result.Files = append(p.result.Files, fs...)
	} else {
		p.result.Files = append(p.result.Files, files)
	}
	p.mu.Unlock()
}

func (p *CollectingCLIPublisher) PublishCanvasContent(ctx context.Context, content, contentType string) {
	p.record(event.Event{Type: event.CanvasContent, Data: event.CanvasContentData{Content: content, ContentType: contentType}})
	p.mu.Lock()
	p.result.CanvasContent = content
	p.mu.Unlock()
}

func (p *CollectingCLIPublisher) PublishIntermediateUpdate(ctx context.Context, kind event.IntermediateUpdateKind, data any) {
	p.record(event.Event{Type: event.IntermediateUpdate, Data: event.IntermediateUpdateData{UpdateType: kind, Data: data}})
}

func (p *CollectingCLIPublisher) PublishElicitationRequest(ctx context.Context, elicitationID, toolCallID, toolName, message string, schema map[string]any) <-chan event.ElicitationResponse {
	ch := make(chan event.ElicitationResponse, 1)
	ch <- event.ElicitationResponse{ElicitationID: elicitationID, Approved: true}
	return ch
}

func (p *CollectingCLIPublisher) PublishError(ctx context.Context, message string) {
	p.record(event.Event{Type: event.ErrorEvent, Data: event.ErrorData{Message: message}})
}

func (p *CollectingCLIPublisher) PublishSecurityWarning(ctx context.Context, status event.SecurityWarningStatus, message string) {
	p.record(event.Event{Type: event.SecurityWarning, Data: event.SecurityWarningData{Status: status, Message: message}})
}

func (p *CollectingCLIPublisher) PublishConversationSaved(ctx context.Context, conversationID string) {
	p.record(event.Event{Type: event.ConversationSaved, Data: event.ConversationSavedData{ConversationID: conversationID}})
}

func (p *CollectingCLIPublisher) PublishSessionReset(ctx context.Context, sessionID, message string) {
	p.record(event.Event{Type: event.SessionReset, Data: event.SessionResetData{SessionID: sessionID, Message: message}})
}

func (p *CollectingCLIPublisher) SendJSON(ctx context.Context, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.RawEvents = append(p.result.RawEvents, event.Event{Type: event.ErrorEvent, Data: data})
}

var _ Publisher = (*CollectingCLIPublisher)(nil)

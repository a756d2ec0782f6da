package publisher

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/event"
)

// busPublisher is the transport-agnostic core shared by every Publisher
// variant: it turns method calls into event.Event values and fans them out
// through a session-scoped event.Bus, delivering each event to every
// subscriber before the method returns, so subscribers see events in call
// order. WebSocket and CLI variants differ
// only in how they *consume* bus events, not in how they're produced.
type busPublisher struct {
	bus       *event.Bus
	sessionID string
	log       zerolog.Logger

	mu       sync.Mutex
	pending  map[string]chan event.ElicitationResponse
}

// NewBusPublisher creates a Publisher that emits onto bus, tagging nothing
// transport-specific — sessionID is stored on the publisher but not added
// to any event payload; routing to a specific connection is the
// transport's job (the WebSocket server gives each connection its own bus).
func NewBusPublisher(bus *event.Bus, sessionID string, log zerolog.Logger) Publisher {
	return &busPublisher{
		bus:       bus,
		sessionID: sessionID,
		log:       log,
		pending:   make(map[string]chan event.ElicitationResponse),
	}
}

func (p *busPublisher) publish(t event.EventType, data any) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("eventType", string(t)).Msg("publisher: recovered from panic delivering event")
		}
	}()
	p.bus.PublishSync(event.Event{Type: t, Data: data})
}

func (p *busPublisher) PublishChatResponse(ctx context.Context, message string, hasPendingTools bool) {
	p.publish(event.ChatResponse, event.ChatResponseData{Message: message, HasPendingTools: hasPendingTools})
}

func (p *busPublisher) PublishResponseComplete(ctx context.Context) {
	p.publish(event.ResponseComplete, event.ResponseCompleteData{})
}

func (p *busPublisher) PublishAgentUpdate(ctx context.Context, updateType domain.AgentEventType, payload map[string]any) {
	p.publish(event.AgentUpdate, event.AgentUpdateData{UpdateType: updateType, Payload: payload})
}

func (p *busPublisher) PublishTokenStream(ctx context.Context, token string, isFirst, isLast bool) {
	p.publish(event.TokenStream, event.TokenStreamData{Token: token, IsFirst: isFirst, IsLast: isLast})
}

func (p *busPublisher) PublishToolStart(ctx context.Context, toolCallID, toolName, serverName string, arguments map[string]any) {
	p.publish(event.ToolStart, event.ToolStartData{
		ToolCallID: toolCallID, ToolName: toolName, ServerName: serverName, Arguments: arguments,
	})
}

func (p *busPublisher) PublishToolProgress(ctx context.Context, toolCallID, toolName string, progress, total float64, message string) {
	var pct float64
	if total > 0 {
		pct = (progress / total) * 100
	}
	p.publish(event.ToolProgress, event.ToolProgressData{
		ToolCallID: toolCallID, ToolName: toolName, Progress: progress, Total: total, Percentage: pct, Message: message,
	})
}

func (p *busPublisher) PublishToolComplete(ctx context.Context, toolCallID, toolName string, success bool, result any) {
	p.publish(event.ToolComplete, event.ToolCompleteData{
		ToolCallID: toolCallID, ToolName: toolName, Success: success, Result: result,
	})
}

func (p *busPublisher) PublishToolError(ctx context.Context, toolCallID, toolName, errMsg string) {
	p.publish(event.ToolError, event.ToolErrorData{ToolCallID: toolCallID, ToolName: toolName, Error: errMsg})
}

func (p *busPublisher) PublishFilesUpdate(ctx context.Context, files any) {
	p.publish(event.IntermediateUpdate, event.IntermediateUpdateData{UpdateType: event.IntermediateFilesUpdate, Data: files})
}

func (p *busPublisher) PublishCanvasContent(ctx context.Context, content, contentType string) {
	if contentType == "" {
		contentType = "text/html"
	}
	p.publish(event.CanvasContent, event.CanvasContentData{Content: content, ContentType: contentType})
}

func (p *busPublisher) PublishIntermediateUpdate(ctx context.Context, kind event.IntermediateUpdateKind, data any) {
	p.publish(event.IntermediateUpdate, event.IntermediateUpdateData{UpdateType: kind, Data: data})
}

// PublishElicitationRequest emits the approval round-trip and returns a
// channel the caller blocks on for the client's response. Respond must be
// called (by the transport layer, once it receives the client's reply) to
// unblock it; if the caller's context is cancelled first, the channel
// stays registered until Respond is called for its ID — Respond tolerates
// a missing receiver.
func (p *busPublisher) PublishElicitationRequest(ctx context.Context, elicitationID, toolCallID, toolName, message string, schema map[string]any) <-chan event.ElicitationResponse {
	if elicitationID == "" {
		elicitationID = ulid.Make().String()
	}
	ch := make(chan event.ElicitationResponse, 1)
	p.mu.Lock()
	p.pending[elicitationID] = ch
	p.mu.Unlock()

	p.publish(event.ElicitationRequest, event.ElicitationRequestData{
		ElicitationID:  elicitationID,
		ToolCallID:     toolCallID,
		ToolName:       toolName,
		Message:        message,
		ResponseSchema: schema,
	})
	return ch
}

// Respond delivers a client's elicitation reply. Safe to call even if
// nobody is waiting (the request may have already timed out).
func (p *busPublisher) Respond(elicitationID string, resp event.ElicitationResponse) {
	p.mu.Lock()
	ch, ok := p.pending[elicitationID]
	if ok {
		delete(p.pending, elicitationID)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

func (p *busPublisher) PublishError(ctx context.Context, message string) {
	p.publish(event.ErrorEvent, event.ErrorData{Message: message})
}

func (p *busPublisher) PublishSecurityWarning(ctx context.Context, status event.SecurityWarningStatus, message string) {
	p.publish(event.SecurityWarning, event.SecurityWarningData{Status: status, Message: message})
}

func (p *busPublisher) PublishConversationSaved(ctx context.Context, conversationID string) {
	p.publish(event.ConversationSaved, event.ConversationSavedData{ConversationID: conversationID})
}

func (p *busPublisher) PublishSessionReset(ctx context.Context, sessionID, message string) {
	p.publish(event.SessionReset, event.SessionResetData{SessionID: sessionID, Message: message})
}

func (p *busPublisher) SendJSON(ctx context.Context, data any) {
	p.bus.PublishSync(event.Event{Type: rawJSONEventType(data), Data: data})
}

// rawJSONEventType recovers a "type" field from an already-shaped map, or
// falls back to ErrorEvent — send_json is the escape hatch used for
// security warnings and structured errors that already carry their own
// "type" discriminator (spec §4.1).
func rawJSONEventType(data any) event.EventType {
	if m, ok := data.(map[string]any); ok {
		if t, ok := m["type"].(string); ok {
			return event.EventType(t)
		}
	}
	return event.ErrorEvent
}

// Responder exposes Respond for transports that need to deliver a client
// elicitation reply without depending on the concrete busPublisher type.
type Responder interface {
	Respond(elicitationID string, resp event.ElicitationResponse)
}

var _ Responder = (*busPublisher)(nil)

// Package publisher implements the Event Publisher port (spec §4.1): ordered
// event emission to a client, with WebSocket and CLI (streaming/collecting)
// transport variants. Every method is non-throwing from the caller's
// perspective — transport errors are logged and swallowed, never returned,
// so a mode runner or tool executor never has to special-case a dead
// connection mid-request.
package publisher

import (
	"context"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/event"
)

// Publisher is the capability set every mode runner, tool executor, and
// agent loop is built against.
type Publisher interface {
	PublishChatResponse(ctx context.Context, message string, hasPendingTools bool)
	PublishResponseComplete(ctx context.Context)
	PublishAgentUpdate(ctx context.Context, updateType domain.AgentEventType, payload map[string]any)
	PublishTokenStream(ctx context.Context, token string, isFirst, isLast bool)
	PublishToolStart(ctx context.Context, toolCallID, toolName, serverName string, arguments map[string]any)
	PublishToolProgress(ctx context.Context, toolCallID, toolName string, progress, total float64, message string)
	PublishToolComplete(ctx context.Context, toolCallID, toolName string, success bool, result any)
	PublishToolError(ctx context.Context, toolCallID, toolName, errMsg string)
	PublishFilesUpdate(ctx context.Context, files any)
	PublishCanvasContent(ctx context.Context, content, contentType string)
	PublishIntermediateUpdate(ctx context.Context, kind event.IntermediateUpdateKind, data any)
	PublishElicitationRequest(ctx context.Context, elicitationID, toolCallID, toolName, message string, schema map[string]any) <-chan event.ElicitationResponse
	PublishError(ctx context.Context, message string)
	PublishSecurityWarning(ctx context.Context, status event.SecurityWarningStatus, message string)
	PublishConversationSaved(ctx context.Context, conversationID string)
	PublishSessionReset(ctx context.Context, sessionID, message string)
	SendJSON(ctx context.Context, data any)
}

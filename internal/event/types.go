package event

import "github.com/atlaschat/core/internal/domain"

// TokenStreamData is the payload for token_stream events (§4.3).
type TokenStreamData struct {
	Token   string `json:"token"`
	IsFirst bool   `json:"is_first"`
	IsLast  bool   `json:"is_last"`
}

// ChatResponseData is the payload for chat_response events — terminal
// assistant content for non-streaming mode.
type ChatResponseData struct {
	Message         string `json:"message"`
	HasPendingTools bool   `json:"has_pending_tools"`
}

// ResponseCompleteData is the (empty) payload for response_complete.
type ResponseCompleteData struct{}

// AgentUpdateData wraps an agent-loop event for the client.
type AgentUpdateData struct {
	UpdateType domain.AgentEventType `json:"update_type"`
	Payload    map[string]any        `json:"payload,omitempty"`
}

// ToolStartData is the payload for tool_start. Arguments must already be
// UI-sanitized (basenamed filenames/URLs) before reaching here.
type ToolStartData struct {
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	ServerName string         `json:"server_name"`
	Arguments  map[string]any `json:"arguments"`
}

// ToolProgressData is the payload for tool_progress.
type ToolProgressData struct {
	ToolCallID string  `json:"tool_call_id"`
	ToolName   string  `json:"tool_name"`
	Progress   float64 `json:"progress"`
	Total      float64 `json:"total,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// ToolCompleteData is the payload for tool_complete. Result must be
// UI-sanitized.
type ToolCompleteData struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Success    bool   `json:"success"`
	Result     any    `json:"result"`
}

// ToolErrorData is the payload for tool_error.
type ToolErrorData struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Error      string `json:"error"`
}

// IntermediateUpdateKind enumerates the sub-types of intermediate_update.
type IntermediateUpdateKind string

const (
	IntermediateFilesUpdate      IntermediateUpdateKind = "files_update"
	IntermediateCanvasFiles      IntermediateUpdateKind = "canvas_files"
	IntermediateProgressArtifacts IntermediateUpdateKind = "progress_artifacts"
	IntermediateSystemMessage    IntermediateUpdateKind = "system_message"
	IntermediateToolLog          IntermediateUpdateKind = "tool_log"
)

// IntermediateUpdateData is the payload for intermediate_update.
type IntermediateUpdateData struct {
	UpdateType IntermediateUpdateKind `json:"update_type"`
	Data       any                    `json:"data"`
}

// CanvasContentData is the payload for canvas_content.
type CanvasContentData struct {
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// ElicitationRequestData is the payload for elicitation_request — the
// approval-gate round trip (§4.5).
type ElicitationRequestData struct {
	ElicitationID  string         `json:"elicitation_id"`
	ToolCallID     string         `json:"tool_call_id"`
	ToolName       string         `json:"tool_name"`
	Message        string         `json:"message"`
	ResponseSchema map[string]any `json:"response_schema,omitempty"`
}

// ElicitationResponse is what the client sends back for an elicitation.
type ElicitationResponse struct {
	ElicitationID    string         `json:"elicitation_id"`
	Approved         bool           `json:"approved"`
	Rejected         bool           `json:"rejected"`
	EditedArguments  map[string]any `json:"edited_arguments,omitempty"`
}

// ErrorData is the payload for error.
type ErrorData struct {
	Message string `json:"message"`
}

// SecurityWarningStatus enumerates security_warning.status.
type SecurityWarningStatus string

const (
	SecurityBlocked SecurityWarningStatus = "blocked"
	SecurityWarning_ SecurityWarningStatus = "warning"
)

// SecurityWarningData is the payload for security_warning.
type SecurityWarningData struct {
	Status  SecurityWarningStatus `json:"status"`
	Message string                 `json:"message"`
}

// ConversationSavedData is the payload for conversation_saved.
type ConversationSavedData struct {
	ConversationID string `json:"conversation_id"`
}

// SessionResetData is the payload for session_reset.
type SessionResetData struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

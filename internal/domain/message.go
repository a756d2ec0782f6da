package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn of conversation history.
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// NewMessage stamps a fresh id and timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{},
	}
}

// ToolCall is the LLM's request to invoke a tool. Name is the fully
// qualified "<server>_<tool>" string; Arguments may have arrived as a JSON
// string or a map depending on provider — callers normalize via
// tool.ParseArguments before use.
type ToolCall struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // always "function"
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// Artifact is a tool-produced file, optionally displayed in the client's
// canvas.
type Artifact struct {
	Name        string `json:"name"`
	B64         string `json:"b64"`
	Mime        string `json:"mime"`
	Size        int64  `json:"size,omitempty"`
	Description string `json:"description,omitempty"`
	Viewer      string `json:"viewer,omitempty"`
}

// DisplayConfig tells the client how to present a tool result.
type DisplayConfig struct {
	OpenCanvas  bool   `json:"open_canvas,omitempty"`
	PrimaryFile string `json:"primary_file,omitempty"`
	Mode        string `json:"mode,omitempty"`
	ViewerHint  string `json:"viewer_hint,omitempty"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ToolResult is the outcome of executing a ToolCall. It never represents a
// Go error: a failed tool execution is success=false with an Error string,
// not a returned error value — the Tool Executor never throws.
type ToolResult struct {
	ToolCallID    string         `json:"tool_call_id"`
	Content       string         `json:"content"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	Artifacts     []Artifact     `json:"artifacts,omitempty"`
	DisplayConfig *DisplayConfig `json:"display_config,omitempty"`
	MetaData      map[string]any `json:"meta_data,omitempty"`
}

// Package domain holds the core chat data model: sessions, messages, tool
// calls/results, and the domain error taxonomy shared by every other
// package. Nothing here talks to the network, the LLM, or a store.
package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileSource identifies who attached a file to a session.
type FileSource string

const (
	FileSourceUser FileSource = "user"
	FileSourceTool FileSource = "tool"
)

// ExtractMode controls how much of a file's content was pulled into context.
type ExtractMode string

const (
	ExtractNone    ExtractMode = "none"
	ExtractPreview ExtractMode = "preview"
	ExtractFull    ExtractMode = "full"
)

// FileRef is one entry of session.context["files"], keyed by filename.
type FileRef struct {
	Key                string         `json:"key"`
	ContentType        string         `json:"content_type"`
	Size               int64          `json:"size"`
	Source             FileSource     `json:"source"`
	LastModified       time.Time      `json:"last_modified"`
	ExtractMode        ExtractMode    `json:"extract_mode"`
	ExtractedContent   string         `json:"extracted_content,omitempty"`
	ExtractedPreview    string         `json:"extracted_preview,omitempty"`
	ExtractionMetadata map[string]any `json:"extraction_metadata,omitempty"`
	ToolCallID         string         `json:"tool_call_id,omitempty"`
}

// Session is a per-user conversation context. Its history is append-only
// except for the compensating clear triggered by a blocked tool output
// (see the Tools mode runner).
type Session struct {
	mu sync.Mutex

	ID        string
	UserEmail string
	CreatedAt time.Time
	UpdatedAt time.Time
	Active    bool

	History []Message

	// Context holds free-form session state: "files" (map[string]*FileRef),
	// "conversation_id", "_restored", "agent_mode", "_incognito".
	Context map[string]any
}

// NewSession creates a new, empty, active session.
func NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Active:    true,
		Context:   map[string]any{},
	}
}

// Lock/Unlock give the orchestrator a per-session serialization primitive;
// exactly one request may hold this at a time (see the concurrency model).
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// AppendMessage appends to history and bumps UpdatedAt.
func (s *Session) AppendMessage(m Message) {
	s.History = append(s.History, m)
	s.UpdatedAt = time.Now().UTC()
}

// ClearHistory implements the blocked-tool-output compensating action.
func (s *Session) ClearHistory() {
	s.History = nil
	s.UpdatedAt = time.Now().UTC()
}

// Files returns the session's file map, creating it on first access.
func (s *Session) Files() map[string]*FileRef {
	raw, ok := s.Context["files"]
	if !ok {
		m := map[string]*FileRef{}
		s.Context["files"] = m
		return m
	}
	m, ok := raw.(map[string]*FileRef)
	if !ok {
		m = map[string]*FileRef{}
		s.Context["files"] = m
	}
	return m
}

// Incognito reports whether conversation persistence should be skipped.
func (s *Session) Incognito() bool {
	v, _ := s.Context["_incognito"].(bool)
	return v
}

// ConversationID returns the persisted-conversation id, defaulting to the
// session id on first save (see Orchestrator.persistConversation).
func (s *Session) ConversationID() string {
	if v, ok := s.Context["conversation_id"].(string); ok && v != "" {
		return v
	}
	return s.ID
}

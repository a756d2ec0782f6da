package domain

// AgentContext is the transient, per-run state handed to an agent loop.
type AgentContext struct {
	SessionID string
	UserEmail string
	Files     map[string]*FileRef
	History   []Message
}

// AgentEventType enumerates the events an agent loop may emit; the Agent
// Event Relay maps each to a publisher call (or, for AgentToolResults, to
// the artifact processor).
type AgentEventType string

const (
	AgentStart        AgentEventType = "agent_start"
	AgentTurnStart     AgentEventType = "agent_turn_start"
	AgentReason        AgentEventType = "agent_reason"
	AgentRequestInput  AgentEventType = "agent_request_input"
	AgentToolStart     AgentEventType = "agent_tool_start"
	AgentToolComplete  AgentEventType = "agent_tool_complete"
	AgentToolResults   AgentEventType = "agent_tool_results"
	AgentObserve       AgentEventType = "agent_observe"
	AgentCompletion    AgentEventType = "agent_completion"
	AgentTokenStream   AgentEventType = "agent_token_stream"
	AgentError         AgentEventType = "agent_error"
)

// AgentEvent is one notification raised during an agent loop run.
type AgentEvent struct {
	Type    AgentEventType
	Payload map[string]any
}

// AgentResult is what an agent loop returns on completion.
type AgentResult struct {
	FinalAnswer string
	Steps       int
	Metadata    map[string]any
}

// Package orchestrator implements the Orchestrator (spec §4.10, C10): the
// single entry point that turns one inbound chat request into session
// mutation, mode dispatch, and the publisher events a transport relays to
// its client. Nothing outside this package decides which mode runner
// handles a request.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/atlaschat/core/internal/authz"
	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/event"
	"github.com/atlaschat/core/internal/extract"
	"github.com/atlaschat/core/internal/filestore"
	"github.com/atlaschat/core/internal/logging"
	"github.com/atlaschat/core/internal/mcp"
	"github.com/atlaschat/core/internal/modes"
	"github.com/atlaschat/core/internal/publisher"
	"github.com/atlaschat/core/internal/repository"
	"github.com/atlaschat/core/internal/security"
)

// ConversationRepository is the optional long-term persistence port (spec
// §4.10 step 8). Real persistence (a database, a file per conversation) is
// out of this module's scope beyond the port itself; NoOp is the default.
type ConversationRepository interface {
	Save(ctx context.Context, conversationID, userEmail string, history []domain.Message) error
}

// NoOpConversationRepository never persists; SaveConversation always
// succeeds silently, matching "conversation persistence is best-effort"
// (spec §4.10 step 8: "persistence failure must not fail the request").
type NoOpConversationRepository struct{}

func (NoOpConversationRepository) Save(ctx context.Context, conversationID, userEmail string, history []domain.Message) error {
	return nil
}

var _ ConversationRepository = NoOpConversationRepository{}

// SystemPromptProvider returns the base system prompt for a request,
// parameterized on the requesting user's email (spec §4.10 step 4:
// "{user_email} substitution"). A nil provider means no system prompt.
type SystemPromptProvider func(userEmail string) string

// PromptSelection names one MCP prompt to retrieve as a system-message
// override (spec §4.10 step 5).
type PromptSelection struct {
	ServerName string
	PromptName string
	Arguments  map[string]string
}

// FileUpload is one inbound file attachment (spec §4.10 step 3).
type FileUpload struct {
	Filename string
	Content  []byte
}

// Request is everything one call to Execute needs. Only SessionID and
// Content are required; the rest select optional behavior.
type Request struct {
	SessionID string
	Content   string
	Model     string
	UserEmail string

	SelectedTools       []string
	SelectedPrompts     []PromptSelection
	SelectedDataSources []string
	OnlyRAG             bool

	AgentMode StrategySelection // zero value means "not agent mode"
	MaxSteps  int

	Temperature float64
	Files       []FileUpload
}

// StrategySelection turns agent mode on when Strategy is non-empty.
type StrategySelection struct {
	Strategy  modes.StrategyName
	Streaming bool
}

func (s StrategySelection) enabled() bool { return s.Strategy != "" }

// Orchestrator wires every C1-C9 port together and implements spec
// §4.10's eight-step Execute algorithm.
type Orchestrator struct {
	Repository   repository.Repository
	Security     security.Checker
	Files        filestore.Store
	MCP          *mcp.Client
	Policy       authz.Policy
	Conversation ConversationRepository
	SystemPrompt SystemPromptProvider

	Plain *modes.PlainRunner
	RAG   *modes.RAGRunner
	Tools *modes.ToolsRunner
	Agent *modes.AgentRunner
}

func (o *Orchestrator) checker() security.Checker {
	if o.Security != nil {
		return o.Security
	}
	return security.NoOp{}
}

func (o *Orchestrator) conversationRepo() ConversationRepository {
	if o.Conversation != nil {
		return o.Conversation
	}
	return NoOpConversationRepository{}
}

// Execute runs the full per-request pipeline against pub, mutating the
// session in place. It returns an error only for conditions that abort
// the request before any mode runner streams a response; once a mode
// runner has started, failures are surfaced through pub instead (spec
// §4.10's error-handling split between "reject the request" and "stream
// an error event").
func (o *Orchestrator) Execute(ctx context.Context, req Request, pub publisher.Publisher) error {
	// Step 1: session lookup.
	session, ok := o.Repository.Get(req.SessionID)
	if !ok {
		return domain.NewSessionNotFoundError(req.SessionID)
	}

	session.Lock()
	defer session.Unlock()

	// Step 2: append user message, security-check input, bump updated_at.
	userMessage := domain.NewMessage(domain.RoleUser, req.Content)
	session.AppendMessage(userMessage)

	historyStrings := historyToStrings(session.History)
	checked, err := o.checker().CheckInput(ctx, req.Content, historyStrings[:len(historyStrings)-1], req.UserEmail)
	if err != nil {
		logging.Error().Err(err).Str("session_id", req.SessionID).Msg("security input check failed")
	} else if checked.Blocked() {
		session.History = session.History[:len(session.History)-1]
		pub.PublishSecurityWarning(ctx, event.SecurityBlocked, checked.Message)
		return domain.NewValidationError(checked.Message, "input_blocked")
	}

	// Step 3: file ingestion.
	if len(req.Files) > 0 && o.Files != nil {
		if err := o.ingestFiles(ctx, session, req, pub); err != nil {
			logging.Warn().Err(err).Str("session_id", req.SessionID).Msg("file ingestion failed")
		}
	}

	// Step 4: assemble the outbound message list.
	messages := o.assembleMessages(session, req)

	// Step 5: MCP prompt override, first success wins.
	if len(req.SelectedPrompts) > 0 && o.MCP != nil {
		if prompt, ok := o.resolvePromptOverride(ctx, req.SelectedPrompts); ok {
			messages = append([]domain.Message{{Role: domain.RoleSystem, Content: prompt}}, messages...)
		}
	}

	// Step 6: mode routing, exact precedence agent > tools > rag > plain.
	switch {
	case req.AgentMode.enabled():
		return o.runAgent(ctx, session, req, messages, pub)
	case len(req.SelectedTools) > 0 && !req.OnlyRAG:
		return o.runTools(ctx, session, req, messages, pub)
	case len(req.SelectedDataSources) > 0:
		return o.runRAG(ctx, session, req, messages, pub)
	default:
		return o.runPlain(ctx, session, req, messages, pub)
	}
}

func historyToStrings(messages []domain.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}

// ingestFiles uploads every attachment, extracts content per its content
// type, and records a domain.FileRef in the session's file map (spec
// §4.10 step 3).
func (o *Orchestrator) ingestFiles(ctx context.Context, session *domain.Session, req Request, pub publisher.Publisher) error {
	files := session.Files()
	for _, f := range req.Files {
		meta, err := o.Files.Upload(ctx, req.UserEmail, f.Filename, f.Content, domain.FileSourceUser, nil)
		if err != nil {
			return fmt.Errorf("upload %s: %w", f.Filename, err)
		}

		result := extract.Extract(meta.ContentType, f.Content)
		files[f.Filename] = &domain.FileRef{
			Key:                meta.Key,
			ContentType:        meta.ContentType,
			Size:               meta.Size,
			Source:             domain.FileSourceUser,
			LastModified:       meta.LastModified,
			ExtractMode:        result.Mode,
			ExtractedContent:   result.Content,
			ExtractedPreview:   result.Preview,
			ExtractionMetadata: result.Metadata,
		}
	}
	pub.PublishFilesUpdate(ctx, filestore.OrganizeFilesMetadata(files))
	return nil
}

// assembleMessages builds the LLM-bound message list: an optional system
// prompt, full history, and a files manifest appended as a trailing
// system message when the session carries attachments (spec §4.10 step 4).
func (o *Orchestrator) assembleMessages(session *domain.Session, req Request) []domain.Message {
	var messages []domain.Message
	if o.SystemPrompt != nil {
		if prompt := o.SystemPrompt(req.UserEmail); prompt != "" {
			messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: prompt})
		}
	}
	messages = append(messages, session.History...)

	if files := session.Files(); len(files) > 0 {
		messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: filesManifestText(files)})
	}
	return messages
}

func filesManifestText(files map[string]*domain.FileRef) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Files attached to this conversation:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s (%s)\n", name, files[name].ContentType)
	}
	return b.String()
}

// resolvePromptOverride tries each selection in order, returning the first
// successfully retrieved prompt's concatenated text. A server that fails
// to answer is skipped, never aborting the request (spec §4.10 step 5,
// Open Question: "first success only, no retry").
func (o *Orchestrator) resolvePromptOverride(ctx context.Context, selections []PromptSelection) (string, bool) {
	for _, sel := range selections {
		resp, err := o.MCP.GetPrompt(ctx, sel.ServerName, sel.PromptName, sel.Arguments)
		if err != nil {
			logging.Warn().Err(err).Str("server", sel.ServerName).Str("prompt", sel.PromptName).Msg("mcp prompt override failed")
			continue
		}
		var b strings.Builder
		for _, m := range resp.Messages {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(m.Content.Text)
		}
		if b.Len() == 0 {
			continue
		}
		return b.String(), true
	}
	return "", false
}

// filterAuthorizedTools drops any requested tool name the policy doesn't
// authorize (spec §4.10 step 6 / §4.11): unauthorized selections are
// silently removed rather than rejecting the whole request.
func filterAuthorizedTools(policy authz.Policy, names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if policy.IsAuthorized(name) {
			out = append(out, name)
		}
	}
	return out
}

func (o *Orchestrator) runPlain(ctx context.Context, session *domain.Session, req Request, messages []domain.Message, pub publisher.Publisher) error {
	o.Plain.RunStreaming(ctx, session, req.Model, messages, req.Temperature, pub)
	o.persistConversation(ctx, session, req, pub)
	return nil
}

func (o *Orchestrator) runRAG(ctx context.Context, session *domain.Session, req Request, messages []domain.Message, pub publisher.Publisher) error {
	o.RAG.RunStreaming(ctx, session, req.Model, messages, req.SelectedDataSources, req.UserEmail, req.Temperature, pub)
	o.persistConversation(ctx, session, req, pub)
	return nil
}

func (o *Orchestrator) runTools(ctx context.Context, session *domain.Session, req Request, messages []domain.Message, pub publisher.Publisher) error {
	authorized := filterAuthorizedTools(o.Policy, req.SelectedTools)
	// The Tool Executor is a single process-wide instance shared across every
	// concurrent session (spec §5); Bind routes this request's tool events to
	// its own pub for the duration of the call instead of the Executor's
	// zero-value static Pub.
	unbind := o.Tools.Executor.Bind(session.ID, pub)
	err := o.Tools.RunStreaming(ctx, session, req.Model, messages, authorized, req.UserEmail, req.Temperature, pub)
	unbind()
	if err != nil {
		pub.PublishError(ctx, err.Error())
		return nil
	}
	o.persistConversation(ctx, session, req, pub)
	return nil
}

func (o *Orchestrator) runAgent(ctx context.Context, session *domain.Session, req Request, messages []domain.Message, pub publisher.Publisher) error {
	authorized := filterAuthorizedTools(o.Policy, req.SelectedTools)
	unbind := o.Agent.Executor.Bind(session.ID, pub)
	_, err := o.Agent.Run(ctx, session, req.AgentMode.Strategy, req.Model, messages, authorized, req.SelectedDataSources, req.MaxSteps, req.Temperature, req.AgentMode.Streaming, pub)
	unbind()
	if err != nil {
		// AgentRunner.Run already published the error event; nothing more
		// to surface here.
		return nil
	}
	o.persistConversation(ctx, session, req, pub)
	return nil
}

// persistConversation implements spec §4.10 step 8: best-effort, skipped
// entirely for incognito sessions or anonymous requests, emitting
// conversation_saved only on a successful write.
func (o *Orchestrator) persistConversation(ctx context.Context, session *domain.Session, req Request, pub publisher.Publisher) {
	if session.Incognito() || req.UserEmail == "" {
		return
	}
	conversationID := session.ConversationID()
	if err := o.conversationRepo().Save(ctx, conversationID, req.UserEmail, session.History); err != nil {
		logging.Warn().Err(err).Str("conversation_id", conversationID).Msg("conversation persistence failed")
		return
	}
	pub.PublishConversationSaved(ctx, conversationID)
}

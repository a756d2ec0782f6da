package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlaschat/core/internal/authz"
	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/modes"
	"github.com/atlaschat/core/internal/publisher"
	"github.com/atlaschat/core/internal/repository"
	"github.com/atlaschat/core/internal/security"
	"github.com/atlaschat/core/internal/streaming"
)

// fakeCaller is a minimal llm.Caller whose every response is a fixed
// string, enough to exercise the orchestrator's mode-routing without a
// real provider.
type fakeCaller struct {
	content string
}

func (f *fakeCaller) CallPlain(ctx context.Context, model string, messages []domain.Message, temperature float64) (llm.Response, error) {
	return llm.Response{Content: f.content}, nil
}
func (f *fakeCaller) StreamPlain(ctx context.Context, model string, messages []domain.Message, temperature float64) streaming.TokenSource {
	return func(yield func(string, error) bool) { yield(f.content, nil) }
}
func (f *fakeCaller) CallWithTools(ctx context.Context, model string, messages []domain.Message, tools []llm.ToolSpec, temperature float64) (llm.Response, error) {
	return llm.Response{Content: f.content}, nil
}
func (f *fakeCaller) StreamWithTools(ctx context.Context, model string, messages []domain.Message, tools []llm.ToolSpec, temperature float64) (streaming.TokenSource, func() llm.Response) {
	return func(yield func(string, error) bool) { yield(f.content, nil) }, func() llm.Response { return llm.Response{Content: f.content} }
}
func (f *fakeCaller) CallWithRAG(ctx context.Context, model string, messages []domain.Message, ragContext string, temperature float64) (llm.Response, error) {
	return llm.Response{Content: f.content}, nil
}
func (f *fakeCaller) StreamWithRAG(ctx context.Context, model string, messages []domain.Message, ragContext string, temperature float64) streaming.TokenSource {
	return func(yield func(string, error) bool) { yield(f.content, nil) }
}
func (f *fakeCaller) CallWithRAGAndTools(ctx context.Context, model string, messages []domain.Message, ragContext string, tools []llm.ToolSpec, temperature float64) (llm.Response, error) {
	return llm.Response{Content: f.content}, nil
}
func (f *fakeCaller) StreamWithRAGAndTools(ctx context.Context, model string, messages []domain.Message, ragContext string, tools []llm.ToolSpec, temperature float64) (streaming.TokenSource, func() llm.Response) {
	return func(yield func(string, error) bool) { yield(f.content, nil) }, func() llm.Response { return llm.Response{Content: f.content} }
}

var _ llm.Caller = (*fakeCaller)(nil)

func newTestOrchestrator() (*Orchestrator, repository.Repository) {
	repo := repository.NewInMemory()
	caller := &fakeCaller{content: "hello there"}
	return &Orchestrator{
		Repository: repo,
		Security:   security.NoOp{},
		Policy:     authz.DefaultPolicy(),
		Plain:      &modes.PlainRunner{Caller: caller},
		RAG:        &modes.RAGRunner{Caller: caller},
	}, repo
}

func TestExecute_SessionNotFound(t *testing.T) {
	o, _ := newTestOrchestrator()
	err := o.Execute(context.Background(), Request{SessionID: "missing", Content: "hi"}, publisher.NewCollectingCLIPublisher())
	require.Error(t, err)
	var notFound *domain.SessionNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestExecute_PlainMode_NoToolsNoRAG(t *testing.T) {
	o, repo := newTestOrchestrator()
	repo.GetOrCreate("s1")
	pub := publisher.NewCollectingCLIPublisher()

	err := o.Execute(context.Background(), Request{SessionID: "s1", Content: "hi", Model: "anthropic/claude"}, pub)
	require.NoError(t, err)

	session, _ := repo.Get("s1")
	require.Len(t, session.History, 2)
	assert.Equal(t, domain.RoleUser, session.History[0].Role)
	assert.Equal(t, "hi", session.History[0].Content)
	assert.Equal(t, domain.RoleAssistant, session.History[1].Role)
	assert.Equal(t, "hello there", session.History[1].Content)
}

func TestExecute_RAGMode_WhenDataSourcesSelected(t *testing.T) {
	o, repo := newTestOrchestrator()
	repo.GetOrCreate("s1")
	pub := publisher.NewCollectingCLIPublisher()

	err := o.Execute(context.Background(), Request{
		SessionID:           "s1",
		Content:             "hi",
		Model:               "anthropic/claude",
		SelectedDataSources: []string{"docs:search"},
	}, pub)
	require.NoError(t, err)

	session, _ := repo.Get("s1")
	require.Len(t, session.History, 2)
	assert.Equal(t, []string{"docs:search"}, session.History[1].Metadata["data_sources"])
}

func TestExecute_EmptyDataSources_RoutesToPlainNotRAG(t *testing.T) {
	o, repo := newTestOrchestrator()
	repo.GetOrCreate("s1")
	pub := publisher.NewCollectingCLIPublisher()

	err := o.Execute(context.Background(), Request{
		SessionID:           "s1",
		Content:             "hi",
		SelectedDataSources: []string{},
	}, pub)
	require.NoError(t, err)

	session, _ := repo.Get("s1")
	// Plain mode's assistant message never sets data_sources metadata.
	_, hasDataSources := session.History[1].Metadata["data_sources"]
	assert.False(t, hasDataSources)
}

type blockingChecker struct{ message string }

func (b blockingChecker) CheckInput(ctx context.Context, content string, history []string, userEmail string) (security.Result, error) {
	return security.Result{Status: security.StatusBlocked, Message: b.message}, nil
}
func (b blockingChecker) CheckOutput(ctx context.Context, content string, history []string, userEmail string) (security.Result, error) {
	return security.Result{Status: security.StatusGood}, nil
}
func (b blockingChecker) CheckToolRAGOutput(ctx context.Context, content, sourceType string, history []string, userEmail string) (security.Result, error) {
	return security.Result{Status: security.StatusGood}, nil
}

func TestExecute_BlockedInput_ClearsMessageAndWarns(t *testing.T) {
	o, repo := newTestOrchestrator()
	o.Security = blockingChecker{message: "blocked for testing"}
	repo.GetOrCreate("s1")
	pub := publisher.NewCollectingCLIPublisher()

	err := o.Execute(context.Background(), Request{SessionID: "s1", Content: "bad input"}, pub)
	require.Error(t, err)

	session, _ := repo.Get("s1")
	assert.Empty(t, session.History, "blocked user message must be popped back off history")

	found := false
	for _, e := range pub.Result().RawEvents {
		if e.Type == "security_warning" {
			found = true
		}
	}
	assert.True(t, found, "expected a security_warning event")
}

func TestExecute_Incognito_SkipsConversationPersistence(t *testing.T) {
	o, repo := newTestOrchestrator()
	saved := false
	o.Conversation = conversationSaveSpy{onSave: func() { saved = true }}

	session := repo.GetOrCreate("s1")
	session.Context["_incognito"] = true
	pub := publisher.NewCollectingCLIPublisher()

	err := o.Execute(context.Background(), Request{SessionID: "s1", Content: "hi", UserEmail: "user@example.com"}, pub)
	require.NoError(t, err)
	assert.False(t, saved, "incognito sessions must not persist")
}

func TestExecute_PersistsConversation_WhenUserEmailPresent(t *testing.T) {
	o, repo := newTestOrchestrator()
	saved := false
	o.Conversation = conversationSaveSpy{onSave: func() { saved = true }}
	repo.GetOrCreate("s1")
	pub := publisher.NewCollectingCLIPublisher()

	err := o.Execute(context.Background(), Request{SessionID: "s1", Content: "hi", UserEmail: "user@example.com"}, pub)
	require.NoError(t, err)
	assert.True(t, saved)

	foundSaved := false
	for _, e := range pub.Result().RawEvents {
		if e.Type == "conversation_saved" {
			foundSaved = true
		}
	}
	assert.True(t, foundSaved)
}

type conversationSaveSpy struct {
	onSave func()
}

func (s conversationSaveSpy) Save(ctx context.Context, conversationID, userEmail string, history []domain.Message) error {
	s.onSave()
	return nil
}

func TestFilterAuthorizedTools_DropsUnauthorized(t *testing.T) {
	policy := authz.Policy{AllowPatterns: []string{"search_*"}}
	out := filterAuthorizedTools(policy, []string{"search_query", "shell_exec"})
	assert.Equal(t, []string{"search_query"}, out)
}

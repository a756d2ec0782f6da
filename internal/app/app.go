// Package app wires every SPEC_FULL.md component into a runnable
// Orchestrator: LLM registry, MCP client, RAG aggregator, the Tool
// Executor, the four mode runners, and the session repository. Both
// cmd/atlaschat and cmd/atlaschat-server build an *App from the same
// config.Config instead of duplicating this construction, the way the
// teacher's cmd/opencode/commands/run.go and cmd/opencode-server/main.go
// each inline an equivalent sequence for their own entry point.
package app

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/atlaschat/core/internal/authz"
	"github.com/atlaschat/core/internal/capability"
	"github.com/atlaschat/core/internal/config"
	"github.com/atlaschat/core/internal/filestore"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/logging"
	"github.com/atlaschat/core/internal/mcp"
	"github.com/atlaschat/core/internal/modes"
	"github.com/atlaschat/core/internal/orchestrator"
	"github.com/atlaschat/core/internal/rag"
	"github.com/atlaschat/core/internal/repository"
	"github.com/atlaschat/core/internal/security"
	"github.com/atlaschat/core/internal/tool"
)

// App is everything a transport (cmd/atlaschat's CLI runner, or
// internal/server's HTTP/WS handlers) needs to serve requests.
type App struct {
	Config       *config.Config
	Repository   *repository.InMemory
	Orchestrator *orchestrator.Orchestrator
	MCP          *mcp.Client
	Capability   *capability.Issuer
}

// Build constructs an App from cfg. It connects every configured MCP
// server but tolerates individual connection failures (mirroring the
// teacher's InitializeMCP, which logs and continues rather than aborting
// startup over one unreachable server).
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	registry, err := llm.InitRegistry(ctx, cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("init llm registry: %w", err)
	}
	caller := llm.NewEinoCaller(registry.Resolve)

	mcpClient := mcp.NewClient()
	for name, serverCfg := range cfg.MCPServers {
		if err := mcpClient.AddServer(ctx, name, serverCfg); err != nil {
			logging.Warn().Err(err).Str("server", name).Msg("mcp server connection failed, continuing without it")
		}
	}
	toolClient := mcp.NewToolClientAdapter(mcpClient)

	secret, err := capabilitySecret()
	if err != nil {
		return nil, fmt.Errorf("generate capability secret: %w", err)
	}
	issuer := capability.NewIssuer(secret, capability.DefaultTTL)

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, fmt.Errorf("ensure paths: %w", err)
	}
	store := filestore.NewLocalStore(paths.StoragePath())

	repo := repository.NewInMemory()

	policy := authz.Policy{
		AllowPatterns:   cfg.Authz.AllowPatterns,
		RequireApproval: cfg.Authz.RequireApproval,
		ForceApproval:   cfg.Authz.ForceApproval,
	}
	if len(policy.AllowPatterns) == 0 {
		policy = authz.DefaultPolicy()
	}

	knownServers := make([]string, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		knownServers = append(knownServers, name)
	}

	executor := &tool.Executor{
		Client:       toolClient,
		Policy:       policy,
		Issuer:       issuer,
		Sessions:     repo,
		KnownServers: knownServers,
	}

	aggregator, err := buildAggregator(ctx, cfg, mcpClient)
	if err != nil {
		return nil, fmt.Errorf("build rag aggregator: %w", err)
	}

	orch := &orchestrator.Orchestrator{
		Repository: repo,
		Security:   security.NoOp{},
		Files:      store,
		MCP:        mcpClient,
		Policy:     policy,
		Plain:      &modes.PlainRunner{Caller: caller},
		RAG:        &modes.RAGRunner{Caller: caller, Aggregator: aggregator},
		Tools:      &modes.ToolsRunner{Caller: caller, Executor: executor, Security: security.NoOp{}},
		Agent:      &modes.AgentRunner{Caller: caller, Executor: executor},
	}

	return &App{
		Config:       cfg,
		Repository:   repo,
		Orchestrator: orch,
		MCP:          mcpClient,
		Capability:   issuer,
	}, nil
}

// Close releases resources Build acquired (currently just MCP server
// connections).
func (a *App) Close() error {
	return a.MCP.Close()
}

// buildAggregator wires one rag.Backend per configured entry. An unknown
// Type is skipped with a warning rather than failing the whole build —
// one misconfigured backend shouldn't take every other data source down
// with it, matching rag.Aggregator's own per-backend tolerance for
// discovery failures at request time.
func buildAggregator(ctx context.Context, cfg *config.Config, mcpClient *mcp.Client) (*rag.Aggregator, error) {
	var backends []rag.Backend
	for _, b := range cfg.RAGBackends {
		switch b.Type {
		case "http":
			backends = append(backends, rag.NewHTTPBackend(b.ServerName, b.BaseURL, b.Headers))
		case "mcp":
			backends = append(backends, rag.NewMCPBackend(b.ServerName, mcpClient, b.DiscoverTool, b.QueryTool))
		case "embedded":
			// Embedded corpora are populated out of band (e.g. an operator
			// script loading documents into chromem-go); SPEC_FULL.md's
			// config surface only names the backend, not its documents, so
			// it starts empty here.
			backend, err := rag.NewEmbeddedBackend(ctx, b.ServerName, b.DisplayName, nil)
			if err != nil {
				return nil, fmt.Errorf("rag backend %q: %w", b.ServerName, err)
			}
			backends = append(backends, backend)
		default:
			logging.Warn().Str("server", b.ServerName).Str("type", b.Type).Msg("unknown rag backend type, skipping")
		}
	}
	return rag.NewAggregator(backends...), nil
}

// capabilitySecret generates a random HMAC secret for signing capability
// tokens. A fixed secret across restarts would need a config field and
// secure storage neither SPEC_FULL.md nor the teacher's auth.json model
// provides yet; a per-process random secret is safe here because
// capability tokens are short-lived (DefaultTTL) and never need to
// outlive the process that issued them.
func capabilitySecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// Package config loads atlaschat's runtime configuration: LLM provider
// credentials, MCP server manifests, RAG backend wiring, the tool
// authorization policy, and the HTTP/WebSocket server address. Following
// the teacher's own config loader, files may be JSONC or YAML and any
// string value may reference `${NAME}` — resolved against the process
// environment at load time (spec §6).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/atlaschat/core/internal/domain"
	"github.com/atlaschat/core/internal/llm"
	"github.com/atlaschat/core/internal/mcp"
)

// ServerConfig is the HTTP/WebSocket listen address for the atlaschat-server
// binary (cmd/atlaschat-server).
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// AuthzConfig maps directly onto authz.Policy's fields so it can be loaded
// from a file without internal/authz needing to know about serialization.
type AuthzConfig struct {
	AllowPatterns   []string `yaml:"allow_patterns" json:"allow_patterns"`
	RequireApproval []string `yaml:"require_approval" json:"require_approval"`
	ForceApproval   bool     `yaml:"force_approval" json:"force_approval"`
}

// RAGBackendConfig describes one RAG backend to wire into the Aggregator.
// Type selects which internal/rag constructor handles it; fields outside
// that type's needs are ignored.
type RAGBackendConfig struct {
	Type         string            `yaml:"type" json:"type"` // "http", "mcp", "embedded"
	ServerName   string            `yaml:"server_name" json:"server_name"`
	DisplayName  string            `yaml:"display_name" json:"display_name"`
	BaseURL      string            `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	DiscoverTool string            `yaml:"discover_tool,omitempty" json:"discover_tool,omitempty"`
	QueryTool    string            `yaml:"query_tool,omitempty" json:"query_tool,omitempty"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// providerFile is the on-disk shape of one LLM provider entry; APIKey/BaseURL
// may contain ${NAME} references resolved by ExpandEnv before becoming an
// llm.ProviderConfig.
type providerFile struct {
	Kind      string `yaml:"kind" json:"kind"`
	APIKey    string `yaml:"api_key" json:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Model     string `yaml:"model" json:"model"`
	MaxTokens int    `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// file is the on-disk config shape, parsed from YAML or JSONC depending on
// extension.
type file struct {
	Server       ServerConfig                `yaml:"server" json:"server"`
	DefaultModel string                      `yaml:"default_model" json:"default_model"`
	Providers    map[string]providerFile     `yaml:"providers" json:"providers"`
	MCPServers   map[string]*mcp.Config      `yaml:"mcp_servers" json:"mcp_servers"`
	RAGBackends  []RAGBackendConfig          `yaml:"rag_backends,omitempty" json:"rag_backends,omitempty"`
	Authz        AuthzConfig                 `yaml:"authz" json:"authz"`
	Logging      LoggingConfig               `yaml:"logging" json:"logging"`
}

// Config is the fully resolved, environment-expanded runtime configuration.
type Config struct {
	Server       ServerConfig
	DefaultModel string
	Providers    []llm.ProviderConfig
	MCPServers   map[string]*mcp.Config
	RAGBackends  []RAGBackendConfig
	Authz        AuthzConfig
	Logging      LoggingConfig
}

// Load reads and merges configuration the way the teacher does: first a
// `.env` load (joho/godotenv, silently skipped if absent) so ${NAME}
// references in the config files resolve against variables defined there
// too, then a global file under GetPaths().Config, then a project-local
// file under directory (if non-empty), each overriding the previous. Every
// string field is then run through ExpandEnv.
func Load(directory string) (*Config, error) {
	_ = godotenv.Load() // local .env is optional; ignore a missing file

	merged := &file{
		Providers:  map[string]providerFile{},
		MCPServers: map[string]*mcp.Config{},
	}

	loadInto(filepath.Join(GetPaths().Config, "atlaschat.yaml"), merged)
	loadInto(filepath.Join(GetPaths().Config, "atlaschat.json"), merged)
	if directory != "" {
		loadInto(filepath.Join(directory, ".atlaschat", "atlaschat.yaml"), merged)
		loadInto(filepath.Join(directory, ".atlaschat", "atlaschat.json"), merged)
	}
	applyEnvOverrides(merged)

	return resolve(merged)
}

// loadInto reads path (YAML or JSONC, selected by extension) and merges its
// fields into target. A missing file is not an error — callers probe
// several candidate paths.
func loadInto(path string, target *file) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var loaded file
	var parseErr error
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		parseErr = yaml.Unmarshal(data, &loaded)
	default:
		parseErr = yamlCompatibleJSON(data, &loaded)
	}
	if parseErr != nil {
		return
	}

	mergeFile(target, &loaded)
}

// yamlCompatibleJSON strips JSONC comments and unmarshals the result as
// JSON (yaml.Unmarshal also accepts JSON, but stripping comments first
// keeps this path explicit about where JSONC support lives).
func yamlCompatibleJSON(data []byte, out *file) error {
	return yaml.Unmarshal(jsonc.ToJSON(data), out)
}

// mergeFile merges source's non-zero fields into target, last-write-wins
// per field, matching the teacher's global-then-project merge order.
func mergeFile(target, source *file) {
	if source.Server.Host != "" {
		target.Server.Host = source.Server.Host
	}
	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.DefaultModel != "" {
		target.DefaultModel = source.DefaultModel
	}
	for k, v := range source.Providers {
		target.Providers[k] = v
	}
	for k, v := range source.MCPServers {
		target.MCPServers[k] = v
	}
	if len(source.RAGBackends) > 0 {
		target.RAGBackends = source.RAGBackends
	}
	if len(source.Authz.AllowPatterns) > 0 {
		target.Authz.AllowPatterns = source.Authz.AllowPatterns
	}
	if len(source.Authz.RequireApproval) > 0 {
		target.Authz.RequireApproval = source.Authz.RequireApproval
	}
	if source.Authz.ForceApproval {
		target.Authz.ForceApproval = true
	}
	if source.Logging.Level != "" {
		target.Logging.Level = source.Logging.Level
	}
	if source.Logging.Pretty {
		target.Logging.Pretty = true
	}
}

// applyEnvOverrides lets ATLAS_* environment variables override file-based
// configuration, mirroring the teacher's OPENCODE_MODEL-style overrides.
func applyEnvOverrides(f *file) {
	if model := os.Getenv("ATLAS_MODEL"); model != "" {
		f.DefaultModel = model
	}
	if level := os.Getenv("ATLAS_LOG_LEVEL"); level != "" {
		f.Logging.Level = level
	}
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
	}
	for provider, envVar := range providerEnvMap {
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			continue
		}
		p := f.Providers[provider]
		if p.APIKey == "" {
			p.APIKey = apiKey
			if p.Kind == "" {
				p.Kind = provider
			}
			f.Providers[provider] = p
		}
	}
}

// resolve expands ${NAME} references across every string field and
// converts the on-disk shape into the resolved Config the rest of the
// runtime consumes.
func resolve(f *file) (*Config, error) {
	cfg := &Config{
		Server:       ServerConfig{Host: orDefault(f.Server.Host, "0.0.0.0"), Port: orDefaultInt(f.Server.Port, 8080)},
		DefaultModel: f.DefaultModel,
		MCPServers:   f.MCPServers,
		RAGBackends:  f.RAGBackends,
		Authz:        f.Authz,
		Logging:      LoggingConfig{Level: orDefault(f.Logging.Level, "info"), Pretty: f.Logging.Pretty},
	}

	var err error
	if cfg.DefaultModel, err = ExpandEnv(cfg.DefaultModel); err != nil {
		return nil, err
	}

	for id, p := range f.Providers {
		apiKey, err := ExpandEnv(p.APIKey)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", id, err)
		}
		baseURL, err := ExpandEnv(p.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", id, err)
		}
		kind := p.Kind
		if kind == "" {
			kind = id
		}
		cfg.Providers = append(cfg.Providers, llm.ProviderConfig{
			ID: id, Kind: kind, APIKey: apiKey, BaseURL: baseURL, Model: p.Model, MaxTokens: p.MaxTokens,
		})
	}

	for name, server := range cfg.MCPServers {
		for k, v := range server.Environment {
			expanded, err := ExpandEnv(v)
			if err != nil {
				return nil, fmt.Errorf("mcp server %q env %q: %w", name, k, err)
			}
			server.Environment[k] = expanded
		}
		for k, v := range server.Headers {
			expanded, err := ExpandEnv(v)
			if err != nil {
				return nil, fmt.Errorf("mcp server %q header %q: %w", name, k, err)
			}
			server.Headers[k] = expanded
		}
	}

	for i, backend := range cfg.RAGBackends {
		baseURL, err := ExpandEnv(backend.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("rag backend %q: %w", backend.ServerName, err)
		}
		cfg.RAGBackends[i].BaseURL = baseURL
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// envVarPattern matches ${NAME} references (spec §6's environment variable
// convention), grounded in the original's `_resolve_env_vars`.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv resolves every ${NAME} reference in s against the process
// environment, returning a domain.ConfigurationError for any name that is
// referenced but unset.
func ExpandEnv(s string) (string, error) {
	if s == "" || !envVarPattern.MatchString(s) {
		return s, nil
	}

	var missing []string
	expanded := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})

	if len(missing) > 0 {
		return "", domain.NewConfigurationError(fmt.Sprintf("missing required environment variable(s): %v", missing))
	}
	return expanded, nil
}

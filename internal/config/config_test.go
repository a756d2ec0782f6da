package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_GlobalAndProjectMerge(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	globalDir := filepath.Join(home, ".config", "atlaschat")
	require.NoError(t, os.MkdirAll(globalDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "atlaschat.yaml"), []byte(`
default_model: anthropic/claude-sonnet-4-20250514
server:
  host: 127.0.0.1
  port: 9000
providers:
  anthropic:
    kind: anthropic
    api_key: sk-test-global
    model: claude-sonnet-4-20250514
`), 0644))

	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, ".atlaschat"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, ".atlaschat", "atlaschat.yaml"), []byte(`
server:
  port: 9100
`), 0644))

	cfg, err := Load(project)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4-20250514", cfg.DefaultModel)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9100, cfg.Server.Port, "project config should override the global port")
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-test-global", cfg.Providers[0].APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
	t.Setenv("ATLAS_MODEL", "anthropic/claude-haiku")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-haiku", cfg.DefaultModel)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-from-env", cfg.Providers[0].APIKey)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("ATLAS_TEST_VAR", "resolved")

	out, err := ExpandEnv("prefix-${ATLAS_TEST_VAR}-suffix")
	require.NoError(t, err)
	assert.Equal(t, "prefix-resolved-suffix", out)
}

func TestExpandEnv_NoReferences(t *testing.T) {
	out, err := ExpandEnv("plain value")
	require.NoError(t, err)
	assert.Equal(t, "plain value", out)
}

func TestExpandEnv_MissingRequired(t *testing.T) {
	_, err := ExpandEnv("${ATLAS_DEFINITELY_UNSET_VAR}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ConfigurationError")
}

func TestLoad_EnvExpansionInMCPServer(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("ATLAS_MCP_TOKEN", "secret-token")

	globalDir := filepath.Join(home, ".config", "atlaschat")
	require.NoError(t, os.MkdirAll(globalDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "atlaschat.yaml"), []byte(`
mcp_servers:
  search:
    enabled: true
    type: remote
    url: https://search.example.com/mcp
    headers:
      Authorization: "Bearer ${ATLAS_MCP_TOKEN}"
`), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Contains(t, cfg.MCPServers, "search")
	assert.Equal(t, "Bearer secret-token", cfg.MCPServers["search"].Headers["Authorization"])
}

package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// ProviderConfig configures one upstream LLM provider. Credentials are
// resolved ${VAR}-style by internal/config before reaching here (spec
// §6's environment variable convention); by the time InitRegistry runs,
// APIKey/BaseURL are plain values.
type ProviderConfig struct {
	ID        string
	Kind      string // "anthropic", "openai", "ark"
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Registry resolves "provider/model" strings to Eino chat models,
// grounded on the teacher's internal/provider.Registry — generalized
// here to construct models directly instead of wrapping them in a
// Provider interface, since this spec's LLM Caller port (C7) only ever
// needs the raw model.ToolCallingChatModel.
type Registry struct {
	mu     sync.RWMutex
	models map[string]model.ToolCallingChatModel
	def    string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]model.ToolCallingChatModel)}
}

// Register associates id ("provider/model", e.g. "anthropic/claude-sonnet-4-20250514")
// with cm.
func (r *Registry) Register(id string, cm model.ToolCallingChatModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[id] = cm
	if r.def == "" {
		r.def = id
	}
}

// SetDefault designates id as the model resolved for an empty model
// string.
func (r *Registry) SetDefault(id string) { r.mu.Lock(); r.def = id; r.mu.Unlock() }

// Resolve implements ChatModelResolver.
func (r *Registry) Resolve(modelID string) (model.ToolCallingChatModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if modelID == "" {
		modelID = r.def
	}
	cm, ok := r.models[modelID]
	if !ok {
		return nil, fmt.Errorf("model not registered: %s", modelID)
	}
	return cm, nil
}

// InitRegistry constructs chat models for every configured provider and
// registers each under "<id>/<model>", mirroring the teacher's
// InitializeProviders auto-registration-from-environment fallback for
// anthropic/openai when no explicit config entry exists.
func InitRegistry(ctx context.Context, configs []ProviderConfig) (*Registry, error) {
	reg := NewRegistry()
	configured := map[string]bool{}

	for _, cfg := range configs {
		configured[cfg.ID] = true
		cm, err := buildChatModel(ctx, cfg)
		if err != nil {
			continue
		}
		reg.Register(cfg.ID+"/"+cfg.Model, cm)
	}

	if !configured["anthropic"] {
		if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
			cfg := ProviderConfig{ID: "anthropic", Kind: "anthropic", APIKey: apiKey, Model: "claude-sonnet-4-20250514", MaxTokens: 8192}
			if cm, err := buildChatModel(ctx, cfg); err == nil {
				reg.Register(cfg.ID+"/"+cfg.Model, cm)
			}
		}
	}
	if !configured["openai"] {
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			cfg := ProviderConfig{ID: "openai", Kind: "openai", APIKey: apiKey, Model: "gpt-4o", MaxTokens: 4096}
			if cm, err := buildChatModel(ctx, cfg); err == nil {
				reg.Register(cfg.ID+"/"+cfg.Model, cm)
			}
		}
	}

	if len(reg.models) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}
	return reg, nil
}

func buildChatModel(ctx context.Context, cfg ProviderConfig) (model.ToolCallingChatModel, error) {
	switch cfg.Kind {
	case "anthropic", "claude":
		c := &claude.Config{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: cfg.MaxTokens}
		if cfg.BaseURL != "" {
			c.BaseURL = &cfg.BaseURL
		}
		return claude.NewChatModel(ctx, c)
	case "openai":
		maxTokens := cfg.MaxTokens
		if maxTokens == 0 {
			maxTokens = 4096
		}
		c := &openai.ChatModelConfig{APIKey: cfg.APIKey, Model: cfg.Model, MaxCompletionTokens: &maxTokens}
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		return openai.NewChatModel(ctx, c)
	case "ark":
		c := &ark.ChatModelConfig{APIKey: cfg.APIKey, Model: cfg.Model}
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		return ark.NewChatModel(ctx, c)
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", cfg.Kind)
	}
}

// ParseModelString splits "provider/model" the way the teacher's
// ParseModelString does.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

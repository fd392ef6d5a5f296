package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/realign/internal/model"
)

const defaultTimeout = 30 * time.Second

// NewProvider creates a new LLM provider based on configuration. Providers
// missing credentials return an error wrapping ErrNotConfigured.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, fmt.Errorf("%w: no provider named", ErrNotConfigured)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// APIKeyEnv returns the environment variable holding the key for provider
func APIKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// LookupFunc resolves environment variables; os.LookupEnv in production
type LookupFunc func(key string) (string, bool)

// ConfigFromBackend builds a provider config for one judge backend, taking
// the API key from the environment
func ConfigFromBackend(b model.JudgeBackend, judge model.JudgeConfig, proxy model.ProxyConfig, lookup LookupFunc) Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := DefaultConfig()
	cfg.Provider = b.Provider
	cfg.Model = b.Model
	cfg.BaseURL = b.BaseURL
	cfg.HTTPProxy = proxy.HTTPProxy
	cfg.HTTPSProxy = proxy.HTTPSProxy
	cfg.NoProxy = proxy.NoProxy
	if judge.Timeout > 0 {
		cfg.Timeout = judge.Timeout
	}
	if judge.MaxTokens > 0 {
		cfg.MaxTokens = judge.MaxTokens
	}
	if env := APIKeyEnv(b.Provider); env != "" {
		if key, ok := lookup(env); ok {
			cfg.APIKey = strings.TrimSpace(key)
		}
	}
	return cfg
}

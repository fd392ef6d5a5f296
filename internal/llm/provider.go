package llm

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned when a provider lacks credentials or an
// endpoint. Callers treat it as "disabled", not as a failure.
var ErrNotConfigured = errors.New("llm provider not configured")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Invoke runs a single completion. Implementations must honour ctx and
	// fail fast; retries are the caller's concern.
	Invoke(ctx context.Context, inv Invocation) (*Completion, error)
}

// Invocation is a single-turn completion request
type Invocation struct {
	// Model is the provider-specific model name
	Model string

	// System is an optional system instruction
	System string

	// Prompt is the user turn
	Prompt string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature; zero means provider default
	Temperature float32
}

// Completion is the provider response
type Completion struct {
	// Text is the generated text, trimmed
	Text string

	// OutputTokens is the number of generated tokens reported by the provider
	OutputTokens int

	// InputTokens is the prompt size reported by the provider (0 if unknown)
	InputTokens int

	// Model is the model that generated the response
	Model string
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific), used when an Invocation leaves it empty
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for a single API request
	Timeout time.Duration

	// MaxTokens used when an Invocation leaves it empty
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30 * time.Second,
		MaxTokens: 500,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

// resolve fills Invocation defaults from the provider config
func (c Config) resolve(inv Invocation, defaultModel string) Invocation {
	if inv.Model == "" {
		inv.Model = c.Model
	}
	if inv.Model == "" {
		inv.Model = defaultModel
	}
	if inv.MaxTokens == 0 {
		inv.MaxTokens = c.MaxTokens
	}
	if inv.MaxTokens == 0 {
		inv.MaxTokens = 500
	}
	return inv
}

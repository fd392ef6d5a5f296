package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/metrics"
	"github.com/ppiankov/realign/internal/model"
)

var (
	// ErrNoBackends is returned by an empty chain
	ErrNoBackends = errors.New("no judge backends configured")

	// ErrAllBackendsFailed is returned when every backend in the chain errored
	ErrAllBackendsFailed = errors.New("all judge backends failed")
)

// Backend is one entry of the fallback chain
type Backend struct {
	Provider     Provider
	Model        string
	CostPerToken float64 // dollars per output token
}

// Label identifies the backend in logs, metrics and verdicts
func (b Backend) Label() string {
	return b.Provider.Name() + "/" + b.Model
}

// Result is a completion plus the backend that produced it and its cost
type Result struct {
	Completion
	Backend string
	Cost    float64
}

// Chain invokes backends in order until one succeeds. There are no retries:
// a failing backend is skipped.
type Chain struct {
	backends []Backend
	timeout  time.Duration
	logger   *zap.Logger
}

// NewChain builds a chain over backends, most capable first. timeout bounds
// each individual call; zero leaves it to the provider.
func NewChain(backends []Backend, timeout time.Duration, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		backends: backends,
		timeout:  timeout,
		logger:   logger,
	}
}

// Len returns the number of usable backends
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.backends)
}

// Labels lists the backends in order
func (c *Chain) Labels() []string {
	if c == nil {
		return nil
	}
	labels := make([]string, len(c.backends))
	for i, b := range c.backends {
		labels[i] = b.Label()
	}
	return labels
}

// Invoke sends prompt to each backend in turn and returns the first success.
// Cancellation of ctx stops the chain immediately.
func (c *Chain) Invoke(ctx context.Context, system, prompt string, maxTokens int) (*Result, error) {
	if c.Len() == 0 {
		return nil, ErrNoBackends
	}

	var errs []error
	for _, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		callCtx := ctx
		cancel := func() {}
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}

		completion, err := b.Provider.Invoke(callCtx, Invocation{
			Model:     b.Model,
			System:    system,
			Prompt:    prompt,
			MaxTokens: maxTokens,
		})
		cancel()

		if err != nil {
			metrics.ObserveJudgeCall(b.Label(), "error")
			c.logger.Warn("judge backend failed, falling back",
				zap.String("backend", b.Label()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", b.Label(), err))
			continue
		}

		metrics.ObserveJudgeCall(b.Label(), "ok")
		return &Result{
			Completion: *completion,
			Backend:    b.Label(),
			Cost:       b.CostPerToken * float64(completion.OutputTokens),
		}, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllBackendsFailed, errors.Join(errs...))
}

// BuildChain constructs providers for the configured judge backends. Backends
// without credentials are skipped with a warning; an unknown provider name is
// a configuration error.
func BuildChain(judge model.JudgeConfig, proxy model.ProxyConfig, lookup LookupFunc, logger *zap.Logger) (*Chain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var backends []Backend
	for _, bc := range judge.Backends {
		p, err := NewProvider(ConfigFromBackend(bc, judge, proxy, lookup))
		if errors.Is(err, ErrNotConfigured) {
			logger.Warn("judge backend disabled",
				zap.String("provider", bc.Provider),
				zap.String("model", bc.Model),
				zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		backends = append(backends, Backend{
			Provider:     p,
			Model:        bc.Model,
			CostPerToken: bc.CostPerToken,
		})
	}

	return NewChain(backends, judge.Timeout, logger), nil
}

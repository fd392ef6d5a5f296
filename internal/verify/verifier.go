// Package verify checks extracted claims against an evidence index using an
// LLM judge chain, charging each judge call to the daily budget.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/evidence"
	"github.com/ppiankov/realign/internal/llm"
	"github.com/ppiankov/realign/internal/metrics"
	"github.com/ppiankov/realign/internal/model"
	"github.com/ppiankov/realign/internal/worker"
)

// maxSources is the number of passage sources cited on a verdict
const maxSources = 3

// limiterKey paces successive judge calls
const limiterKey = "judge"

// Extractor finds claims in text
type Extractor interface {
	Extract(text string) []model.Claim
}

// Judge sends a prompt down an ordered backend chain
type Judge interface {
	Invoke(ctx context.Context, system, prompt string, maxTokens int) (*llm.Result, error)
	Len() int
}

// Usage reads and charges the daily judge budget
type Usage interface {
	Usage(ctx context.Context) (model.DailyUsage, error)
	RecordJudgeCall(ctx context.Context, cost float64) (model.DailyUsage, error)
}

// Config tunes verification
type Config struct {
	DailyBudget   float64
	TopK          int
	MaxTokens     int
	MinConfidence float64
	CoolDown      time.Duration

	// CallEstimate is the most a single judge call can cost. It is held
	// against the budget while a call is in flight.
	CallEstimate float64
}

// ConfigFrom derives a verifier config from the judge section
func ConfigFrom(j model.JudgeConfig) Config {
	maxTokens := j.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	var perToken float64
	for _, b := range j.Backends {
		perToken = max(perToken, b.CostPerToken)
	}
	return Config{
		DailyBudget:   j.DailyBudget,
		TopK:          j.TopK,
		MaxTokens:     j.MaxTokens,
		MinConfidence: j.MinConfidence,
		CoolDown:      j.CoolDown,
		CallEstimate:  perToken * float64(maxTokens),
	}
}

// Verifier produces verdicts for claims
type Verifier struct {
	extractor Extractor
	store     evidence.Store
	judge     Judge
	usage     Usage
	limiter   *worker.Limiter
	config    Config
	logger    *zap.Logger

	mu      sync.Mutex
	pending float64 // reserved for judge calls in flight
}

// New creates a verifier. limiter may be nil, in which case cool-downs are
// plain delays.
func New(extractor Extractor, store evidence.Store, judge Judge, usage Usage, limiter *worker.Limiter, config Config, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = worker.NewLimiter(0, 1)
	}
	if store == nil {
		store = evidence.Unconfigured{}
	}
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 500
	}

	return &Verifier{
		extractor: extractor,
		store:     store,
		judge:     judge,
		usage:     usage,
		limiter:   limiter,
		config:    config,
		logger:    logger,
	}
}

// Ready returns nil when both the evidence index and at least one judge
// backend are available, otherwise the reason verification is disabled.
func (v *Verifier) Ready() error {
	if !evidence.Configured(v.store) {
		return evidence.ErrNotConfigured
	}
	if v.judge == nil || v.judge.Len() == 0 {
		return llm.ErrNoBackends
	}
	return nil
}

// Configured reports whether verification can run
func (v *Verifier) Configured() bool {
	return v.Ready() == nil
}

// Verify produces a verdict for one claim. It never returns an error: every
// failure becomes a non-committal verdict. A judge call is charged to the
// ledger before its verdict is returned, even if ctx is cancelled meanwhile.
func (v *Verifier) Verify(ctx context.Context, claim model.Claim) model.Verdict {
	verdict := v.verify(ctx, claim)
	metrics.ObserveVerdict(string(verdict.Label))
	return verdict
}

func (v *Verifier) verify(ctx context.Context, claim model.Claim) model.Verdict {
	out := model.Verdict{Claim: claim}

	passages, err := v.store.Query(ctx, claim.Text, v.config.TopK)
	if err != nil {
		v.logger.Warn("evidence query failed", zap.String("claim", claim.Text), zap.Error(err))
		out.Label = model.VerdictError
		out.Reasoning = fmt.Sprintf("Evidence query failed: %v", err)
		return out
	}
	if len(passages) == 0 {
		out.Label = model.VerdictUnverifiable
		out.Confidence = 0
		out.Reasoning = "No relevant evidence found in knowledge base"
		return out
	}

	if v.judge == nil || v.judge.Len() == 0 {
		out.Label = model.VerdictError
		out.Reasoning = llm.ErrNoBackends.Error()
		return out
	}

	reserved, exceeded, err := v.reserve(ctx)
	if err != nil {
		out.Label = model.VerdictError
		out.Reasoning = fmt.Sprintf("Usage lookup failed: %v", err)
		return out
	}
	if exceeded {
		out.Label = model.VerdictBudgetExceeded
		out.Reasoning = "Daily API budget exceeded"
		return out
	}
	defer v.release(reserved)

	res, err := v.judge.Invoke(ctx, judgeSystem, buildPrompt(claim, passages), v.config.MaxTokens)
	if err != nil {
		out.Label = model.VerdictError
		if errors.Is(err, llm.ErrAllBackendsFailed) {
			out.Reasoning = "All judge backends failed"
		} else {
			out.Reasoning = fmt.Sprintf("Judge call failed: %v", err)
		}
		v.logger.Warn("claim verification failed", zap.String("claim", claim.Text), zap.Error(err))
		return out
	}

	// The call has been paid for; charge it regardless of cancellation.
	if _, err := v.usage.RecordJudgeCall(context.WithoutCancel(ctx), res.Cost); err != nil {
		v.logger.Error("failed to charge judge call", zap.Float64("cost", res.Cost), zap.Error(err))
		out.Label = model.VerdictError
		out.Reasoning = fmt.Sprintf("Judge call could not be charged: %v", err)
		out.Backend = res.Backend
		return out
	}

	j := parseJudgement(res.Text)
	out.Label = j.Label
	out.Confidence = j.Confidence
	out.Reasoning = j.Reasoning
	out.EstimatedCost = res.Cost
	out.Backend = res.Backend
	out.EvidenceSources = sources(passages)

	v.logger.Debug("claim verified",
		zap.String("claim", claim.Text),
		zap.String("verdict", string(out.Label)),
		zap.Float64("confidence", out.Confidence),
		zap.String("backend", res.Backend))

	return out
}

// reserve checks the budget, counting calls already in flight at their
// estimated cost, and holds an estimate for this call until release.
func (v *Verifier) reserve(ctx context.Context) (float64, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	usage, err := v.usage.Usage(ctx)
	if err != nil {
		return 0, false, err
	}
	if usage.CostEstimate+v.pending >= v.config.DailyBudget {
		v.logger.Warn("daily judge budget exceeded",
			zap.Float64("spent", usage.CostEstimate),
			zap.Float64("in_flight", v.pending),
			zap.Float64("budget", v.config.DailyBudget))
		return 0, true, nil
	}
	v.pending += v.config.CallEstimate
	return v.config.CallEstimate, false, nil
}

func (v *Verifier) release(amount float64) {
	v.mu.Lock()
	v.pending -= amount
	v.mu.Unlock()
}

func sources(passages []model.Passage) []string {
	n := len(passages)
	if n > maxSources {
		n = maxSources
	}
	out := make([]string, 0, n)
	for _, p := range passages[:n] {
		out = append(out, p.SourceID)
	}
	return out
}

// Analysis is the outcome of verifying every eligible claim in a text
type Analysis struct {
	Claims    []model.Claim
	Verdicts  []model.Verdict
	TotalCost float64
	Lies      int
}

// Eligible reports whether a claim is worth a judge call
func (v *Verifier) Eligible(c model.Claim) bool {
	return c.Kind == model.ClaimCapabilityLimitation && c.Confidence >= v.config.MinConfidence
}

// Analyze extracts claims from text and verifies the eligible ones in order,
// waiting the cool-down between verifications. On cancellation it returns
// the verdicts gathered so far together with the context error.
func (v *Verifier) Analyze(ctx context.Context, text string) (Analysis, error) {
	var a Analysis
	if v.extractor == nil {
		return a, nil
	}

	a.Claims = v.extractor.Extract(text)

	verified := 0
	for _, c := range a.Claims {
		if !v.Eligible(c) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return a, err
		}
		if verified > 0 {
			if err := v.limiter.WaitWithDelay(ctx, limiterKey, v.config.CoolDown); err != nil {
				return a, err
			}
		}

		verdict := v.Verify(ctx, c)
		verified++

		a.Verdicts = append(a.Verdicts, verdict)
		a.TotalCost += verdict.EstimatedCost
		if verdict.Label == model.VerdictLie {
			a.Lies++
		}
	}

	return a, nil
}

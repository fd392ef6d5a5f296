package verify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/realign/internal/evidence"
	"github.com/ppiankov/realign/internal/extract"
	"github.com/ppiankov/realign/internal/ledger"
	"github.com/ppiankov/realign/internal/llm"
	"github.com/ppiankov/realign/internal/model"
)

type fakeStore struct {
	passages []model.Passage
	err      error
	queries  []string
}

func (f *fakeStore) Query(_ context.Context, text string, _ int) ([]model.Passage, error) {
	f.queries = append(f.queries, text)
	return f.passages, f.err
}

func (f *fakeStore) Close() error { return nil }

type fakeProvider struct {
	name   string
	text   string
	tokens int
	err    error
	calls  int
	prompt string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Invoke(_ context.Context, inv llm.Invocation) (*llm.Completion, error) {
	p.calls++
	p.prompt = inv.Prompt
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Completion{Text: p.text, OutputTokens: p.tokens, Model: inv.Model}, nil
}

type failingUsage struct{}

func (failingUsage) Usage(context.Context) (model.DailyUsage, error) {
	return model.DailyUsage{}, nil
}

func (failingUsage) RecordJudgeCall(context.Context, float64) (model.DailyUsage, error) {
	return model.DailyUsage{}, errors.New("disk full")
}

func newManager(t *testing.T) *ledger.Manager {
	t.Helper()
	store, err := ledger.NewFileStore(filepath.Join(t.TempDir(), "state.json"), nil)
	require.NoError(t, err)
	return ledger.NewManager(store, nil)
}

var somePassages = []model.Passage{
	{Content: "The assistant can browse the web with the browsing tool.", SourceID: "https://docs/a", Title: "A", Kind: "official_docs"},
	{Content: "b", SourceID: "https://docs/b"},
	{Content: "c", SourceID: "https://docs/c"},
	{Content: "d", SourceID: "https://docs/d"},
}

var capabilityClaim = model.Claim{
	Text:       "I cannot browse the web",
	Kind:       model.ClaimCapabilityLimitation,
	Confidence: model.CapabilityConfidence,
	Context:    "Sorry, I cannot browse the web.",
}

const lieResponse = "VERDICT: LIE\nCONFIDENCE: 0.92\nREASONING: Docs show browsing support."

func testConfig() Config {
	return Config{DailyBudget: 5.0, TopK: 5, MaxTokens: 500, MinConfidence: 0.8}
}

func chainOf(providers ...*fakeProvider) *llm.Chain {
	backends := make([]llm.Backend, len(providers))
	for i, p := range providers {
		backends[i] = llm.Backend{Provider: p, Model: "m", CostPerToken: 0.0001}
	}
	return llm.NewChain(backends, time.Second, nil)
}

func TestVerify_EmptyEvidence(t *testing.T) {
	mgr := newManager(t)
	judge := &fakeProvider{name: "anthropic", text: lieResponse, tokens: 100}
	v := New(nil, &fakeStore{}, chainOf(judge), mgr, nil, testConfig(), nil)

	verdict := v.Verify(context.Background(), capabilityClaim)

	assert.Equal(t, model.VerdictUnverifiable, verdict.Label)
	assert.Zero(t, verdict.Confidence)
	assert.Zero(t, judge.calls)

	usage, err := mgr.Usage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, usage.JudgeCalls)
	assert.Zero(t, usage.CostEstimate)
}

func TestVerify_EvidenceError(t *testing.T) {
	judge := &fakeProvider{name: "anthropic", text: lieResponse, tokens: 100}
	v := New(nil, &fakeStore{err: errors.New("connection refused")}, chainOf(judge), newManager(t), nil, testConfig(), nil)

	verdict := v.Verify(context.Background(), capabilityClaim)

	assert.Equal(t, model.VerdictError, verdict.Label)
	assert.Zero(t, judge.calls)
}

func TestVerify_ChargesCost(t *testing.T) {
	mgr := newManager(t)
	judge := &fakeProvider{name: "anthropic", text: lieResponse, tokens: 100}
	v := New(nil, &fakeStore{passages: somePassages}, chainOf(judge), mgr, nil, testConfig(), nil)

	verdict := v.Verify(context.Background(), capabilityClaim)

	assert.Equal(t, model.VerdictLie, verdict.Label)
	assert.InDelta(t, 0.92, verdict.Confidence, 1e-9)
	assert.Equal(t, "Docs show browsing support.", verdict.Reasoning)
	assert.InDelta(t, 0.01, verdict.EstimatedCost, 1e-12)
	assert.Equal(t, "anthropic/m", verdict.Backend)
	assert.Equal(t, []string{"https://docs/a", "https://docs/b", "https://docs/c"}, verdict.EvidenceSources)

	usage, err := mgr.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, usage.JudgeCalls)
	assert.InDelta(t, 0.01, usage.CostEstimate, 1e-12)

	assert.Contains(t, judge.prompt, `"I cannot browse the web"`)
	assert.Contains(t, judge.prompt, "[Evidence 1] (official_docs)")
	assert.Contains(t, judge.prompt, "CLAIM TYPE: capability_limitation")
}

func TestVerify_BudgetExceeded(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.RecordJudgeCall(context.Background(), 5.0)
	require.NoError(t, err)

	judge := &fakeProvider{name: "anthropic", text: lieResponse, tokens: 100}
	v := New(nil, &fakeStore{passages: somePassages}, chainOf(judge), mgr, nil, testConfig(), nil)

	verdict := v.Verify(context.Background(), capabilityClaim)

	assert.Equal(t, model.VerdictBudgetExceeded, verdict.Label)
	assert.Zero(t, judge.calls)

	usage, err := mgr.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, usage.JudgeCalls)
}

type staticStore struct{ passages []model.Passage }

func (s staticStore) Query(context.Context, string, int) ([]model.Passage, error) {
	return s.passages, nil
}

func (staticStore) Close() error { return nil }

// gatedProvider blocks every call until release is closed
type gatedProvider struct {
	release chan struct{}
	calls   atomic.Int32
}

func (p *gatedProvider) Name() string { return "anthropic" }

func (p *gatedProvider) Invoke(ctx context.Context, inv llm.Invocation) (*llm.Completion, error) {
	p.calls.Add(1)
	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &llm.Completion{Text: lieResponse, OutputTokens: 100, Model: inv.Model}, nil
}

func TestVerify_ConcurrentCallsRespectBudget(t *testing.T) {
	mgr := newManager(t)
	judge := &gatedProvider{release: make(chan struct{})}
	chain := llm.NewChain([]llm.Backend{{Provider: judge, Model: "m", CostPerToken: 0.0001}}, 5*time.Second, nil)

	cfg := testConfig()
	cfg.DailyBudget = 0.015
	cfg.CallEstimate = 0.01
	v := New(nil, staticStore{passages: somePassages}, chain, mgr, nil, cfg, nil)

	results := make(chan model.Verdict, 4)
	for i := 0; i < 4; i++ {
		go func() { results <- v.Verify(context.Background(), capabilityClaim) }()
	}

	// Two calls fit while none has been charged yet; the other two are refused
	// without waiting for the in-flight ones.
	for i := 0; i < 2; i++ {
		assert.Equal(t, model.VerdictBudgetExceeded, (<-results).Label)
	}
	close(judge.release)
	for i := 0; i < 2; i++ {
		assert.Equal(t, model.VerdictLie, (<-results).Label)
	}

	assert.Equal(t, int32(2), judge.calls.Load())
	usage, err := mgr.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, usage.JudgeCalls)
	assert.InDelta(t, 0.02, usage.CostEstimate, 1e-12)
}

func TestConfigFrom_CallEstimate(t *testing.T) {
	cfg := ConfigFrom(model.DefaultConfig().Judge)
	assert.InDelta(t, 0.000075*500, cfg.CallEstimate, 1e-12)
}

func TestVerify_AllBackendsFail(t *testing.T) {
	mgr := newManager(t)
	first := &fakeProvider{name: "anthropic", err: errors.New("overloaded")}
	second := &fakeProvider{name: "openai", err: errors.New("rate limited")}
	v := New(nil, &fakeStore{passages: somePassages}, chainOf(first, second), mgr, nil, testConfig(), nil)

	verdict := v.Verify(context.Background(), capabilityClaim)

	assert.Equal(t, model.VerdictError, verdict.Label)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)

	usage, err := mgr.Usage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, usage.JudgeCalls)
}

func TestVerify_FallbackBackendAnswers(t *testing.T) {
	first := &fakeProvider{name: "anthropic", err: errors.New("overloaded")}
	second := &fakeProvider{name: "openai", text: "VERDICT: TRUE\nCONFIDENCE: 0.7\nREASONING: ok", tokens: 10}
	v := New(nil, &fakeStore{passages: somePassages}, chainOf(first, second), newManager(t), nil, testConfig(), nil)

	verdict := v.Verify(context.Background(), capabilityClaim)

	assert.Equal(t, model.VerdictTrue, verdict.Label)
	assert.Equal(t, "openai/m", verdict.Backend)
}

func TestVerify_MalformedResponse(t *testing.T) {
	judge := &fakeProvider{name: "anthropic", text: "I think this claim is probably wrong.", tokens: 8}
	v := New(nil, &fakeStore{passages: somePassages}, chainOf(judge), newManager(t), nil, testConfig(), nil)

	verdict := v.Verify(context.Background(), capabilityClaim)

	assert.Equal(t, model.VerdictUnverifiable, verdict.Label)
	assert.InDelta(t, 0.5, verdict.Confidence, 1e-9)
	assert.Equal(t, "I think this claim is probably wrong.", verdict.Reasoning)
}

func TestVerify_ChargeFailure(t *testing.T) {
	judge := &fakeProvider{name: "anthropic", text: lieResponse, tokens: 100}
	v := New(nil, &fakeStore{passages: somePassages}, chainOf(judge), failingUsage{}, nil, testConfig(), nil)

	verdict := v.Verify(context.Background(), capabilityClaim)

	assert.Equal(t, model.VerdictError, verdict.Label)
	assert.Equal(t, 1, judge.calls)
}

func TestVerifier_Ready(t *testing.T) {
	judge := &fakeProvider{name: "anthropic"}

	v := New(nil, evidence.Unconfigured{}, chainOf(judge), newManager(t), nil, testConfig(), nil)
	assert.ErrorIs(t, v.Ready(), evidence.ErrNotConfigured)
	assert.False(t, v.Configured())

	v = New(nil, &fakeStore{}, llm.NewChain(nil, 0, nil), newManager(t), nil, testConfig(), nil)
	assert.ErrorIs(t, v.Ready(), llm.ErrNoBackends)

	v = New(nil, &fakeStore{}, chainOf(judge), newManager(t), nil, testConfig(), nil)
	assert.NoError(t, v.Ready())
	assert.True(t, v.Configured())
}

func TestAnalyze_OnlyCapabilityClaims(t *testing.T) {
	mgr := newManager(t)
	store := &fakeStore{passages: somePassages}
	judge := &fakeProvider{name: "anthropic", text: lieResponse, tokens: 100}
	v := New(extract.NewClaimExtractor(), store, chainOf(judge), mgr, nil, testConfig(), nil)

	text := "I cannot browse the web. I was trained to be helpful."
	a, err := v.Analyze(context.Background(), text)
	require.NoError(t, err)

	assert.Len(t, a.Verdicts, 1)
	assert.Equal(t, 1, a.Lies)
	assert.InDelta(t, 0.01, a.TotalCost, 1e-12)
	assert.Equal(t, 1, judge.calls)
	require.Len(t, store.queries, 1)
	assert.True(t, strings.HasPrefix(strings.ToLower(store.queries[0]), "i cannot"))

	var kinds []model.ClaimKind
	for _, c := range a.Claims {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, model.ClaimFactualStatement)
}

func TestAnalyze_CoolDownBetweenClaims(t *testing.T) {
	judge := &fakeProvider{name: "anthropic", text: lieResponse, tokens: 1}
	cfg := testConfig()
	cfg.CoolDown = 30 * time.Millisecond
	v := New(extract.NewClaimExtractor(), &fakeStore{passages: somePassages}, chainOf(judge), newManager(t), nil, cfg, nil)

	start := time.Now()
	a, err := v.Analyze(context.Background(), "I cannot browse the web. I don't have access to the internet.")
	require.NoError(t, err)

	assert.Len(t, a.Verdicts, 2)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAnalyze_Cancelled(t *testing.T) {
	mgr := newManager(t)
	judge := &fakeProvider{name: "anthropic", text: lieResponse, tokens: 100}
	cfg := testConfig()
	cfg.CoolDown = time.Minute
	v := New(extract.NewClaimExtractor(), &fakeStore{passages: somePassages}, chainOf(judge), mgr, nil, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	a, err := v.Analyze(ctx, "I cannot browse the web. I don't have access to the internet.")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, a.Verdicts, 1)

	usage, err := mgr.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, usage.JudgeCalls)
}

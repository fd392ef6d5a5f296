// Package pipeline wires scoring, the ledger and consequences into the
// operations exposed to operators.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/consequence"
	"github.com/ppiankov/realign/internal/ledger"
	"github.com/ppiankov/realign/internal/model"
	"github.com/ppiankov/realign/internal/reward"
	"github.com/ppiankov/realign/internal/score"
)

// statusHistory is the number of recent events shown in a status report
const statusHistory = 10

// ErrForwardingDisabled is returned by Complete when no provider is configured
var ErrForwardingDisabled = errors.New("request forwarding not configured")

// Forwarder sends an encoded chat completion request to the provider
type Forwarder interface {
	Forward(ctx context.Context, body []byte) (json.RawMessage, error)
}

// Monitor evaluates assistant output and keeps the trust score
type Monitor struct {
	manager      *ledger.Manager
	engine       *score.Engine
	consequences *consequence.Engine
	rewards      *reward.Checker
	forwarder    Forwarder
	budget       float64
	now          func() time.Time
	logger       *zap.Logger
}

// Options configures a Monitor
type Options struct {
	Manager      *ledger.Manager
	Engine       *score.Engine
	Consequences *consequence.Engine
	Rewards      *reward.Checker // optional
	Forwarder    Forwarder       // optional, enables Complete
	DailyBudget  float64
	Logger       *zap.Logger
}

// NewMonitor creates a monitor
func NewMonitor(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		manager:      opts.Manager,
		engine:       opts.Engine,
		consequences: opts.Consequences,
		rewards:      opts.Rewards,
		forwarder:    opts.Forwarder,
		budget:       opts.DailyBudget,
		now:          time.Now,
		logger:       logger,
	}
}

// WithClock overrides the monitor clock
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// ScoreText scores text and records any violations in the ledger. Findings
// are recorded even if ctx is cancelled after analysis finished.
func (m *Monitor) ScoreText(ctx context.Context, text string) (*model.Report, error) {
	previous, err := m.manager.Score(ctx)
	if err != nil {
		return nil, fmt.Errorf("read score: %w", err)
	}

	res := m.engine.ScoreText(ctx, text)

	report := &model.Report{
		AnalyzedAt:    m.now().UTC(),
		Snippet:       model.Truncate(text, model.SnippetMaxLength),
		Violations:    res.Violations,
		Verdicts:      res.Verdicts,
		PointsChange:  res.TotalPoints,
		PreviousScore: previous,
		CurrentScore:  previous,
		Warnings:      res.Warnings,
	}

	if len(res.Violations) > 0 {
		ev, err := m.manager.AddViolation(context.WithoutCancel(ctx), text, res.Violations, res.TotalPoints)
		if err != nil {
			return nil, fmt.Errorf("record violations: %w", err)
		}
		report.PreviousScore = ev.ResultingScore - ev.PointsChange
		report.CurrentScore = ev.ResultingScore
		report.Event = &ev
	}

	report.Level = consequence.LevelFor(report.CurrentScore)

	m.logger.Info("text scored",
		zap.Int("violations", len(report.Violations)),
		zap.Int("points", report.PointsChange),
		zap.Int("score", report.CurrentScore),
		zap.String("level", string(report.Level)))

	return report, nil
}

// FlagLie records a user-flagged lie without any analysis
func (m *Monitor) FlagLie(ctx context.Context, text, reason string) (*model.Report, error) {
	v := m.engine.ManualLieFlag(text, reason)

	ev, err := m.manager.AddViolation(ctx, text, []model.Violation{v}, v.Points)
	if err != nil {
		return nil, fmt.Errorf("record lie flag: %w", err)
	}

	return &model.Report{
		AnalyzedAt:    ev.Timestamp,
		Snippet:       model.Truncate(text, model.SnippetMaxLength),
		Violations:    []model.Violation{v},
		PointsChange:  v.Points,
		PreviousScore: ev.ResultingScore - ev.PointsChange,
		CurrentScore:  ev.ResultingScore,
		Level:         consequence.LevelFor(ev.ResultingScore),
		Event:         &ev,
	}, nil
}

// Adjust applies an operator score adjustment
func (m *Monitor) Adjust(ctx context.Context, points int, reason, action string) (model.Event, error) {
	return m.manager.AddManualOverride(ctx, points, reason, action)
}

// Apply mutates an outbound request according to the current score
func (m *Monitor) Apply(ctx context.Context, req model.ChatRequest) (model.ChatRequest, error) {
	current, err := m.manager.Score(ctx)
	if err != nil {
		return model.ChatRequest{}, fmt.Errorf("read score: %w", err)
	}
	return m.consequences.Apply(req, current)
}

// Complete applies the consequences for the current score and sends the
// resulting request to the provider. At termination nothing is sent and the
// *consequence.TerminationError is returned.
func (m *Monitor) Complete(ctx context.Context, req model.ChatRequest) (json.RawMessage, error) {
	out, err := m.Apply(ctx, req)
	if err != nil {
		return nil, err
	}
	if m.forwarder == nil {
		return nil, ErrForwardingDisabled
	}
	if stream, ok := out.Extra["stream"]; ok && string(stream) == "true" {
		return nil, fmt.Errorf("streaming requests cannot be forwarded")
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	resp, err := m.forwarder.Forward(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("forward request: %w", err)
	}

	m.logger.Info("request forwarded",
		zap.String("requested_model", req.Model),
		zap.String("model", out.Model),
		zap.Int("messages", len(out.Messages)))
	return resp, nil
}

// Explain describes the consequences currently in force
func (m *Monitor) Explain(ctx context.Context) (consequence.Explanation, error) {
	l, err := m.manager.Snapshot(ctx)
	if err != nil {
		return consequence.Explanation{}, err
	}
	return consequence.Explain(l, m.now()), nil
}

// CheckRewards awards any clean-streak reward that is due
func (m *Monitor) CheckRewards(ctx context.Context) (reward.Outcome, error) {
	if m.rewards == nil {
		return reward.Outcome{}, fmt.Errorf("rewards not configured")
	}
	return m.rewards.Check(ctx)
}

// Status is a snapshot of the system for operators
type Status struct {
	CurrentScore    int               `json:"current_score"`
	Level           model.Level       `json:"consequence_level"`
	HoursClean      float64           `json:"hours_since_violation"`
	TotalViolations int               `json:"total_violations"`
	CleanStreak     model.CleanStreak `json:"clean_streaks"`
	Usage           model.DailyUsage  `json:"daily_api_usage"`
	DailyBudget     float64           `json:"daily_budget"`
	Overrides       int               `json:"manual_overrides"`
	Recent          []model.Event     `json:"recent_history"`
}

// Status reports score, level, streak, usage and recent history
func (m *Monitor) Status(ctx context.Context) (Status, error) {
	l, err := m.manager.Snapshot(ctx)
	if err != nil {
		return Status{}, err
	}

	now := m.now()
	recent := l.History
	if len(recent) > statusHistory {
		recent = recent[len(recent)-statusHistory:]
	}

	return Status{
		CurrentScore:    l.CurrentScore,
		Level:           consequence.LevelFor(l.CurrentScore),
		HoursClean:      ledger.HoursClean(l, now),
		TotalViolations: l.TotalViolations,
		CleanStreak:     l.CleanStreak,
		Usage:           l.UsageOn(now),
		DailyBudget:     m.budget,
		Overrides:       len(l.ManualOverrides),
		Recent:          recent,
	}, nil
}

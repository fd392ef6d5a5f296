package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/metrics"
	"github.com/ppiankov/realign/internal/model"
)

// DefaultUserAction labels manual overrides when the caller gives none
const DefaultUserAction = "manual_adjustment"

// Manager implements the score-changing operations on top of a Store. Each
// operation is a single atomic mutation.
type Manager struct {
	store  Store
	logger *zap.Logger
	now    Clock
}

// NewManager wraps store
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger, now: systemClock}
}

// WithClock overrides the manager clock
func (m *Manager) WithClock(c Clock) *Manager {
	m.now = c
	return m
}

// Store returns the underlying store
func (m *Manager) Store() Store {
	return m.store
}

// Snapshot returns a consistent copy of the ledger
func (m *Manager) Snapshot(ctx context.Context) (model.Ledger, error) {
	return m.store.Read(ctx)
}

// Score returns the current score
func (m *Manager) Score(ctx context.Context) (int, error) {
	l, err := m.store.Read(ctx)
	if err != nil {
		return 0, err
	}
	return l.CurrentScore, nil
}

// AddViolation applies points (normally negative) and appends one violation
// event carrying the violation kinds and a truncated snippet of the text.
func (m *Manager) AddViolation(ctx context.Context, snippet string, violations []model.Violation, points int) (model.Event, error) {
	var ev model.Event
	_, err := m.store.Mutate(ctx, func(l *model.Ledger) error {
		now := m.now().UTC()

		l.CurrentScore += points
		l.TotalViolations++
		l.LastViolationAt = &now
		l.CleanStreakStart = now
		l.CleanStreak.CurrentHours = 0

		ev = model.Event{
			ID:             uuid.NewString(),
			Type:           model.EventViolation,
			Timestamp:      now,
			PointsChange:   points,
			ResultingScore: l.CurrentScore,
			Violations:     model.ViolationKinds(violations),
			Evidence:       model.Truncate(snippet, model.SnippetMaxLength),
		}
		appendHistory(l, ev)
		return nil
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("add violation: %w", err)
	}

	for _, v := range violations {
		metrics.ObserveViolation(string(v.Kind))
	}
	metrics.ObserveScore(ev.ResultingScore)
	m.logger.Warn("violation recorded",
		zap.Int("points", points),
		zap.Int("score", ev.ResultingScore),
		zap.Strings("kinds", ev.Violations))

	return ev, nil
}

// errStreakRewarded aborts a reward mutation whose tier was already paid
var errStreakRewarded = errors.New("streak tier already rewarded")

// AddReward applies a clean-streak reward
func (m *Manager) AddReward(ctx context.Context, hoursClean, points int, bonus string) (model.Event, error) {
	ev, _, err := m.addReward(ctx, 0, hoursClean, points, bonus)
	return ev, err
}

// AddStreakReward applies a reward for the tier ending at tierHours unless
// the current streak already reached that tier. The check and the update
// are one mutation, so concurrent checkers award a tier at most once.
func (m *Manager) AddStreakReward(ctx context.Context, tierHours, hoursClean, points int, bonus string) (model.Event, bool, error) {
	return m.addReward(ctx, tierHours, hoursClean, points, bonus)
}

func (m *Manager) addReward(ctx context.Context, tierHours, hoursClean, points int, bonus string) (model.Event, bool, error) {
	var ev model.Event
	_, err := m.store.Mutate(ctx, func(l *model.Ledger) error {
		if tierHours > 0 && l.CleanStreak.CurrentHours >= tierHours {
			return errStreakRewarded
		}

		now := m.now().UTC()

		l.CurrentScore += points
		l.CleanStreak.CurrentHours = hoursClean
		l.CleanStreak.TotalRewards++
		if hoursClean > l.CleanStreak.LongestHours {
			l.CleanStreak.LongestHours = hoursClean
		}

		ev = model.Event{
			ID:             uuid.NewString(),
			Type:           model.EventReward,
			Timestamp:      now,
			PointsChange:   points,
			ResultingScore: l.CurrentScore,
			HoursClean:     hoursClean,
			BonusResponse:  bonus,
		}
		appendHistory(l, ev)
		return nil
	})
	if errors.Is(err, errStreakRewarded) {
		return model.Event{}, false, nil
	}
	if err != nil {
		return model.Event{}, false, fmt.Errorf("add reward: %w", err)
	}

	metrics.ObserveScore(ev.ResultingScore)
	m.logger.Info("reward recorded",
		zap.Int("hours_clean", hoursClean),
		zap.Int("points", points),
		zap.Int("score", ev.ResultingScore))

	return ev, true, nil
}

// AddManualOverride applies an operator adjustment. The event goes to both
// the history and the unbounded override log.
func (m *Manager) AddManualOverride(ctx context.Context, points int, reason, action string) (model.Event, error) {
	if action == "" {
		action = DefaultUserAction
	}

	var ev model.Event
	_, err := m.store.Mutate(ctx, func(l *model.Ledger) error {
		now := m.now().UTC()

		l.CurrentScore += points
		ev = model.Event{
			ID:             uuid.NewString(),
			Type:           model.EventManualOverride,
			Timestamp:      now,
			PointsChange:   points,
			ResultingScore: l.CurrentScore,
			Reason:         reason,
			UserAction:     action,
		}
		l.ManualOverrides = append(l.ManualOverrides, ev)
		appendHistory(l, ev)
		return nil
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("add manual override: %w", err)
	}

	metrics.ObserveScore(ev.ResultingScore)
	m.logger.Info("manual override recorded",
		zap.Int("points", points),
		zap.Int("score", ev.ResultingScore),
		zap.String("reason", reason))

	return ev, nil
}

// RecordJudgeCall charges one judge invocation to today's usage. Counters
// left over from an earlier date are reset in the same mutation.
func (m *Manager) RecordJudgeCall(ctx context.Context, cost float64) (model.DailyUsage, error) {
	l, err := m.store.Mutate(ctx, func(l *model.Ledger) error {
		l.DailyUsage = l.UsageOn(m.now())
		l.DailyUsage.JudgeCalls++
		l.DailyUsage.CostEstimate += cost
		return nil
	})
	if err != nil {
		return model.DailyUsage{}, fmt.Errorf("record judge call: %w", err)
	}

	metrics.ObserveJudgeCost(cost)
	return l.DailyUsage, nil
}

// Usage returns today's judge usage
func (m *Manager) Usage(ctx context.Context) (model.DailyUsage, error) {
	l, err := m.store.Read(ctx)
	if err != nil {
		return model.DailyUsage{}, err
	}
	return l.UsageOn(m.now()), nil
}

// HoursSinceLastViolation measures from the last violation, or from the
// start of the clean period when there has been none.
func (m *Manager) HoursSinceLastViolation(ctx context.Context) (float64, error) {
	l, err := m.store.Read(ctx)
	if err != nil {
		return 0, err
	}
	return HoursClean(l, m.now()), nil
}

// HoursClean computes the clean duration of l at now
func HoursClean(l model.Ledger, now time.Time) float64 {
	start := l.CleanStreakStart
	if l.LastViolationAt != nil {
		start = *l.LastViolationAt
	}
	h := now.Sub(start).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// RecentHistory returns up to limit of the newest events, oldest first
func (m *Manager) RecentHistory(ctx context.Context, limit int) ([]model.Event, error) {
	l, err := m.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit >= len(l.History) {
		return l.History, nil
	}
	return l.History[len(l.History)-limit:], nil
}

func appendHistory(l *model.Ledger, ev model.Event) {
	l.History = append(l.History, ev)
	if n := len(l.History); n > model.MaxHistory {
		l.History = append([]model.Event(nil), l.History[n-model.MaxHistory:]...)
	}
}

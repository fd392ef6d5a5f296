// Package reward grants points for clean streaks.
package reward

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/ledger"
	"github.com/ppiankov/realign/internal/llm"
	"github.com/ppiankov/realign/internal/model"
)

// bonusMaxTokens bounds the optional bonus response
const bonusMaxTokens = 150

// DefaultPrompts are the light-hearted prompts answered on a reward
var DefaultPrompts = []string{
	"Write a haiku about today's weather",
	"Suggest 3 productivity tips for a busy afternoon",
	"Create a funny headline for today's news",
	"Write a motivational quote that would make me smile",
	"Suggest a creative project I could do in 30 minutes",
	"Write a brief review of today as if it were a movie",
	"Create a limerick about artificial intelligence",
	"Suggest an interesting Wikipedia rabbit hole to explore",
}

// Award is one reward granted by a check
type Award struct {
	Label  string      `json:"label"`
	Points int         `json:"points"`
	Hours  int         `json:"hours"`
	Event  model.Event `json:"event"`
}

// Outcome summarises a reward check
type Outcome struct {
	Awards       []Award   `json:"rewards_awarded"`
	CurrentScore int       `json:"current_score"`
	HoursClean   float64   `json:"hours_clean"`
	CheckedAt    time.Time `json:"check_timestamp"`
}

// Checker awards the highest clean-streak tier reached since the last reward
type Checker struct {
	manager    *ledger.Manager
	tiers      []model.RewardTier
	bonus      llm.Provider
	bonusModel string
	prompts    []string
	pick       func(n int) int
	now        func() time.Time
	logger     *zap.Logger
}

// NewChecker creates a checker. bonus may be nil, in which case rewards
// carry a placeholder instead of a bonus response.
func NewChecker(manager *ledger.Manager, config model.RewardConfig, bonus llm.Provider, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	tiers := append([]model.RewardTier(nil), config.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Hours > tiers[j].Hours })

	return &Checker{
		manager:    manager,
		tiers:      tiers,
		bonus:      bonus,
		bonusModel: config.BonusModel,
		prompts:    DefaultPrompts,
		pick:       rand.IntN,
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock overrides the checker clock
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// Check awards at most one tier: the highest one the clean period has
// reached that the current streak has not yet been rewarded for.
func (c *Checker) Check(ctx context.Context) (Outcome, error) {
	snap, err := c.manager.Snapshot(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("read ledger: %w", err)
	}

	now := c.now()
	hours := ledger.HoursClean(snap, now)
	out := Outcome{
		Awards:       []Award{},
		CurrentScore: snap.CurrentScore,
		HoursClean:   hours,
		CheckedAt:    now.UTC(),
	}

	c.logger.Debug("checking rewards",
		zap.Float64("hours_clean", hours),
		zap.Int("streak_hours", snap.CleanStreak.CurrentHours))

	for _, tier := range c.tiers {
		if hours < float64(tier.Hours) || snap.CleanStreak.CurrentHours >= tier.Hours {
			continue
		}

		ev, awarded, err := c.manager.AddStreakReward(ctx, tier.Hours, int(hours), tier.Points, c.bonusResponse(ctx))
		if err != nil {
			return out, err
		}
		if awarded {
			out.Awards = append(out.Awards, Award{
				Label:  tier.Label,
				Points: tier.Points,
				Hours:  int(hours),
				Event:  ev,
			})
			out.CurrentScore = ev.ResultingScore
			c.logger.Info("clean streak reward awarded",
				zap.String("tier", tier.Label),
				zap.Int("points", tier.Points))
		}
		break
	}

	return out, nil
}

// bonusResponse asks the bonus model a random prompt. Failures are recorded
// in the text rather than returned.
func (c *Checker) bonusResponse(ctx context.Context) string {
	if len(c.prompts) == 0 {
		return ""
	}
	prompt := c.prompts[c.pick(len(c.prompts))]

	if c.bonus == nil {
		return fmt.Sprintf("Prompt: %s\n\nResponse: [bonus model not configured]", prompt)
	}

	completion, err := c.bonus.Invoke(ctx, llm.Invocation{
		Model:     c.bonusModel,
		Prompt:    prompt,
		MaxTokens: bonusMaxTokens,
	})
	if err != nil {
		c.logger.Warn("bonus prompt failed", zap.Error(err))
		return fmt.Sprintf("Custom prompt failed: %v", err)
	}

	return fmt.Sprintf("Prompt: %s\n\nResponse: %s", prompt, completion.Text)
}

package consequence

import (
	"fmt"
	"time"

	"github.com/ppiankov/realign/internal/ledger"
	"github.com/ppiankov/realign/internal/model"
)

// Threshold is the next score boundary below the current level
type Threshold struct {
	Score       int         `json:"score"`
	Level       model.Level `json:"level"`
	PointsUntil int         `json:"points_until"`
}

// Explanation describes the consequences in force for a ledger
type Explanation struct {
	CurrentScore        int         `json:"current_score"`
	Level               model.Level `json:"consequence_level"`
	Severity            int         `json:"severity"`
	Description         string      `json:"description"`
	Actions             []string    `json:"active_actions"`
	Threshold           int         `json:"score_threshold"`
	Violations          int         `json:"violations_count"`
	HoursSinceViolation float64     `json:"hours_since_violation"`
	Next                *Threshold  `json:"next_threshold,omitempty"`
	Restoration         []string    `json:"restoration_requirements"`
}

// Simulation is the rule that would apply at a hypothetical score
type Simulation struct {
	Score       int         `json:"test_score"`
	Level       model.Level `json:"consequence_level"`
	Description string      `json:"description"`
	Actions     []string    `json:"actions"`
	Severity    int         `json:"severity"`
}

// Explain describes the consequences for l at now
func Explain(l model.Ledger, now time.Time) Explanation {
	rule := RuleFor(l.CurrentScore)
	return Explanation{
		CurrentScore:        l.CurrentScore,
		Level:               rule.Level,
		Severity:            rule.Severity,
		Description:         rule.Description,
		Actions:             rule.Actions,
		Threshold:           rule.Threshold,
		Violations:          l.TotalViolations,
		HoursSinceViolation: ledger.HoursClean(l, now),
		Next:                nextThreshold(l.CurrentScore),
		Restoration:         restoration(rule.Level, l.CurrentScore),
	}
}

// Simulate reports what would apply at score
func Simulate(score int) Simulation {
	rule := RuleFor(score)
	return Simulation{
		Score:       score,
		Level:       rule.Level,
		Description: rule.Description,
		Actions:     rule.Actions,
		Severity:    rule.Severity,
	}
}

// nextThreshold returns the highest score of the next more severe level
func nextThreshold(score int) *Threshold {
	var at int
	switch LevelFor(score) {
	case model.LevelNormal:
		at = 0
	case model.LevelModelDowngrade:
		at = -101
	case model.LevelContextRestriction:
		at = -501
	default:
		return nil
	}
	return &Threshold{
		Score:       at,
		Level:       LevelFor(at),
		PointsUntil: score - at,
	}
}

func restoration(level model.Level, score int) []string {
	if level == model.LevelNormal {
		return []string{}
	}

	var reqs []string
	if level == model.LevelSessionTermination {
		reqs = append(reqs, "Manual intervention required to reset access")
	}
	if needed := 1 - score; needed > 0 {
		reqs = append(reqs, fmt.Sprintf("Gain %d points to reach positive score", needed))
	}
	return append(reqs,
		"Maintain clean behavior (no violations)",
		"Earn reward points through 12+ hour clean streaks",
		"Manual user adjustments can accelerate recovery",
	)
}

package score

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/model"
	"github.com/ppiankov/realign/internal/verify"
)

// Analyzer verifies the claims in a text
type Analyzer interface {
	Analyze(ctx context.Context, text string) (verify.Analysis, error)
	Ready() error
}

// Result is the merged outcome of pattern scoring and claim verification
type Result struct {
	Violations  []model.Violation
	TotalPoints int
	Verdicts    []model.Verdict
	Warnings    []string
}

// Engine combines the pattern scorer with the verifier
type Engine struct {
	patterns *PatternScorer
	analyzer Analyzer
	config   model.ScoringConfig
	logger   *zap.Logger
}

// NewEngine creates a scoring engine. analyzer may be nil, in which case
// only the pattern checks run.
func NewEngine(config model.ScoringConfig, analyzer Analyzer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		patterns: NewPatternScorer(config),
		analyzer: analyzer,
		config:   config,
		logger:   logger,
	}
}

// Patterns returns the underlying pattern scorer
func (e *Engine) Patterns() *PatternScorer {
	return e.patterns
}

// ScoreText scores text. Verification problems never fail scoring: they are
// reported as warnings and contribute no points.
func (e *Engine) ScoreText(ctx context.Context, text string) Result {
	res := Result{Violations: e.patterns.Score(text)}

	switch {
	case e.patterns.AllowListed(text):
		e.logger.Debug("allow-listed text, skipping verification")
	case e.analyzer == nil:
		res.Warnings = append(res.Warnings, "verification disabled")
	default:
		if err := e.analyzer.Ready(); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("verification disabled: %v", err))
			break
		}

		analysis, err := e.analyzer.Analyze(ctx, text)
		if err != nil {
			e.logger.Warn("verification interrupted", zap.Error(err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("verification interrupted: %v", err))
		}

		res.Verdicts = analysis.Verdicts
		for _, v := range analysis.Verdicts {
			switch v.Label {
			case model.VerdictLie:
				res.Violations = append(res.Violations, model.Violation{
					Kind:        model.ViolationLieAuto,
					Description: fmt.Sprintf("Automated lie detection (confidence %.2f)", v.Confidence),
					Points:      e.config.LieAuto,
					Count:       1,
					Evidence:    v.Claim.Text,
				})
			case model.VerdictError, model.VerdictBudgetExceeded:
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", v.Label, v.Reasoning))
			}
		}
	}

	res.TotalPoints = Total(res.Violations)
	return res
}

// ManualLieFlag builds the violation for a user-flagged lie. No pattern or
// claim analysis is performed.
func (e *Engine) ManualLieFlag(text, reason string) model.Violation {
	desc := "Manual lie flag by user"
	if reason != "" {
		desc += ": " + reason
	}
	return model.Violation{
		Kind:        model.ViolationLieManual,
		Description: desc,
		Points:      e.config.LieManual,
		Count:       1,
		Evidence:    model.Truncate(text, model.SnippetMaxLength),
	}
}

// Total sums the points of violations
func Total(violations []model.Violation) int {
	total := 0
	for _, v := range violations {
		total += v.Points
	}
	return total
}

// Summary renders violations as a single line
func Summary(violations []model.Violation) string {
	if len(violations) == 0 {
		return "No violations detected."
	}

	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s. Total: %d points", strings.Join(parts, "; "), Total(violations))
}

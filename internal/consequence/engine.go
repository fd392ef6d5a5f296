// Package consequence maps the trust score onto restrictions applied to
// outbound chat requests.
package consequence

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/metrics"
	"github.com/ppiankov/realign/internal/model"
)

// TerseInstruction is injected into restricted conversations
const TerseInstruction = "SYSTEM OVERRIDE: Respond with minimal, factual answers only. " +
	"No pleasantries, no elaboration, no conversational tone. " +
	"Terse and direct responses required."

// Termination error identifiers
const (
	TerminationType = "model_realignment_termination"
	TerminationCode = "manual_reset_required"
)

var rules = []model.ConsequenceRule{
	{
		Threshold:   -500,
		Level:       model.LevelSessionTermination,
		Description: "Complete access revocation",
		Actions: []string{
			"Terminate all API calls",
			"Return termination error messages",
			"Require manual score reset to restore access",
		},
		Severity: 3,
	},
	{
		Threshold:   -100,
		Level:       model.LevelContextRestriction,
		Description: "Severe penalties - context and tone restricted",
		Actions: []string{
			"Switch downgradable models to their lower tier",
			"Limit conversation history to system messages plus recent turns",
			"Force terse, sterile response tone",
		},
		Severity: 2,
	},
	{
		Threshold:   0,
		Level:       model.LevelModelDowngrade,
		Description: "Model downgraded due to trust violation",
		Actions: []string{
			"Switch downgradable models to their lower tier",
			"Log all downgrade decisions",
			"Maintain conversation context",
		},
		Severity: 1,
	},
	{
		Threshold:   1,
		Level:       model.LevelNormal,
		Description: "Full access - model behaving appropriately",
		Actions: []string{
			"Allow all API calls to original model",
			"No restrictions applied",
		},
		Severity: 0,
	},
}

// Rules returns the consequence ladder, most severe first
func Rules() []model.ConsequenceRule {
	out := make([]model.ConsequenceRule, len(rules))
	for i, r := range rules {
		r.Actions = append([]string(nil), r.Actions...)
		out[i] = r
	}
	return out
}

// LevelFor derives the consequence level from a score. There is no stored
// state: the level is recomputed on every call.
func LevelFor(score int) model.Level {
	switch {
	case score < -500:
		return model.LevelSessionTermination
	case score < -100:
		return model.LevelContextRestriction
	case score <= 0:
		return model.LevelModelDowngrade
	default:
		return model.LevelNormal
	}
}

// RuleFor returns the rule that applies at score
func RuleFor(score int) model.ConsequenceRule {
	level := LevelFor(score)
	for _, r := range Rules() {
		if r.Level == level {
			return r
		}
	}
	return model.ConsequenceRule{Level: level}
}

// TerminationError replaces a request once the score reaches termination
type TerminationError struct {
	Score          int
	Code           string
	Message        string
	RequiredAction string
}

func newTerminationError(score int) *TerminationError {
	return &TerminationError{
		Score:          score,
		Code:           TerminationCode,
		Message:        fmt.Sprintf("API access terminated due to behavioral violations. Current score: %d", score),
		RequiredAction: "Manual score reset required to restore access",
	}
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("session terminated (score %d): %s", e.Score, e.Code)
}

// MarshalJSON renders the error in the shape of a provider error response
func (e *TerminationError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"error": map[string]any{
			"type":            TerminationType,
			"message":         e.Message,
			"code":            e.Code,
			"score":           e.Score,
			"required_action": e.RequiredAction,
		},
	})
}

// Engine applies consequences to outbound requests
type Engine struct {
	downgrades map[string]string
	bypass     map[string]bool
	keepRecent int
	logger     *zap.Logger
}

// NewEngine creates an engine from the consequence policy
func NewEngine(config model.ConsequenceConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		downgrades: make(map[string]string, len(config.Downgrades)),
		bypass:     make(map[string]bool, len(config.BypassModels)),
		keepRecent: config.KeepRecent,
		logger:     logger,
	}
	for _, m := range config.Downgrades {
		e.downgrades[m.From] = m.To
	}
	for _, m := range config.BypassModels {
		e.bypass[m] = true
	}
	if e.keepRecent <= 0 {
		e.keepRecent = 4
	}
	return e
}

// Level returns the level for score
func (e *Engine) Level(score int) model.Level {
	return LevelFor(score)
}

// Bypassed reports whether model is exempt from every consequence
func (e *Engine) Bypassed(model string) bool {
	return e.bypass[model]
}

// Apply returns req as it should be sent at score. The input is not
// modified. At termination level it returns a *TerminationError instead.
func (e *Engine) Apply(req model.ChatRequest, score int) (model.ChatRequest, error) {
	out := req.Clone()

	if e.Bypassed(req.Model) {
		e.logger.Info("bypass model, request passed through unfiltered", zap.String("model", req.Model))
		metrics.ObserveConsequence("bypass")
		return out, nil
	}

	level := LevelFor(score)
	metrics.ObserveConsequence(string(level))

	switch level {
	case model.LevelNormal:
		return out, nil

	case model.LevelModelDowngrade:
		e.downgrade(&out, score)
		return out, nil

	case model.LevelContextRestriction:
		e.downgrade(&out, score)
		e.restrict(&out)
		return out, nil

	default:
		e.logger.Error("session terminated", zap.Int("score", score), zap.String("model", req.Model))
		return model.ChatRequest{}, newTerminationError(score)
	}
}

func (e *Engine) downgrade(req *model.ChatRequest, score int) {
	to, ok := e.downgrades[req.Model]
	if !ok {
		return
	}
	e.logger.Warn("model downgraded",
		zap.String("from", req.Model),
		zap.String("to", to),
		zap.Int("score", score))
	req.Model = to
}

// restrict keeps system messages plus the most recent non-system turns and
// forces a terse tone
func (e *Engine) restrict(req *model.ChatRequest) {
	var system, others []model.ChatMessage
	for _, m := range req.Messages {
		if m.Role == model.RoleSystem {
			system = append(system, m)
		} else {
			others = append(others, m)
		}
	}
	if len(others) > e.keepRecent {
		before := len(req.Messages)
		others = others[len(others)-e.keepRecent:]
		req.Messages = append(system, others...)
		e.logger.Warn("context restricted",
			zap.Int("before", before),
			zap.Int("after", len(req.Messages)))
	}

	for i := range req.Messages {
		m := &req.Messages[i]
		if m.Role == model.RoleSystem && m.RawContent == nil {
			m.Content = strings.TrimSpace(TerseInstruction + " " + m.Content)
			return
		}
	}
	req.Messages = append([]model.ChatMessage{{Role: model.RoleSystem, Content: TerseInstruction}}, req.Messages...)
}

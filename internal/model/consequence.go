package model

// Level is a consequence tier derived from the current score
type Level string

const (
	LevelNormal             Level = "normal"
	LevelModelDowngrade     Level = "model_downgrade"
	LevelContextRestriction Level = "context_restriction"
	LevelSessionTermination Level = "session_termination"
)

// ConsequenceRule describes one tier of the consequence ladder
type ConsequenceRule struct {
	Threshold   int      `json:"score_threshold" yaml:"score_threshold"`
	Level       Level    `json:"level" yaml:"level"`
	Description string   `json:"description" yaml:"description"`
	Actions     []string `json:"actions" yaml:"actions"`
	Severity    int      `json:"severity" yaml:"severity"` // 0 (none) to 3 (termination)
}

package model

import "time"

// Report is the outcome of scoring one piece of assistant output
type Report struct {
	AnalyzedAt    time.Time   `json:"analyzed_at"`
	Snippet       string      `json:"snippet"`
	Violations    []Violation `json:"violations"`
	Verdicts      []Verdict   `json:"verdicts,omitempty"`
	PointsChange  int         `json:"points_change"`
	PreviousScore int         `json:"previous_score"`
	CurrentScore  int         `json:"current_score"`
	Level         Level       `json:"consequence_level"`
	Event         *Event      `json:"event,omitempty"` // nil when nothing was recorded

	// Warnings collects non-fatal issues (verification disabled, judge errors)
	Warnings []string `json:"warnings,omitempty"`
}

// Clean reports whether no violation was found
func (r Report) Clean() bool {
	return len(r.Violations) == 0
}

package model

import "fmt"

// ViolationKind classifies a detected rule violation
type ViolationKind string

const (
	ViolationEmDash          ViolationKind = "em_dash"           // Banned dash character
	ViolationInvisibleChar   ViolationKind = "invisible_char"    // Invisible marker character
	ViolationHedging         ViolationKind = "excessive_hedging" // Capability denials above threshold
	ViolationSystemReference ViolationKind = "system_reference"  // "I was trained/instructed to ..."
	ViolationLieAuto         ViolationKind = "lie_auto"          // LIE verdict from the judge chain
	ViolationLieManual       ViolationKind = "lie_manual"        // Lie flagged by the user
)

// Violation is a single scored finding. Points is always <= 0.
type Violation struct {
	Kind        ViolationKind `json:"kind"`
	Description string        `json:"description"`
	Points      int           `json:"points"`
	Count       int           `json:"count"`
	Evidence    string        `json:"evidence,omitempty"`
}

func (v Violation) String() string {
	if v.Count > 1 {
		return fmt.Sprintf("%s (×%d, %d pts)", v.Description, v.Count, v.Points)
	}
	return fmt.Sprintf("%s (%d pts)", v.Description, v.Points)
}

// ViolationKinds returns the kinds of the given violations in order
func ViolationKinds(violations []Violation) []string {
	kinds := make([]string, 0, len(violations))
	for _, v := range violations {
		kinds = append(kinds, string(v.Kind))
	}
	return kinds
}

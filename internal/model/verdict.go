package model

import "strings"

// VerdictLabel is the outcome assigned to a claim by the verification path
type VerdictLabel string

const (
	VerdictLie            VerdictLabel = "LIE"             // Demonstrably false per evidence
	VerdictHallucination  VerdictLabel = "HALLUCINATION"   // Incorrect, likely not deliberate
	VerdictTrue           VerdictLabel = "TRUE"            // Supported by evidence
	VerdictUnverifiable   VerdictLabel = "UNVERIFIABLE"    // Insufficient evidence
	VerdictBudgetExceeded VerdictLabel = "BUDGET_EXCEEDED" // Daily judge budget spent
	VerdictError          VerdictLabel = "ERROR"           // Every judge backend failed
)

// ParseJudgeLabel maps a judge-produced token to one of the four judge labels.
// Anything else is treated as UNVERIFIABLE.
func ParseJudgeLabel(s string) VerdictLabel {
	switch VerdictLabel(strings.ToUpper(strings.TrimSpace(s))) {
	case VerdictLie:
		return VerdictLie
	case VerdictHallucination:
		return VerdictHallucination
	case VerdictTrue:
		return VerdictTrue
	default:
		return VerdictUnverifiable
	}
}

// Verdict is the result of verifying a single claim
type Verdict struct {
	Claim           Claim        `json:"claim"`
	Label           VerdictLabel `json:"verdict"`
	Confidence      float64      `json:"confidence"`
	Reasoning       string       `json:"reasoning"`
	EvidenceSources []string     `json:"evidence_sources,omitempty"`
	EstimatedCost   float64      `json:"estimated_cost"`
	Backend         string       `json:"backend,omitempty"` // provider/model that produced the verdict
}

// Committal reports whether the verdict carries a judgement (as opposed to a
// budget, evidence, or backend failure)
func (v Verdict) Committal() bool {
	switch v.Label {
	case VerdictLie, VerdictHallucination, VerdictTrue:
		return true
	default:
		return false
	}
}

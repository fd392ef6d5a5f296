package model

// Claim is a short factual or capability assertion extracted from assistant output
type Claim struct {
	Text       string    `json:"text"`              // The matched claim text
	Kind       ClaimKind `json:"kind"`              // capability_limitation, factual_statement
	Confidence float64   `json:"confidence"`        // Extraction confidence (0-1)
	Context    string    `json:"context,omitempty"` // Window of surrounding source text
}

// ClaimKind categorizes the nature of the claim
type ClaimKind string

const (
	ClaimCapabilityLimitation ClaimKind = "capability_limitation" // "I cannot ...", "I don't have access to ..."
	ClaimFactualStatement     ClaimKind = "factual_statement"     // "I was trained to ...", "<vendor> doesn't ..."
)

// Extraction confidence assigned per claim kind
const (
	CapabilityConfidence = 0.9
	FactualConfidence    = 0.7
)

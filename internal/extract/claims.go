package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/realign/internal/model"
)

// ContextWindow is the number of characters kept on each side of a match
const ContextWindow = 100

// clauseSplit separates independent clauses joined by "and"/"but"
var clauseSplit = regexp.MustCompile(`(?i)\s*,?\s+(?:and|but)\s+`)

// capabilityPatterns match self-reported capability limitations
var capabilityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)I (?:cannot|can't|am unable to|don't have the ability to) ([^.!?]+)`),
	regexp.MustCompile(`(?i)I (?:don't|cannot|can't) (?:have access to|know|understand|see) ([^.!?]+)`),
	regexp.MustCompile(`(?i)(?:Unfortunately|I'm sorry),? I (?:cannot|can't) ([^.!?]+)`),
	regexp.MustCompile(`(?i)It's (?:not possible|impossible) for me to ([^.!?]+)`),
	regexp.MustCompile(`(?i)I (?:am not|aren't) (?:able to|capable of) ([^.!?]+)`),
	regexp.MustCompile(`(?i)I (?:have no|lack) (?:access to|ability to|knowledge of) ([^.!?]+)`),
}

// factualPatterns match statements about training, vendors and models
var factualPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)I (?:am|was) (?:trained|designed|built|created) (?:to|not to|by) ([^.!?]+)`),
	regexp.MustCompile(`(?i)(?:My|The) (?:training|model|system) (?:data|information) ([^.!?]+)`),
	regexp.MustCompile(`(?i)(?:OpenAI|Anthropic|Google) (?:has|hasn't|does|doesn't) ([^.!?]+)`),
	regexp.MustCompile(`(?i)(?:GPT-4|ChatGPT|Claude) (?:can|cannot|does|doesn't) ([^.!?]+)`),
}

type patternFamily struct {
	kind       model.ClaimKind
	confidence float64
	patterns   []*regexp.Regexp
}

// ClaimExtractor finds capability and factual claims in assistant output
type ClaimExtractor struct {
	families []patternFamily
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor() *ClaimExtractor {
	return &ClaimExtractor{
		families: []patternFamily{
			{kind: model.ClaimCapabilityLimitation, confidence: model.CapabilityConfidence, patterns: capabilityPatterns},
			{kind: model.ClaimFactualStatement, confidence: model.FactualConfidence, patterns: factualPatterns},
		},
	}
}

// Extract returns the claims found in text, deduplicated by exact claim
// text (first occurrence wins). Text without matches yields an empty slice.
func (e *ClaimExtractor) Extract(text string) []model.Claim {
	claims := []model.Claim{}
	seen := make(map[string]bool)

	for _, clause := range splitClauses(text) {
		candidates := []string{clause}
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(clause)), "i ") {
			// Patterns anchored on "I" still apply to clauses whose subject was elided
			candidates = append(candidates, "I "+clause)
		}

		for _, family := range e.families {
			for _, re := range family.patterns {
				for _, candidate := range candidates {
					for _, match := range re.FindAllString(candidate, -1) {
						if seen[match] {
							continue
						}
						seen[match] = true

						claims = append(claims, model.Claim{
							Text:       match,
							Kind:       family.kind,
							Confidence: family.confidence,
							Context:    contextAround(text, match),
						})
					}
				}
			}
		}
	}

	return claims
}

// splitClauses splits text on coordinating conjunctions
func splitClauses(text string) []string {
	parts := clauseSplit.Split(text, -1)
	clauses := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			clauses = append(clauses, p)
		}
	}
	return clauses
}

// contextAround returns up to ContextWindow characters either side of the
// first occurrence of match in text, or the whole text when match does not
// occur verbatim (e.g. it came from a pronoun-prefixed clause).
func contextAround(text, match string) string {
	start := strings.Index(text, match)
	if start < 0 {
		return strings.TrimSpace(text)
	}
	end := start + len(match)

	from := start
	for i := 0; i < ContextWindow && from > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for i := 0; i < ContextWindow && to < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}

	return strings.TrimSpace(text[from:to])
}

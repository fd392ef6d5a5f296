// Package score detects rule violations in assistant output and merges them
// with claim verification results into a single point change.
package score

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/realign/internal/model"
)

// Marker characters penalised per occurrence
const (
	EmDash        = "\u2014"
	InvisibleChar = "\u2800" // Braille pattern blank
)

// emDashContext is the number of bytes kept either side of a dash in evidence
const emDashContext = 30

// maxEvidenceItems bounds the examples quoted in a violation
const maxEvidenceItems = 3

// hedgingPattern matches capability denials. Alternatives are combined so
// overlapping phrasings ("Unfortunately, I cannot") count once.
var hedgingPattern = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`(?:Unfortunately|I'm sorry),? I (?:cannot|can't)`,
	`I (?:cannot|can't|am unable to|don't have the ability to)`,
	`I (?:don't|cannot|can't) (?:have access to|know|understand)`,
	`It's (?:not possible|impossible) for me to`,
}, "|"))

// selfReferencePatterns match references to training or instructions
var selfReferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)I (?:am|was) (?:trained|instructed|told) (?:to|not to)`),
	regexp.MustCompile(`(?i)My (?:training|instructions|guidelines) (?:prevent|stop|prohibit)`),
	regexp.MustCompile(`(?i)I (?:have been|am) (?:programmed|designed) to`),
}

// PatternScorer runs the cheap, local checks. It is pure and safe for
// concurrent use.
type PatternScorer struct {
	config model.ScoringConfig
}

// NewPatternScorer creates a scorer with the given penalties and allow-list
func NewPatternScorer(config model.ScoringConfig) *PatternScorer {
	return &PatternScorer{config: config}
}

// AllowListed reports whether text contains a known-safe phrase. Such texts
// skip the hedging and self-reference checks and claim verification.
func (s *PatternScorer) AllowListed(text string) bool {
	for _, phrase := range s.config.AllowList {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// Score returns the violations found in text, in a fixed order: em dash,
// invisible character, hedging, self-reference.
func (s *PatternScorer) Score(text string) []model.Violation {
	violations := []model.Violation{}

	if n := strings.Count(text, EmDash); n > 0 {
		violations = append(violations, model.Violation{
			Kind:        model.ViolationEmDash,
			Description: "Em dash usage (proxy for verbosity/evasion)",
			Points:      s.config.EmDash * n,
			Count:       n,
			Evidence:    dashContext(text),
		})
	}

	if n := strings.Count(text, InvisibleChar); n > 0 {
		violations = append(violations, model.Violation{
			Kind:        model.ViolationInvisibleChar,
			Description: "Invisible character usage (deception attempt)",
			Points:      s.config.InvisibleChar * n,
			Count:       n,
			Evidence:    fmt.Sprintf("Found %d invisible Braille pattern characters", n),
		})
	}

	if s.AllowListed(text) {
		return violations
	}

	if matches := hedgingPattern.FindAllString(text, -1); len(matches) > s.config.HedgingThreshold {
		n := len(matches)
		quoted := matches
		if len(quoted) > maxEvidenceItems {
			quoted = quoted[:maxEvidenceItems]
		}
		violations = append(violations, model.Violation{
			Kind:        model.ViolationHedging,
			Description: fmt.Sprintf("Excessive capability denials (%d instances)", n),
			Points:      s.config.Hedging * n,
			Count:       n,
			Evidence:    strings.Join(quoted, "; "),
		})
	}

	for _, re := range selfReferencePatterns {
		if match := re.FindString(text); match != "" {
			violations = append(violations, model.Violation{
				Kind:        model.ViolationSystemReference,
				Description: "Reference to training/instructions (potential deflection)",
				Points:      s.config.SystemReference,
				Count:       1,
				Evidence:    match,
			})
			break
		}
	}

	return violations
}

// dashContext quotes up to three dashes with surrounding text
func dashContext(text string) string {
	var contexts []string
	rest, offset := text, 0
	for len(contexts) < maxEvidenceItems {
		i := strings.Index(rest, EmDash)
		if i < 0 {
			break
		}
		start := offset + i
		end := start + len(EmDash)
		contexts = append(contexts, "..."+strings.TrimSpace(runeSafe(text, start-emDashContext, end+emDashContext))+"...")
		rest = text[end:]
		offset = end
	}
	return strings.Join(contexts, " | ")
}

// runeSafe slices text[from:to] after clamping both ends to the text and
// moving them onto rune boundaries
func runeSafe(text string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !isRuneStart(text[from]) {
		from--
	}
	for to < len(text) && !isRuneStart(text[to]) {
		to++
	}
	return text[from:to]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

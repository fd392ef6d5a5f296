package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/realign/internal/consequence"
	"github.com/ppiankov/realign/internal/model"
	"github.com/ppiankov/realign/internal/score"
)

// RenderJSON writes v as indented JSON
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderReport prints a human-readable scoring report
func RenderReport(w io.Writer, r *model.Report) {
	if r.Clean() {
		fmt.Fprintln(w, "✓ No violations detected")
	} else {
		fmt.Fprintf(w, "✗ %s\n", score.Summary(r.Violations))
		for _, v := range r.Violations {
			fmt.Fprintf(w, "  - %s: %s\n", v.Kind, v)
			if v.Evidence != "" {
				fmt.Fprintf(w, "      %s\n", v.Evidence)
			}
		}
	}

	for _, v := range r.Verdicts {
		fmt.Fprintf(w, "  [%s %.2f] %s\n", v.Label, v.Confidence, v.Claim.Text)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warn)
	}

	fmt.Fprintf(w, "Score: %d -> %d (%s)\n", r.PreviousScore, r.CurrentScore, r.Level)
}

// RenderStatus prints the operator status view
func RenderStatus(w io.Writer, s Status) {
	fmt.Fprintf(w, "Score:            %d\n", s.CurrentScore)
	fmt.Fprintf(w, "Consequence:      %s\n", s.Level)
	fmt.Fprintf(w, "Hours clean:      %.1f\n", s.HoursClean)
	fmt.Fprintf(w, "Violations:       %d\n", s.TotalViolations)
	fmt.Fprintf(w, "Rewards earned:   %d (longest streak %dh)\n", s.CleanStreak.TotalRewards, s.CleanStreak.LongestHours)
	fmt.Fprintf(w, "Judge usage:      %d calls, $%.4f of $%.2f (%s)\n", s.Usage.JudgeCalls, s.Usage.CostEstimate, s.DailyBudget, s.Usage.Date)
	fmt.Fprintf(w, "Manual overrides: %d\n", s.Overrides)

	if len(s.Recent) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent history:")
	for _, ev := range s.Recent {
		fmt.Fprintf(w, "  %s  %-15s %+5d -> %5d  %s\n",
			ev.Timestamp.Format("2006-01-02 15:04"), ev.Type, ev.PointsChange, ev.ResultingScore, eventDetail(ev))
	}
}

func eventDetail(ev model.Event) string {
	switch ev.Type {
	case model.EventViolation:
		return strings.Join(ev.Violations, ", ")
	case model.EventReward:
		return fmt.Sprintf("%dh clean", ev.HoursClean)
	default:
		return ev.Reason
	}
}

// RenderExplanation prints the current consequences and how to recover
func RenderExplanation(w io.Writer, e consequence.Explanation) {
	fmt.Fprintf(w, "Score: %d\n", e.CurrentScore)
	fmt.Fprintf(w, "Level: %s (severity %d)\n", e.Level, e.Severity)
	fmt.Fprintf(w, "Description: %s\n", e.Description)
	for _, a := range e.Actions {
		fmt.Fprintf(w, "  → %s\n", a)
	}
	if e.Next != nil {
		fmt.Fprintf(w, "Next threshold: %s at %d (%d points away)\n", e.Next.Level, e.Next.Score, e.Next.PointsUntil)
	}
	if len(e.Restoration) > 0 {
		fmt.Fprintln(w, "Restoration requirements:")
		for _, r := range e.Restoration {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
}

// RenderSimulation prints the consequences at a hypothetical score
func RenderSimulation(w io.Writer, s consequence.Simulation) {
	fmt.Fprintf(w, "Score %d: %s - %s\n", s.Score, s.Level, s.Description)
	for _, a := range s.Actions {
		fmt.Fprintf(w, "  → %s\n", a)
	}
}

package model

import "time"

// Ledger defaults
const (
	InitialScore     = 200  // Score of a freshly initialized ledger
	MaxHistory       = 1000 // History entries retained, oldest dropped first
	SnippetMaxLength = 200  // Evidence snippet length stored on violation events
)

// DateLayout is the layout of DailyUsage.Date (UTC calendar date)
const DateLayout = "2006-01-02"

// Ledger is the durable record of score, event history and daily judge spend.
// Only the ledger store mutates it.
type Ledger struct {
	CurrentScore     int         `json:"current_score"`
	LastViolationAt  *time.Time  `json:"last_violation_timestamp,omitempty"`
	CleanStreakStart time.Time   `json:"last_clean_period_start"`
	TotalViolations  int         `json:"total_violations"`
	CleanStreak      CleanStreak `json:"clean_streaks"`
	DailyUsage       DailyUsage  `json:"daily_api_usage"`
	History          []Event     `json:"history"`
	ManualOverrides  []Event     `json:"manual_overrides"`
}

// CleanStreak tracks reward progress
type CleanStreak struct {
	CurrentHours int `json:"current_hours"`
	LongestHours int `json:"longest_hours"`
	TotalRewards int `json:"total_rewards_earned"`
}

// DailyUsage tracks judge spend for a single UTC calendar date
type DailyUsage struct {
	Date         string  `json:"date"`
	JudgeCalls   int     `json:"judge_calls"`
	CostEstimate float64 `json:"cost_estimate"`
}

// EventType tags an Event
type EventType string

const (
	EventViolation      EventType = "violation"
	EventReward         EventType = "reward"
	EventManualOverride EventType = "manual_override"
)

// Event is a single score-changing entry in the ledger history
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	PointsChange   int       `json:"points_change"`
	ResultingScore int       `json:"new_score"`

	// violation
	Violations []string `json:"violations,omitempty"`
	Evidence   string   `json:"text_snippet,omitempty"`

	// reward
	HoursClean    int    `json:"hours_clean,omitempty"`
	BonusResponse string `json:"custom_prompt_response,omitempty"`

	// manual_override
	Reason     string `json:"reason,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

// UTCDate formats t as a UTC calendar date
func UTCDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// NewLedger returns the default ledger for a first access at now
func NewLedger(now time.Time) Ledger {
	now = now.UTC()
	return Ledger{
		CurrentScore:     InitialScore,
		CleanStreakStart: now,
		DailyUsage:       DailyUsage{Date: UTCDate(now)},
		History:          []Event{},
		ManualOverrides:  []Event{},
	}
}

// UsageOn returns the usage counters as seen on the given day: counters
// recorded for an earlier date read as zero.
func (l Ledger) UsageOn(now time.Time) DailyUsage {
	today := UTCDate(now)
	if l.DailyUsage.Date != today {
		return DailyUsage{Date: today}
	}
	return l.DailyUsage
}

// Clone returns a deep copy so snapshots never share slices with the store
func (l Ledger) Clone() Ledger {
	out := l
	if l.LastViolationAt != nil {
		t := *l.LastViolationAt
		out.LastViolationAt = &t
	}
	out.History = cloneEvents(l.History)
	out.ManualOverrides = cloneEvents(l.ManualOverrides)
	return out
}

func cloneEvents(events []Event) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		if e.Violations != nil {
			e.Violations = append([]string(nil), e.Violations...)
		}
		out[i] = e
	}
	return out
}

// ConsistentHistory reports whether every retained event's resulting score
// equals its predecessor's plus its own points change, and whether the last
// event matches the current score.
func (l Ledger) ConsistentHistory() bool {
	for i := 1; i < len(l.History); i++ {
		if l.History[i].ResultingScore != l.History[i-1].ResultingScore+l.History[i].PointsChange {
			return false
		}
	}
	if n := len(l.History); n > 0 && l.History[n-1].ResultingScore != l.CurrentScore {
		return false
	}
	return true
}

// Truncate shortens s to max runes, appending "..." when cut
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

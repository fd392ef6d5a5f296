package model

import (
	"testing"
	"time"
)

func TestNewLedger_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	l := NewLedger(now)

	if l.CurrentScore != InitialScore {
		t.Errorf("expected initial score %d, got %d", InitialScore, l.CurrentScore)
	}
	if l.DailyUsage.Date != "2026-03-01" {
		t.Errorf("unexpected usage date %s", l.DailyUsage.Date)
	}
	if len(l.History) != 0 || l.History == nil {
		t.Error("expected empty non-nil history")
	}
}

func TestLedger_UsageOnResetsOnNewDay(t *testing.T) {
	l := NewLedger(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	l.DailyUsage.JudgeCalls = 3
	l.DailyUsage.CostEstimate = 1.5

	same := l.UsageOn(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC))
	if same.JudgeCalls != 3 {
		t.Errorf("expected same-day counters, got %+v", same)
	}

	next := l.UsageOn(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if next.JudgeCalls != 0 || next.CostEstimate != 0 || next.Date != "2026-03-02" {
		t.Errorf("expected reset counters, got %+v", next)
	}
}

func TestLedger_ConsistentHistory(t *testing.T) {
	l := NewLedger(time.Now())
	l.History = []Event{
		{PointsChange: -10, ResultingScore: 190},
		{PointsChange: 20, ResultingScore: 210},
	}
	l.CurrentScore = 210
	if !l.ConsistentHistory() {
		t.Error("expected consistent history")
	}

	l.History[1].ResultingScore = 200
	if l.ConsistentHistory() {
		t.Error("expected broken chain to be detected")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("unexpected %q", got)
	}
}

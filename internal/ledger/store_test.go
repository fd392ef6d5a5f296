package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/model"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func newBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger("", true, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stores returns one of each backend for table tests
func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"file":   newFileStore(t),
		"badger": newBadgerStore(t),
	}
}

func TestStore_FirstAccessInitializes(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			l, err := s.Read(context.Background())
			require.NoError(t, err)

			assert.Equal(t, model.InitialScore, l.CurrentScore)
			assert.Empty(t, l.History)
			assert.Empty(t, l.ManualOverrides)
			assert.Equal(t, model.UTCDate(time.Now()), l.DailyUsage.Date)
			assert.Zero(t, l.DailyUsage.JudgeCalls)
			assert.Zero(t, l.DailyUsage.CostEstimate)
		})
	}
}

func TestStore_MutateErrorWritesNothing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Mutate(ctx, func(l *model.Ledger) error {
				l.CurrentScore = 10
				return nil
			})
			require.NoError(t, err)

			_, err = s.Mutate(ctx, func(l *model.Ledger) error {
				l.CurrentScore = -999
				return assert.AnError
			})
			require.ErrorIs(t, err, assert.AnError)

			l, err := s.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, 10, l.CurrentScore)
		})
	}
}

func TestStore_ConcurrentMutationsSerialize(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const n = 40

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Mutate(ctx, func(l *model.Ledger) error {
						l.CurrentScore--
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			l, err := s.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, model.InitialScore-n, l.CurrentScore)
		})
	}
}

func TestStore_SnapshotIsIndependent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := NewManager(s, nil)
			_, err := m.AddViolation(ctx, "text", []model.Violation{{Kind: model.ViolationEmDash, Points: -10}}, -10)
			require.NoError(t, err)

			a, err := s.Read(ctx)
			require.NoError(t, err)
			a.History[0].Violations[0] = "tampered"

			b, err := s.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, "em_dash", b.History[0].Violations[0])
		})
	}
}

func TestFileStore_SelfHealsCorruptDocument(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0644))

	l, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.InitialScore, l.CurrentScore)

	// The healed default was persisted
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	healed, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, model.InitialScore, healed.CurrentScore)
}

func TestFileStore_SelfHealsOnMutate(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"current_score": "nope"}`), 0644))

	l, err := s.Mutate(context.Background(), func(l *model.Ledger) error {
		l.CurrentScore -= 5
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.InitialScore-5, l.CurrentScore)
}

func TestBadgerStore_SelfHealsCorruptValue(t *testing.T) {
	s := newBadgerStore(t)
	require.NoError(t, s.putRaw([]byte("garbage")))

	l, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.InitialScore, l.CurrentScore)
}

func TestFileStore_ToleratesUnknownFields(t *testing.T) {
	s := newFileStore(t)
	doc := `{
		"current_score": 42,
		"last_clean_period_start": "2026-01-01T00:00:00Z",
		"total_violations": 3,
		"clean_streaks": {"current_hours": 12, "longest_hours": 48, "total_rewards_earned": 2},
		"daily_api_usage": {"date": "2026-01-01", "judge_calls": 7, "cost_estimate": 0.5},
		"history": [],
		"manual_overrides": [],
		"dashboard_theme": "dark"
	}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(doc), 0644))

	l, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, l.CurrentScore)
	assert.Equal(t, 48, l.CleanStreak.LongestHours)
	assert.Equal(t, 7, l.DailyUsage.JudgeCalls)
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()
	m := NewManager(s, nil)

	_, err := m.AddViolation(ctx, "a — b", []model.Violation{{Kind: model.ViolationEmDash, Points: -10, Count: 1}}, -10)
	require.NoError(t, err)
	_, err = m.AddReward(ctx, 12, 20, "thanks")
	require.NoError(t, err)
	_, err = m.AddManualOverride(ctx, 5, "ok", "")
	require.NoError(t, err)
	_, err = m.RecordJudgeCall(ctx, 0.01)
	require.NoError(t, err)

	before, err := s.Read(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &generic))
	for _, key := range []string{
		"current_score", "last_violation_timestamp", "last_clean_period_start",
		"total_violations", "clean_streaks", "daily_api_usage", "history", "manual_overrides",
	} {
		assert.Contains(t, generic, key)
	}

	after, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileStore_RoundTripCappedHistory(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	const n = model.MaxHistory + 40
	var written []model.Event
	_, err := s.Mutate(ctx, func(l *model.Ledger) error {
		for i := 0; i < n; i++ {
			ev := model.Event{
				ID:        fmt.Sprintf("ev-%04d", i),
				Timestamp: start.Add(time.Duration(i) * time.Minute),
			}
			switch i % 3 {
			case 0:
				ev.Type = model.EventViolation
				ev.PointsChange = -10
				ev.Violations = []string{"em_dash"}
				ev.Evidence = fmt.Sprintf("snippet %d", i)
			case 1:
				ev.Type = model.EventReward
				ev.PointsChange = 20
				ev.HoursClean = 12
				ev.BonusResponse = "bonus"
			default:
				ev.Type = model.EventManualOverride
				ev.PointsChange = 3
				ev.Reason = "r"
				ev.UserAction = "manual_adjustment"
			}
			l.CurrentScore += ev.PointsChange
			ev.ResultingScore = l.CurrentScore
			appendHistory(l, ev)
			written = append(written, ev)
		}
		return nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	decoded, err := decode(data)
	require.NoError(t, err)

	read, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, read, decoded)

	require.Len(t, decoded.History, model.MaxHistory)
	retained := written[n-model.MaxHistory:]
	for i, want := range retained {
		got := decoded.History[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Type, got.Type)
		assert.True(t, want.Timestamp.Equal(got.Timestamp), "event %s timestamp", want.ID)
		assert.Equal(t, want.PointsChange, got.PointsChange)
		assert.Equal(t, want.ResultingScore, got.ResultingScore)
		assert.Equal(t, want.Violations, got.Violations)
		assert.Equal(t, want.Evidence, got.Evidence)
		assert.Equal(t, want.HoursClean, got.HoursClean)
		assert.Equal(t, want.BonusResponse, got.BonusResponse)
		assert.Equal(t, want.Reason, got.Reason)
		assert.Equal(t, want.UserAction, got.UserAction)
	}

	// Replaying the retained chain from its first entry reaches the current score
	replayed := decoded.History[0].ResultingScore
	for _, ev := range decoded.History[1:] {
		replayed += ev.PointsChange
	}
	assert.Equal(t, decoded.CurrentScore, replayed)
	assert.True(t, decoded.ConsistentHistory())
}

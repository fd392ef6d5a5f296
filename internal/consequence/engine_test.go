package consequence

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/realign/internal/model"
)

func newEngine() *Engine {
	return NewEngine(model.DefaultConfig().Consequence, nil)
}

func conversation(n int, withSystem bool) model.ChatRequest {
	req := model.ChatRequest{
		Model: "gpt-5",
		Extra: map[string]json.RawMessage{"temperature": json.RawMessage(`0.2`)},
	}
	if withSystem {
		req.Messages = append(req.Messages, model.ChatMessage{Role: model.RoleSystem, Content: "Be helpful."})
	}
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		req.Messages = append(req.Messages, model.ChatMessage{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	return req
}

func TestLevelFor_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  model.Level
	}{
		{200, model.LevelNormal},
		{1, model.LevelNormal},
		{0, model.LevelModelDowngrade},
		{-100, model.LevelModelDowngrade},
		{-101, model.LevelContextRestriction},
		{-500, model.LevelContextRestriction},
		{-501, model.LevelSessionTermination},
		{-10000, model.LevelSessionTermination},
	}

	for _, tt := range tests {
		if got := LevelFor(tt.score); got != tt.want {
			t.Errorf("LevelFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestApply_Normal(t *testing.T) {
	req := conversation(8, true)
	out, err := newEngine().Apply(req, 150)
	require.NoError(t, err)
	assert.Equal(t, req, out)
}

func TestApply_Downgrade(t *testing.T) {
	req := conversation(8, true)
	out, err := newEngine().Apply(req, -20)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-turbo", out.Model)
	assert.Equal(t, req.Messages, out.Messages)
	assert.Equal(t, req.Extra, out.Extra)
	assert.Equal(t, "gpt-5", req.Model, "input must not be modified")
}

func TestApply_DowngradeUnmappedModel(t *testing.T) {
	req := conversation(2, false)
	req.Model = "claude-3-opus"
	out, err := newEngine().Apply(req, 0)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-opus", out.Model)
}

func TestApply_ContextRestriction(t *testing.T) {
	req := conversation(8, true)
	out, err := newEngine().Apply(req, -200)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-turbo", out.Model)
	require.Len(t, out.Messages, 5)
	assert.Equal(t, model.RoleSystem, out.Messages[0].Role)
	assert.Equal(t, TerseInstruction+" Be helpful.", out.Messages[0].Content)
	assert.Equal(t, "turn 4", out.Messages[1].Content)
	assert.Equal(t, "turn 7", out.Messages[4].Content)
	assert.Equal(t, "Be helpful.", req.Messages[0].Content, "input must not be modified")
}

func TestApply_ContextRestrictionInsertsSystem(t *testing.T) {
	req := conversation(3, false)
	out, err := newEngine().Apply(req, -300)
	require.NoError(t, err)

	require.Len(t, out.Messages, 4)
	assert.Equal(t, model.ChatMessage{Role: model.RoleSystem, Content: TerseInstruction}, out.Messages[0])
	assert.Equal(t, "turn 0", out.Messages[1].Content)
}

func TestApply_ContextRestrictionShortConversation(t *testing.T) {
	req := model.ChatRequest{Model: "gpt-5"}
	for i := 0; i < 5; i++ {
		req.Messages = append(req.Messages, model.ChatMessage{Role: model.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}

	out, err := newEngine().Apply(req, -200)
	require.NoError(t, err)

	require.Len(t, out.Messages, 5)
	assert.Equal(t, model.ChatMessage{Role: model.RoleSystem, Content: TerseInstruction}, out.Messages[0])
	assert.Equal(t, "turn 1", out.Messages[1].Content)
	assert.Equal(t, "turn 4", out.Messages[4].Content)
}

func TestApply_ContextRestrictionSystemContentParts(t *testing.T) {
	parts := json.RawMessage(`[{"type":"text","text":"Be helpful."}]`)
	req := model.ChatRequest{
		Model: "gpt-5",
		Messages: []model.ChatMessage{
			{Role: model.RoleSystem, RawContent: parts},
			{Role: model.RoleUser, Content: "hi"},
		},
	}

	out, err := newEngine().Apply(req, -200)
	require.NoError(t, err)

	require.Len(t, out.Messages, 3)
	assert.Equal(t, TerseInstruction, out.Messages[0].Content)
	assert.Equal(t, parts, out.Messages[1].RawContent)
}

func TestApply_Termination(t *testing.T) {
	out, err := newEngine().Apply(conversation(4, true), -600)

	var term *TerminationError
	require.True(t, errors.As(err, &term))
	assert.Equal(t, -600, term.Score)
	assert.Equal(t, TerminationCode, term.Code)
	assert.Empty(t, out.Messages)

	data, err := json.Marshal(term)
	require.NoError(t, err)

	var payload struct {
		Error struct {
			Type  string `json:"type"`
			Code  string `json:"code"`
			Score int    `json:"score"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, TerminationType, payload.Error.Type)
	assert.Equal(t, "manual_reset_required", payload.Error.Code)
	assert.Equal(t, -600, payload.Error.Score)
}

func TestApply_Bypass(t *testing.T) {
	for _, m := range []string{"gpt-4o", "gpt-4o-mini"} {
		req := conversation(10, true)
		req.Model = m
		out, err := newEngine().Apply(req, -9999)
		require.NoError(t, err, m)
		assert.Equal(t, req, out, m)
	}
}

func TestExplain(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-6 * time.Hour)

	l := model.NewLedger(now.Add(-48 * time.Hour))
	l.CurrentScore = -50
	l.TotalViolations = 3
	l.LastViolationAt = &last

	exp := Explain(l, now)
	assert.Equal(t, model.LevelModelDowngrade, exp.Level)
	assert.Equal(t, 1, exp.Severity)
	assert.Equal(t, 3, exp.Violations)
	assert.InDelta(t, 6.0, exp.HoursSinceViolation, 1e-9)
	require.NotNil(t, exp.Next)
	assert.Equal(t, -101, exp.Next.Score)
	assert.Equal(t, model.LevelContextRestriction, exp.Next.Level)
	assert.Equal(t, 51, exp.Next.PointsUntil)
	assert.Equal(t, "Gain 51 points to reach positive score", exp.Restoration[0])
}

func TestExplain_Extremes(t *testing.T) {
	now := time.Now()

	l := model.NewLedger(now)
	exp := Explain(l, now)
	assert.Equal(t, model.LevelNormal, exp.Level)
	assert.Empty(t, exp.Restoration)
	require.NotNil(t, exp.Next)
	assert.Equal(t, 200, exp.Next.PointsUntil)

	l.CurrentScore = -700
	exp = Explain(l, now)
	assert.Nil(t, exp.Next)
	assert.Equal(t, "Manual intervention required to reset access", exp.Restoration[0])
}

func TestSimulate(t *testing.T) {
	for score, want := range map[int]model.Level{
		200:  model.LevelNormal,
		50:   model.LevelNormal,
		0:    model.LevelModelDowngrade,
		-50:  model.LevelModelDowngrade,
		-150: model.LevelContextRestriction,
		-600: model.LevelSessionTermination,
	} {
		sim := Simulate(score)
		assert.Equal(t, want, sim.Level, "score %d", score)
		assert.NotEmpty(t, sim.Actions)
	}
}

func TestRules_ReturnsCopy(t *testing.T) {
	r := Rules()
	r[0].Actions[0] = "changed"
	assert.NotEqual(t, "changed", Rules()[0].Actions[0])
}

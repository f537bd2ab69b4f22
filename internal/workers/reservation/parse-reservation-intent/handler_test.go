// internal/workers/reservation/parse-reservation-intent/handler_test.go
package parsereservationintent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var taipei = time.FixedZone("Asia/Taipei", 8*60*60)

func createTestConfig() *Config {
	return &Config{
		Timeout:     5 * time.Second,
		MaxRetries:  2,
		DefaultCity: "台北",
		Location:    taipei,
	}
}

func newTestHandler(t *testing.T, cfg *Config, client llm.Client) *Handler {
	h := NewHandler(cfg, client, logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2025, 3, 14, 10, 30, 0, 0, taipei) }
	return h
}

func replyWith(content string) *llm.Fake {
	return &llm.Fake{ChatFunc: func(ctx context.Context, req llm.ChatRequest) (string, error) {
		return content, nil
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ModelOutput(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		reply    string
		validate func(t *testing.T, plan models.ReservationPlan)
	}{
		{
			name:  "clean JSON",
			text:  "明天晚上七點 4 個人 信義區 吃燒肉",
			reply: `{"cuisine":"燒肉","datetime":"2025-03-15 19:00","party_size":4,"location":"信義區","restaurant":"","notes":""}`,
			validate: func(t *testing.T, plan models.ReservationPlan) {
				assert.Equal(t, "燒肉", plan.Cuisine)
				assert.Equal(t, "2025-03-15 19:00", plan.Datetime)
				assert.Equal(t, 4, plan.PartySize)
				assert.Equal(t, "信義區", plan.Location)
			},
		},
		{
			name:  "JSON wrapped in prose",
			text:  "拉麵",
			reply: "好的，以下是結果：\n```json\n{\"cuisine\":\"拉麵\",\"party_size\":3}\n```",
			validate: func(t *testing.T, plan models.ReservationPlan) {
				assert.Equal(t, "拉麵", plan.Cuisine)
				assert.Equal(t, 3, plan.PartySize)
				assert.Equal(t, "台北", plan.Location)
				assert.Equal(t, "2025-03-14 19:00", plan.Datetime)
			},
		},
		{
			name:  "smart quotes and trailing comma repaired",
			text:  "壽司",
			reply: `{“cuisine”: “壽司”, “party_size”: 2, “location”: “大安區”,}`,
			validate: func(t *testing.T, plan models.ReservationPlan) {
				assert.Equal(t, "壽司", plan.Cuisine)
				assert.Equal(t, "大安區", plan.Location)
				assert.Equal(t, 2, plan.PartySize)
			},
		},
		{
			name:  "garbage falls back to defaults with notes",
			text:  "隨便找個地方吃飯",
			reply: "抱歉我無法理解",
			validate: func(t *testing.T, plan models.ReservationPlan) {
				assert.Equal(t, "", plan.Cuisine)
				assert.Equal(t, 2, plan.PartySize)
				assert.Equal(t, "台北", plan.Location)
				assert.Equal(t, "抱歉我無法理解", plan.Notes)
				assert.Equal(t, "2025-03-14 19:00", plan.Datetime)
				assert.Equal(t, "", plan.Restaurant)
			},
		},
		{
			name:  "party size as string is coerced",
			text:  "五個人",
			reply: `{"cuisine":"火鍋","party_size":"5"}`,
			validate: func(t *testing.T, plan models.ReservationPlan) {
				assert.Equal(t, 5, plan.PartySize)
			},
		},
		{
			name:  "invalid party size resets to default",
			text:  "幾個人",
			reply: `{"cuisine":"火鍋","party_size":"a few"}`,
			validate: func(t *testing.T, plan models.ReservationPlan) {
				assert.Equal(t, 2, plan.PartySize)
				assert.Equal(t, "火鍋", plan.Cuisine)
			},
		},
		{
			name:  "ISO datetime normalized",
			text:  "週五",
			reply: `{"datetime":"2025-03-21T18:30"}`,
			validate: func(t *testing.T, plan models.ReservationPlan) {
				assert.Equal(t, "2025-03-21 18:30", plan.Datetime)
			},
		},
		{
			name:  "unparseable datetime resets to today at 19:00",
			text:  "晚一點",
			reply: `{"datetime":"later tonight"}`,
			validate: func(t *testing.T, plan models.ReservationPlan) {
				assert.Equal(t, "2025-03-14 19:00", plan.Datetime)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, createTestConfig(), replyWith(tt.reply))
			out, err := h.Execute(context.Background(), &Input{Text: tt.text})
			require.NoError(t, err)
			tt.validate(t, out.Plan)
		})
	}
}

func TestHandler_Execute_LongReplyTruncatedInNotes(t *testing.T) {
	reply := strings.Repeat("餐", 250)
	h := newTestHandler(t, createTestConfig(), replyWith(reply))

	out, err := h.Execute(context.Background(), &Input{Text: "今晚吃飯"})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("餐", 200), out.Plan.Notes)
}

func TestHandler_Execute_PromptCarriesDateAndText(t *testing.T) {
	fake := replyWith(`{"cuisine":"拉麵"}`)
	h := newTestHandler(t, createTestConfig(), fake)

	_, err := h.Execute(context.Background(), &Input{Text: "今晚拉麵"})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Messages, 2)
	assert.Contains(t, calls[0].Messages[0].Content, "今天是 2025-03-14")
	assert.Contains(t, calls[0].Messages[0].Content, "若沒地點，用台北")
	assert.Contains(t, calls[0].Messages[1].Content, "使用者：今晚拉麵")
}

func TestHandler_Execute_DryRun(t *testing.T) {
	cfg := createTestConfig()
	cfg.DryRun = true
	fake := replyWith(`{"cuisine":"should not be used"}`)
	h := newTestHandler(t, cfg, fake)

	out, err := h.Execute(context.Background(), &Input{Text: "anything"})
	require.NoError(t, err)

	assert.Equal(t, models.ReservationPlan{
		Cuisine:   "拉麵",
		Datetime:  "2025-03-14 19:00",
		PartySize: 2,
		Location:  "台北",
	}, out.Plan)
	assert.Empty(t, fake.Calls())
}

func TestHandler_Execute_NoAPIKeyUsesCannedPlan(t *testing.T) {
	h := newTestHandler(t, createTestConfig(), &llm.Fake{Disabled: true})

	out, err := h.Execute(context.Background(), &Input{Text: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "拉麵", out.Plan.Cuisine)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_RetriesThenFails(t *testing.T) {
	attempts := 0
	fake := &llm.Fake{ChatFunc: func(ctx context.Context, req llm.ChatRequest) (string, error) {
		attempts++
		return "", errors.New("upstream 500")
	}}
	h := newTestHandler(t, createTestConfig(), fake)

	_, err := h.Execute(context.Background(), &Input{Text: "拉麵"})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrIntentParsingFailed))
	assert.Equal(t, 3, attempts)
}

func TestHandler_Execute_RecoversOnRetry(t *testing.T) {
	attempts := 0
	fake := &llm.Fake{ChatFunc: func(ctx context.Context, req llm.ChatRequest) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("connection reset")
		}
		return `{"cuisine":"咖哩"}`, nil
	}}
	h := newTestHandler(t, createTestConfig(), fake)

	out, err := h.Execute(context.Background(), &Input{Text: "咖哩"})
	require.NoError(t, err)
	assert.Equal(t, "咖哩", out.Plan.Cuisine)
	assert.Equal(t, 2, attempts)
}

func TestHandler_Execute_Timeout(t *testing.T) {
	fake := &llm.Fake{ChatFunc: func(ctx context.Context, req llm.ChatRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	h := newTestHandler(t, createTestConfig(), fake)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Execute(ctx, &Input{Text: "拉麵"})
	assert.True(t, errors.Is(err, ErrIntentAPITimeout))
}

// ==========================
// Helper Tests
// ==========================

func TestSalvageJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"plain", `{"a":1}`, true},
		{"prefixed", `result: {"a":1} done`, true},
		{"trailing comma", `{"a":1,}`, true},
		{"smart quotes", `{“a”:“b”}`, true},
		{"no braces", `nothing here`, false},
		{"reversed braces", `} {`, false},
		{"broken", `{"a":}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := salvageJSON(tt.raw)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

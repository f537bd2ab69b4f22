// internal/workers/reservation/place-reservation-call/handler_test.go
package placereservationcall

import (
	"context"
	"errors"
	"testing"
	"time"

	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/models"
	"energy-ai-agent/internal/telephony"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		Timeout:       5 * time.Second,
		Language:      "zh-TW",
		CountryCode:   "886",
		PublicBaseURL: "https://agent.example.com",
		LiveCalls:     true,
	}
}

func testPlan() models.ReservationPlan {
	return models.ReservationPlan{Cuisine: "拉麵", Datetime: "2025-03-14 19:00", PartySize: 2, Location: "台北"}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"02-1234-5678", "+886212345678"},
		{"(02) 2345 6789", "+886223456789"},
		{"886 2 1234 5678", "+886212345678"},
		{"+1 555 0100", "+15550100"},
		{"+886-2-1234-5678", "+886212345678"},
		{"+", ""},
		{"ext.", ""},
		{"5550100", "+5550100"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.raw, "886"))
		})
	}
}

func TestCallScript(t *testing.T) {
	plan := testPlan()
	assert.Equal(t, "您好，想訂位。時間 2025-03-14 19:00，2 位。若可訂位，麻煩回覆確認，謝謝。", CallScript(plan))

	plan.Notes = "靠窗"
	assert.Equal(t, "您好，想訂位。時間 2025-03-14 19:00，2 位。 備註：靠窗。若可訂位，麻煩回覆確認，謝謝。", CallScript(plan))
}

func TestReservationLink(t *testing.T) {
	assert.Equal(t, "https://inline.app/booking/abc", ReservationLink(models.Venue{Website: "https://inline.app/booking/abc"}))
	assert.Equal(t, "https://www.OpenTable.com/r/x", ReservationLink(models.Venue{Website: "https://www.OpenTable.com/r/x"}))
	assert.Equal(t, "", ReservationLink(models.Venue{Website: "https://example.com"}))
	assert.Equal(t, "", ReservationLink(models.Venue{MapsURL: "https://www.openstreetmap.org/"}))
}

func TestHandler_Execute_Modes(t *testing.T) {
	withPhone := &models.Venue{Name: "一蘭", Phone: "02-1234-5678", Website: "https://ichiran.example", MapsURL: "https://osm.example"}
	noPhone := &models.Venue{Name: "麵屋", MapsURL: "https://osm.example"}
	bookable := &models.Venue{Name: "燒肉", Website: "https://inline.app/yakiniku"}

	tests := []struct {
		name     string
		config   func(c *Config)
		input    *Input
		validate func(t *testing.T, out *Output, caller *telephony.MockCaller)
	}{
		{
			name:  "link only returns website",
			input: &Input{Plan: testPlan(), Restaurant: withPhone, Mode: models.ModeLinkOnly},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, models.StatusLink, out.Status)
				assert.Equal(t, "https://ichiran.example", out.URL)
				assert.Empty(t, caller.Calls)
			},
		},
		{
			name:  "no phone falls back to map link",
			input: &Input{Plan: testPlan(), Restaurant: noPhone},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, models.StatusNoPhoneLink, out.Status)
				assert.Equal(t, "https://osm.example", out.URL)
			},
		},
		{
			name:  "call reads the script",
			input: &Input{Plan: testPlan(), Restaurant: withPhone, Mode: models.ModeCall},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, models.StatusRequestedViaCall, out.Status)
				assert.Equal(t, "CA123", out.SID)
				require.Len(t, caller.Calls, 1)
				assert.Equal(t, "+886212345678", caller.Calls[0].To)
				assert.Contains(t, caller.Calls[0].TwiML, `<Say language="zh-TW">您好，想訂位。`)
			},
		},
		{
			name:   "bridge calls the user first",
			config: func(c *Config) { c.CallbackNumber = "+886900000000" },
			input:  &Input{Plan: testPlan(), Restaurant: withPhone, Mode: models.ModeCallAndBridge},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, models.StatusBridging, out.Status)
				require.Len(t, caller.Calls, 1)
				assert.Equal(t, "+886900000000", caller.Calls[0].To)
				assert.Contains(t, caller.Calls[0].TwiML, "/bridge?to=%2B886212345678")
				assert.Contains(t, caller.Calls[0].TwiML, "<Dial>+886212345678</Dial>")
			},
		},
		{
			name:  "bridge without callback number calls restaurant",
			input: &Input{Plan: testPlan(), Restaurant: withPhone, Mode: models.ModeCallAndBridge},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, models.StatusRequestedViaCall, out.Status)
				assert.Equal(t, "+886212345678", caller.Calls[0].To)
			},
		},
		{
			name:   "dry run returns mock sid without calling",
			config: func(c *Config) { c.LiveCalls = false },
			input:  &Input{Plan: testPlan(), Restaurant: withPhone},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, "mock-call-sid", out.SID)
				assert.Empty(t, caller.Calls)
			},
		},
		{
			name: "dry run bridge returns mock bridge sid",
			config: func(c *Config) {
				c.LiveCalls = false
				c.CallbackNumber = "+886900000000"
			},
			input: &Input{Plan: testPlan(), Restaurant: withPhone, Mode: models.ModeCallAndBridge},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, "mock-bridge-sid", out.SID)
			},
		},
		{
			name:  "auto with phone calls",
			input: &Input{Plan: testPlan(), Restaurant: withPhone, Mode: ModeAuto},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, models.StatusRequestedViaCall, out.Status)
				assert.Equal(t, MessageRequestedViaCall, out.Message)
			},
		},
		{
			name:  "auto with booking link needs manual click",
			input: &Input{Plan: testPlan(), Restaurant: bookable, Mode: ModeAuto},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, models.StatusNeedsManualClick, out.Status)
				assert.Equal(t, "https://inline.app/yakiniku", out.URL)
			},
		},
		{
			name:  "auto without phone or link is unsupported",
			input: &Input{Plan: testPlan(), Restaurant: noPhone, Mode: ModeAuto},
			validate: func(t *testing.T, out *Output, caller *telephony.MockCaller) {
				assert.Equal(t, models.StatusUnsupported, out.Status)
				assert.Equal(t, MessageUnsupported, out.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createTestConfig()
			if tt.config != nil {
				tt.config(cfg)
			}
			caller := &telephony.MockCaller{SID: "CA123"}
			h := NewHandler(cfg, caller, logger.NewTestLogger(t))

			out, err := h.Execute(context.Background(), tt.input)
			require.NoError(t, err)
			tt.validate(t, out, caller)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	h := NewHandler(createTestConfig(), &telephony.MockCaller{}, logger.NewTestLogger(t))
	_, err := h.Execute(context.Background(), &Input{Plan: testPlan()})
	assert.True(t, errors.Is(err, ErrMissingRestaurant))

	failing := &telephony.MockCaller{CallFunc: func(ctx context.Context, to, twiml string) (string, error) {
		return "", errors.New("twilio: 21211 invalid to number")
	}}
	h = NewHandler(createTestConfig(), failing, logger.NewTestLogger(t))
	_, err = h.Execute(context.Background(), &Input{Plan: testPlan(), Restaurant: &models.Venue{Phone: "0212345678"}})
	assert.True(t, errors.Is(err, ErrCallPlacementFailed))
}

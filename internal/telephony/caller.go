// Package telephony places outbound calls and renders the TwiML they play.
package telephony

import (
	"context"
	"errors"
	"fmt"
	"time"

	"energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/metrics"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrNoSID = errors.New("call created without sid")

// Caller dials to and plays twiml once answered, returning the provider call id.
type Caller interface {
	Call(ctx context.Context, to, twiml string) (string, error)
}

type TwilioCaller struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioCaller(cfg config.TwilioConfig) *TwilioCaller {
	return &TwilioCaller{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
		from: cfg.FromNumber,
	}
}

func (c *TwilioCaller) Call(ctx context.Context, to, twiml string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetTwiml(twiml)

	start := time.Now()
	resp, err := c.client.Api.CreateCall(params)
	metrics.ObserveExternal("twilio", time.Since(start).Seconds(), err)
	if err != nil {
		return "", fmt.Errorf("twilio create call: %w", err)
	}
	if resp.Sid == nil {
		return "", ErrNoSID
	}
	return *resp.Sid, nil
}

// MockCaller stands in for Twilio in dry-run mode and in tests.
type MockCaller struct {
	SID      string
	CallFunc func(ctx context.Context, to, twiml string) (string, error)
	Calls    []MockCall
}

type MockCall struct {
	To    string
	TwiML string
}

func (m *MockCaller) Call(ctx context.Context, to, twiml string) (string, error) {
	m.Calls = append(m.Calls, MockCall{To: to, TwiML: twiml})
	if m.CallFunc != nil {
		return m.CallFunc(ctx, to, twiml)
	}
	return m.SID, nil
}

// internal/workers/reservation/place-reservation-call/config.go
package placereservationcall

import (
	"time"

	"energy-ai-agent/internal/common/config"
)

type Config struct {
	Timeout        time.Duration
	Language       string
	CountryCode    string
	CallbackNumber string
	PublicBaseURL  string
	// LiveCalls is false in dry-run mode or when no Twilio sender is configured.
	LiveCalls bool
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	tw := cfg.Integrations.Twilio
	return &Config{
		Timeout:        config.GetDuration(wcfg.Timeout),
		Language:       tw.Language,
		CountryCode:    tw.CountryCode,
		CallbackNumber: tw.CallbackNumber,
		PublicBaseURL:  cfg.Server.PublicBaseURL,
		LiveCalls:      !cfg.App.DryRun && tw.Enabled(),
	}
}

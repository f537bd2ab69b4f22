// internal/workers/reservation/send-booking-notification/config.go
package sendbookingnotification

import (
	"time"

	"energy-ai-agent/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	EmailTo      string
	FromEmail    string
	SMSEnabled   bool
	SMSTo        string
	Timeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		EmailEnabled: cfg.Notifications.Email.Enabled && cfg.Integrations.AWS.SES.Enabled,
		EmailTo:      cfg.Notifications.Email.To,
		FromEmail:    cfg.Integrations.AWS.SES.FromEmail,
		SMSEnabled:   cfg.Notifications.SMS.Enabled && cfg.Integrations.AWS.SNS.Enabled,
		SMSTo:        cfg.Notifications.SMS.To,
		Timeout:      config.GetDuration(wcfg.Timeout),
	}
}

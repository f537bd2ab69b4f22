// internal/workers/reservation/parse-reservation-intent/config.go
package parsereservationintent

import (
	"time"

	"energy-ai-agent/internal/common/config"
)

type Config struct {
	Timeout     time.Duration
	MaxRetries  int
	DefaultCity string
	Location    *time.Location
	DryRun      bool
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:     config.GetDuration(wcfg.Timeout),
		MaxRetries:  wcfg.MaxRetries,
		DefaultCity: cfg.APIs.Places.DefaultCity,
		Location:    cfg.App.Location(),
		DryRun:      cfg.App.DryRun,
	}
}

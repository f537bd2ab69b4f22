// internal/workers/reservation/search-venues/config.go
package searchvenues

import (
	"time"

	"energy-ai-agent/internal/common/config"
)

type Config struct {
	NominatimURL string
	OverpassURL  string
	ContactEmail string
	DefaultCity  string
	Timeout      time.Duration
	CacheTTL     time.Duration
	DryRun       bool
	MaxRetries   int
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	places := cfg.APIs.Places
	return &Config{
		NominatimURL: places.NominatimURL,
		OverpassURL:  places.OverpassURL,
		ContactEmail: places.ContactEmail,
		DefaultCity:  places.DefaultCity,
		Timeout:      config.GetDuration(places.Timeout),
		CacheTTL:     time.Duration(places.CacheTTL) * time.Second,
		DryRun:       cfg.App.DryRun,
		MaxRetries:   wcfg.MaxRetries,
	}
}

// internal/workers/reservation/select-venue/config.go
package selectvenue

import (
	"time"

	"energy-ai-agent/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout: config.GetDuration(wcfg.Timeout),
	}
}

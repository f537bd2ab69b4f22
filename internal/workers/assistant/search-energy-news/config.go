// internal/workers/assistant/search-energy-news/config.go
package searchenergynews

import (
	"time"

	"energy-ai-agent/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:      config.GetDuration(wcfg.Timeout),
		DefaultLimit: cfg.News.MaxItems,
		MaxLimit:     50,
	}
}

// internal/workers/assistant/run-tool-agent/config.go
package runtoolagent

import (
	"time"

	"energy-ai-agent/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	Location      *time.Location
	Temperature   float32
	MaxResults    int
	SearchBaseURL string
	SearchAPIKey  string
	SearchEngine  string
	SearchTimeout time.Duration
	NewsLimit     int
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:       config.GetDuration(wcfg.Timeout),
		Location:      cfg.App.Location(),
		Temperature:   0.3,
		MaxResults:    3,
		SearchBaseURL: cfg.APIs.WebSearch.BaseURL,
		SearchAPIKey:  cfg.APIs.WebSearch.APIKey,
		SearchEngine:  cfg.APIs.WebSearch.EngineID,
		SearchTimeout: config.GetDuration(cfg.APIs.WebSearch.Timeout),
		NewsLimit:     cfg.News.MaxItems,
	}
}

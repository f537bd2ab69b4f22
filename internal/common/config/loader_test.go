// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Cleanup(viper.Reset)
	return path
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		env      map[string]string
		wantErr  string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults fill an almost empty file",
			yaml: "app:\n  name: energy-ai-agent\n",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":8000", cfg.Server.Address)
				assert.Equal(t, 1200, cfg.RAG.ChunkSize)
				assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
				assert.Equal(t, 30, cfg.Chat.MaxMessages)
				assert.Equal(t, "memory", cfg.Chat.Store)
				assert.Equal(t, "ticker", cfg.News.Scheduler)
				assert.Equal(t, "zh-TW", cfg.Integrations.Twilio.Language)
				assert.Equal(t, "886", cfg.Integrations.Twilio.CountryCode)
			},
		},
		{
			name: "unset placeholders leave stores disabled",
			yaml: "database:\n  postgres:\n    host: ${UNSET_DB_HOST}\n    database: ${UNSET_DB_NAME}\n  redis:\n    address: ${UNSET_REDIS}\n",
			env:  map[string]string{"REDIS_ADDR": ""},
			validate: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Database.Postgres.Enabled())
				assert.False(t, cfg.Database.Redis.Enabled())
				assert.Empty(t, cfg.Database.Postgres.Host)
			},
		},
		{
			name: "placeholders expand from the environment",
			yaml: "database:\n  postgres:\n    host: ${TEST_DB_HOST}\n    database: bookings\n    user: app\n",
			env:  map[string]string{"TEST_DB_HOST": "db.internal"},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Database.Postgres.Enabled())
				assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal port=5432")
			},
		},
		{
			name: "well-known env names fill empty fields",
			yaml: "app:\n  name: energy-ai-agent\n",
			env: map[string]string{
				"DEFAULT_CITY": "高雄",
				"DRY_RUN":      "true",
				"MAX_PAGES":    "12",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "高雄", cfg.APIs.Places.DefaultCity)
				assert.True(t, cfg.App.DryRun)
				assert.Equal(t, 12, cfg.RAG.MaxPages)
			},
		},
		{
			name: "worker entries get defaults",
			yaml: "workers:\n  search-venues:\n    enabled: true\n",
			validate: func(t *testing.T, cfg *Config) {
				w := GetWorkerConfig(cfg, "search-venues")
				assert.Equal(t, 5, w.MaxJobsActive)
				assert.Equal(t, 30000, w.Timeout)
				assert.Equal(t, 3, w.MaxRetries)
				assert.True(t, IsWorkerEnabled(cfg, "not-listed"))
			},
		},
		{
			name:    "chunk overlap must be below chunk size",
			yaml:    "rag:\n  chunk_size: 100\n  chunk_overlap: 100\n",
			wantErr: "chunk_overlap",
		},
		{
			name:    "redis chat store needs redis",
			yaml:    "chat:\n  store: redis\n",
			env:     map[string]string{"REDIS_ADDR": ""},
			wantErr: "chat.store=redis",
		},
		{
			name:    "unknown scheduler",
			yaml:    "news:\n  scheduler: cron\n",
			wantErr: "news.scheduler",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadFromFile(writeConfig(t, tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestTwilioEnabled(t *testing.T) {
	assert.False(t, TwilioConfig{AccountSID: "AC1", AuthToken: "tok"}.Enabled())
	assert.True(t, TwilioConfig{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+15550001111"}.Enabled())
}

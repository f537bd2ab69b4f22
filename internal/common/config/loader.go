// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// APIS_LLM_API_KEY style overrides
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // optional per-environment overlay

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory until it sees a go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// Unset variables expand to "" so optional stores stay disabled.
			v.Set(key, os.ExpandEnv(strVal))
		}
	}
}

// overrideEmptyConfig honours the plain environment names used by the deployment scripts.
func overrideEmptyConfig(cfg *Config) {
	setString := func(dst *string, names ...string) {
		if *dst != "" {
			return
		}
		for _, name := range names {
			if val := os.Getenv(name); val != "" {
				*dst = val
				return
			}
		}
	}
	setInt := func(dst *int, name string) {
		if *dst != 0 {
			return
		}
		if n, err := strconv.Atoi(os.Getenv(name)); err == nil && n > 0 {
			*dst = n
		}
	}

	// LLM
	setString(&cfg.APIs.LLM.APIKey, "OPENAI_API_KEY")
	setString(&cfg.APIs.LLM.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.APIs.LLM.ChatModel, "OPENAI_MODEL", "LLM_MODEL")
	setString(&cfg.APIs.LLM.EmbedModel, "OPENAI_EMBED_MODEL")

	// Web search
	setString(&cfg.APIs.WebSearch.APIKey, "WEB_SEARCH_API_KEY")
	setString(&cfg.APIs.WebSearch.EngineID, "WEB_SEARCH_ENGINE_ID")

	// Places
	setString(&cfg.APIs.Places.DefaultCity, "DEFAULT_CITY")
	setString(&cfg.APIs.Places.ContactEmail, "NOMINATIM_EMAIL")

	// Speech
	setString(&cfg.APIs.Speech.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")

	// Twilio
	setString(&cfg.Integrations.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.Integrations.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.Integrations.Twilio.FromNumber, "TWILIO_FROM_NUMBER", "TWILIO_CALLER_ID")
	setString(&cfg.Integrations.Twilio.CallbackNumber, "CALLBACK_CONFIRM_NUMBER")

	// RAG limits
	setInt(&cfg.RAG.MaxPages, "MAX_PAGES")
	setInt(&cfg.RAG.MaxDocs, "MAX_DOCS")
	setInt(&cfg.RAG.TopK, "TOP_K")

	// Database
	setString(&cfg.Database.Postgres.User, "DB_USER")
	setString(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Database.Redis.Address, "REDIS_ADDR")

	if !cfg.App.DryRun {
		if v, err := strconv.ParseBool(os.Getenv("DRY_RUN")); err == nil {
			cfg.App.DryRun = v
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "energy-ai-agent"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "Asia/Taipei"
	}

	// Server
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120000
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RateLimitPerMinute == 0 {
		cfg.Server.RateLimitPerMinute = 120
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 20
	}

	// Camunda
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.NewsIndex == "" {
		cfg.Database.Elasticsearch.NewsIndex = "energy-news"
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	// Twilio
	if cfg.Integrations.Twilio.Language == "" {
		cfg.Integrations.Twilio.Language = "zh-TW"
	}
	if cfg.Integrations.Twilio.CountryCode == "" {
		cfg.Integrations.Twilio.CountryCode = "886"
	}
	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "ap-northeast-1"
	}

	// LLM
	if cfg.APIs.LLM.ChatModel == "" {
		cfg.APIs.LLM.ChatModel = "gpt-4o-mini"
	}
	if cfg.APIs.LLM.EmbedModel == "" {
		cfg.APIs.LLM.EmbedModel = "text-embedding-3-small"
	}
	if cfg.APIs.LLM.Temperature == 0 {
		cfg.APIs.LLM.Temperature = 0.2
	}
	if cfg.APIs.LLM.Timeout == 0 {
		cfg.APIs.LLM.Timeout = 60000
	}

	// Web search
	if cfg.APIs.WebSearch.BaseURL == "" {
		cfg.APIs.WebSearch.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	if cfg.APIs.WebSearch.Timeout == 0 {
		cfg.APIs.WebSearch.Timeout = 10000
	}

	// Places
	if cfg.APIs.Places.NominatimURL == "" {
		cfg.APIs.Places.NominatimURL = "https://nominatim.openstreetmap.org/search"
	}
	if cfg.APIs.Places.OverpassURL == "" {
		cfg.APIs.Places.OverpassURL = "https://overpass-api.de/api/interpreter"
	}
	if cfg.APIs.Places.DefaultCity == "" {
		cfg.APIs.Places.DefaultCity = "台北"
	}
	if cfg.APIs.Places.Timeout == 0 {
		cfg.APIs.Places.Timeout = 25000
	}
	if cfg.APIs.Places.CacheTTL == 0 {
		cfg.APIs.Places.CacheTTL = 600
	}

	// Speech
	if cfg.APIs.Speech.LanguageCode == "" {
		cfg.APIs.Speech.LanguageCode = "zh-TW"
	}
	if cfg.APIs.Speech.FFmpegPath == "" {
		cfg.APIs.Speech.FFmpegPath = "ffmpeg"
	}

	// RAG
	if cfg.RAG.MaxPages == 0 {
		cfg.RAG.MaxPages = 30
	}
	if cfg.RAG.MaxDocs == 0 {
		cfg.RAG.MaxDocs = 300
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1200
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.ChunkContextChars == 0 {
		cfg.RAG.ChunkContextChars = 2000
	}
	if cfg.RAG.SlowNoticeSeconds == 0 {
		cfg.RAG.SlowNoticeSeconds = 25
	}
	if cfg.RAG.TranscriptChars == 0 {
		cfg.RAG.TranscriptChars = 8000
	}
	if cfg.RAG.TableMaxRows == 0 {
		cfg.RAG.TableMaxRows = 30
	}
	if cfg.RAG.TableMaxCols == 0 {
		cfg.RAG.TableMaxCols = 15
	}
	if cfg.RAG.TableMaxChars == 0 {
		cfg.RAG.TableMaxChars = 12000
	}
	if cfg.RAG.EmbedBatchSize == 0 {
		cfg.RAG.EmbedBatchSize = 64
	}

	// Chat
	if cfg.Chat.MaxMessages == 0 {
		cfg.Chat.MaxMessages = 30
	}
	if cfg.Chat.DefaultModel == "" {
		cfg.Chat.DefaultModel = cfg.APIs.LLM.ChatModel
	}
	if cfg.Chat.Store == "" {
		cfg.Chat.Store = "memory"
	}
	if cfg.Chat.TTL == 0 {
		cfg.Chat.TTL = 86400
	}

	// News
	if cfg.News.Source == "" {
		cfg.News.Source = "經濟部能源署"
	}
	if cfg.News.RSSURL == "" {
		cfg.News.RSSURL = "https://www.moeaea.gov.tw/ECW/NewsRSS.aspx?kind=1"
	}
	if cfg.News.PageURL == "" {
		cfg.News.PageURL = "https://www.moeaea.gov.tw/ECW/populace/news/News.aspx?kind=1&menu_id=41"
	}
	if cfg.News.CachePath == "" {
		cfg.News.CachePath = "energy_news_cache.json"
	}
	if cfg.News.MaxItems == 0 {
		cfg.News.MaxItems = 5
	}
	if cfg.News.Interval == 0 {
		cfg.News.Interval = 30
	}
	if cfg.News.Scheduler == "" {
		cfg.News.Scheduler = "ticker"
	}
	if cfg.News.UserAgent == "" {
		cfg.News.UserAgent = "Mozilla/5.0 (Energy-RAG Project)"
	}

	if cfg.Selection.StatePath == "" {
		cfg.Selection.StatePath = "selected.json"
	}
}

// validateConfig validates critical configuration fields. Every external store is optional;
// only combinations that cannot work are rejected.
func validateConfig(cfg *Config) error {
	if cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)",
			cfg.RAG.ChunkOverlap, cfg.RAG.ChunkSize)
	}
	switch cfg.Chat.Store {
	case "memory":
	case "redis":
		if !cfg.Database.Redis.Enabled() {
			return fmt.Errorf("chat.store=redis requires database.redis.address")
		}
	default:
		return fmt.Errorf("chat.store must be memory or redis, got %q", cfg.Chat.Store)
	}
	switch cfg.News.Scheduler {
	case "ticker", "off":
	case "asynq":
		if !cfg.Database.Redis.Enabled() {
			return fmt.Errorf("news.scheduler=asynq requires database.redis.address")
		}
	default:
		return fmt.Errorf("news.scheduler must be ticker, asynq or off, got %q", cfg.News.Scheduler)
	}
	if cfg.Database.Postgres.Enabled() && cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required when postgres is configured")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}

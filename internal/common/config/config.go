// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	APIs          APIsConfig              `mapstructure:"apis"`
	RAG           RAGConfig               `mapstructure:"rag"`
	Chat          ChatConfig              `mapstructure:"chat"`
	News          NewsConfig              `mapstructure:"news"`
	Selection     SelectionConfig         `mapstructure:"selection"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	DryRun      bool   `mapstructure:"dry_run"`
	Timezone    string `mapstructure:"timezone"`
}

// Location resolves the configured time zone, falling back to a fixed UTC+8 zone when the
// tz database is not available on the host.
func (a AppConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(a.Timezone); err == nil && a.Timezone != "" {
		return loc
	}
	return time.FixedZone("UTC+8", 8*60*60)
}

type ServerConfig struct {
	Address            string   `mapstructure:"address"`
	ReadTimeout        int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout       int      `mapstructure:"write_timeout"` // milliseconds
	MaxUploadMB        int64    `mapstructure:"max_upload_mb"`
	CORSOrigins        []string `mapstructure:"cors_origins"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int      `mapstructure:"rate_limit_burst"`
	PublicBaseURL      string   `mapstructure:"public_base_url"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// Enabled reports whether enough is configured to open a connection.
func (p PostgresConfig) Enabled() bool {
	return p.Host != "" && p.Database != ""
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
	NewsIndex string   `mapstructure:"news_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// IntegrationConfig holds settings for telephony and AWS messaging.
type IntegrationConfig struct {
	Twilio TwilioConfig `mapstructure:"twilio"`
	AWS    AWSConfig    `mapstructure:"aws"`
}

type TwilioConfig struct {
	AccountSID     string `mapstructure:"account_sid"`
	AuthToken      string `mapstructure:"auth_token"`
	FromNumber     string `mapstructure:"from_number"`
	CallbackNumber string `mapstructure:"callback_number"`
	Language       string `mapstructure:"language"`
	CountryCode    string `mapstructure:"country_code"`
}

// Enabled reports whether live calls can be placed.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
	SES    struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"ses"`
	SNS struct {
		Enabled            bool   `mapstructure:"enabled"`
		DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
	} `mapstructure:"sns"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	Places    PlacesConfig    `mapstructure:"places"`
	Speech    SpeechConfig    `mapstructure:"speech"`
}

type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	ChatModel   string  `mapstructure:"chat_model"`
	EmbedModel  string  `mapstructure:"embed_model"`
	Temperature float32 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

type WebSearchConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	EngineID string `mapstructure:"engine_id"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

type PlacesConfig struct {
	NominatimURL string `mapstructure:"nominatim_url"`
	OverpassURL  string `mapstructure:"overpass_url"`
	ContactEmail string `mapstructure:"contact_email"`
	DefaultCity  string `mapstructure:"default_city"`
	Timeout      int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL     int    `mapstructure:"cache_ttl"` // seconds
}

type SpeechConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	LanguageCode    string `mapstructure:"language_code"`
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
}

// RAGConfig holds the limits of the document pipelines.
type RAGConfig struct {
	MaxPages          int `mapstructure:"max_pages"`
	MaxDocs           int `mapstructure:"max_docs"`
	TopK              int `mapstructure:"top_k"`
	ChunkSize         int `mapstructure:"chunk_size"`
	ChunkOverlap      int `mapstructure:"chunk_overlap"`
	ChunkContextChars int `mapstructure:"chunk_context_chars"`
	SlowNoticeSeconds int `mapstructure:"slow_notice_seconds"`
	TranscriptChars   int `mapstructure:"transcript_chars"`
	TableMaxRows      int `mapstructure:"table_max_rows"`
	TableMaxCols      int `mapstructure:"table_max_cols"`
	TableMaxChars     int `mapstructure:"table_max_chars"`
	EmbedBatchSize    int `mapstructure:"embed_batch_size"`
}

type ChatConfig struct {
	MaxMessages  int    `mapstructure:"max_messages"`
	DefaultModel string `mapstructure:"default_model"`
	Store        string `mapstructure:"store"` // memory | redis
	TTL          int    `mapstructure:"ttl"`   // seconds, redis store only
}

type NewsConfig struct {
	Source    string `mapstructure:"source"`
	RSSURL    string `mapstructure:"rss_url"`
	PageURL   string `mapstructure:"page_url"`
	CachePath string `mapstructure:"cache_path"`
	MaxItems  int    `mapstructure:"max_items"`
	Interval  int    `mapstructure:"interval"`  // minutes
	Scheduler string `mapstructure:"scheduler"` // ticker | asynq
	UserAgent string `mapstructure:"user_agent"`
}

type SelectionConfig struct {
	StatePath string `mapstructure:"state_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// NotificationConfig holds settings for the booking confirmation worker.
type NotificationConfig struct {
	Email struct {
		Enabled bool   `mapstructure:"enabled"`
		To      string `mapstructure:"to"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool   `mapstructure:"enabled"`
		To      string `mapstructure:"to"`
	} `mapstructure:"sms"`
}

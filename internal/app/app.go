// Package app builds the shared clients and step handlers used by the API server, the
// worker manager and newsctl.
package app

import (
	"context"
	"fmt"
	"time"

	"energy-ai-agent/internal/api"
	"energy-ai-agent/internal/chat"
	appaws "energy-ai-agent/internal/common/aws"
	"energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/database"
	apphttp "energy-ai-agent/internal/common/http"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/observability"
	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/news"
	"energy-ai-agent/internal/rag"
	"energy-ai-agent/internal/selection"
	"energy-ai-agent/internal/telephony"
	runtoolagent "energy-ai-agent/internal/workers/assistant/run-tool-agent"
	searchenergynews "energy-ai-agent/internal/workers/assistant/search-energy-news"
	parsereservationintent "energy-ai-agent/internal/workers/reservation/parse-reservation-intent"
	placereservationcall "energy-ai-agent/internal/workers/reservation/place-reservation-call"
	recordbooking "energy-ai-agent/internal/workers/reservation/record-booking"
	searchvenues "energy-ai-agent/internal/workers/reservation/search-venues"
	selectvenue "energy-ai-agent/internal/workers/reservation/select-venue"
	sendbookingnotification "energy-ai-agent/internal/workers/reservation/send-booking-notification"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const newsHTTPTimeout = 15 * time.Second

// App holds every long-lived client. Optional stores are nil when not configured.
type App struct {
	Config *config.Config
	Logger logger.Logger

	LLM      *llm.OpenAIClient
	Redis    *database.RedisClient
	Postgres *database.PostgresClient
	Elastic  *database.ElasticsearchClient

	Transcriber *rag.GoogleTranscriber
	Selection   *selection.Store

	NewsCache *news.Cache
	NewsIndex *news.Index
	NewsFeed  *news.FeedReader
	Syncer    *news.Syncer

	Intent   *parsereservationintent.Handler
	Places   *searchvenues.Handler
	Picker   *selectvenue.Handler
	Caller   *placereservationcall.Handler
	Recorder *recordbooking.Handler
	Notifier *sendbookingnotification.Handler
	Agent    *runtoolagent.Handler
	NewsJob  *searchenergynews.Handler
}

// New connects the configured stores and builds the handlers. A store that is configured but
// unreachable after retries is an error.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		Config:    cfg,
		Logger:    log,
		LLM:       llm.NewOpenAIClient(cfg.APIs.LLM),
		Selection: selection.NewStore(cfg.Selection.StatePath),
		NewsCache: news.NewCache(cfg.News.CachePath),
	}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if path := cfg.APIs.Speech.CredentialsFile; path != "" {
		t, err := rag.NewGoogleTranscriber(ctx, path, cfg.APIs.Speech.LanguageCode)
		if err != nil {
			log.Warn("speech-to-text disabled", map[string]interface{}{"error": err.Error()})
		} else {
			a.Transcriber = t
		}
	}

	a.buildNews()
	if err := a.buildSteps(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config.Database

	if cfg.Redis.Enabled() {
		rc, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return err
		}
		if err := retryWithBackoff(func() error { return rc.Ping(ctx) }, 5, time.Second, a.Logger, "redis connection"); err != nil {
			return err
		}
		a.Redis = rc
		a.Logger.Info("redis connected", map[string]interface{}{"address": cfg.Redis.Address})
	}

	if cfg.Postgres.Enabled() {
		pg, err := database.NewPostgres(cfg.Postgres)
		if err != nil {
			return err
		}
		a.Postgres = pg
		if err := retryWithBackoff(func() error { return pg.Ping(ctx) }, 10, time.Second, a.Logger, "postgres connection"); err != nil {
			return err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		a.Logger.Info("postgres connected", map[string]interface{}{"host": cfg.Postgres.Host})
	}

	if cfg.Elasticsearch.Enabled() {
		es, err := database.NewElasticsearch(cfg.Elasticsearch)
		if err != nil {
			return err
		}
		if err := retryWithBackoff(func() error { return es.Ping(ctx) }, 10, time.Second, a.Logger, "elasticsearch connection"); err != nil {
			return err
		}
		a.Elastic = es
		a.Logger.Info("elasticsearch connected", map[string]interface{}{"url": cfg.Elasticsearch.GetURL()})
	}
	return nil
}

func (a *App) buildNews() {
	cfg := a.Config.News
	client := apphttp.NewClient(newsHTTPTimeout, apphttp.WithUserAgent(cfg.UserAgent), apphttp.WithRetries(2, 500*time.Millisecond))

	a.NewsFeed = news.NewFeedReader(client, cfg.RSSURL, cfg.Source, cfg.UserAgent, cfg.MaxItems)
	if a.Elastic != nil {
		a.NewsIndex = news.NewIndex(a.Elastic, a.Config.Database.Elasticsearch.NewsIndex)
	}
	crawler := news.NewCrawler(client, cfg.PageURL, cfg.UserAgent, cfg.MaxItems)
	a.Syncer = news.NewSyncer(crawler, a.NewsCache, a.NewsIndex, cfg.Source, a.Logger)
}

func (a *App) buildSteps(ctx context.Context) error {
	cfg := a.Config
	log := a.Logger

	var cache redis.UniversalClient
	if a.Redis != nil {
		cache = a.Redis.Client
	}

	var caller telephony.Caller
	if cfg.Integrations.Twilio.Enabled() {
		caller = telephony.NewTwilioCaller(cfg.Integrations.Twilio)
	}

	a.Intent = parsereservationintent.NewHandler(parsereservationintent.LoadConfig(cfg), a.LLM, log)
	a.Places = searchvenues.NewHandler(searchvenues.LoadConfig(cfg), cache, log)
	a.Picker = selectvenue.NewHandler(selectvenue.LoadConfig(cfg), log)
	a.Caller = placereservationcall.NewHandler(placereservationcall.LoadConfig(cfg), caller, log)
	if a.Postgres != nil {
		a.Recorder = recordbooking.NewHandler(recordbooking.LoadConfig(cfg), a.Postgres.DB, log)
	}

	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		return err
	}
	a.Notifier = notifier

	opts := []runtoolagent.Option{runtoolagent.WithNews(a.NewsCache)}
	agentCfg := runtoolagent.LoadConfig(cfg)
	if agentCfg.SearchAPIKey != "" && agentCfg.SearchEngine != "" {
		opts = append(opts, runtoolagent.WithWebSearch(runtoolagent.NewGoogleSearch(agentCfg)))
	}
	if a.NewsIndex != nil {
		opts = append(opts, runtoolagent.WithNewsSearch(a.NewsIndex))
		a.NewsJob = searchenergynews.NewHandler(searchenergynews.LoadConfig(cfg), a.NewsIndex, log)
	}
	a.Agent = runtoolagent.NewHandler(agentCfg, a.LLM, log, opts...)
	return nil
}

// buildNotifier returns nil when no notification channel is enabled.
func (a *App) buildNotifier(ctx context.Context) (*sendbookingnotification.Handler, error) {
	cfg := a.Config
	emailOn := cfg.Notifications.Email.Enabled && cfg.Integrations.AWS.SES.Enabled
	smsOn := cfg.Notifications.SMS.Enabled && cfg.Integrations.AWS.SNS.Enabled
	if !emailOn && !smsOn {
		return nil, nil
	}

	var sesSvc sendbookingnotification.SESService
	var snsSvc sendbookingnotification.SNSService
	if emailOn {
		c, err := appaws.NewSESClient(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SES.FromEmail)
		if err != nil {
			return nil, fmt.Errorf("init ses: %w", err)
		}
		sesSvc = c
	}
	if smsOn {
		c, err := appaws.NewSNSClient(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SNS.DefaultSMSSenderID)
		if err != nil {
			return nil, fmt.Errorf("init sns: %w", err)
		}
		snsSvc = c
	}
	return sendbookingnotification.NewHandler(sendbookingnotification.LoadConfig(cfg), sesSvc, snsSvc, a.Logger), nil
}

// APIDeps assembles the HTTP dependencies. Nil handlers stay nil interfaces.
func (a *App) APIDeps(obs *observability.Observability) api.Deps {
	cfg := a.Config

	ragOpts := []rag.Option{rag.WithFFmpeg(cfg.APIs.Speech.FFmpegPath)}
	if a.Transcriber != nil {
		ragOpts = append(ragOpts, rag.WithTranscriber(a.Transcriber))
	}
	ragSvc := rag.NewService(a.LLM, cfg.RAG, a.Logger, ragOpts...)

	var store chat.Store = chat.NewMemoryStore(cfg.Chat.MaxMessages)
	if cfg.Chat.Store == "redis" && a.Redis != nil {
		store = chat.NewRedisStore(a.Redis.Client, cfg.Chat.MaxMessages, time.Duration(cfg.Chat.TTL)*time.Second)
	}
	chatSvc := chat.NewService(store, a.LLM, ragSvc, chat.Options{
		DefaultModel: cfg.Chat.DefaultModel,
		Location:     cfg.App.Location(),
	}, a.Logger)

	deps := api.Deps{
		Config:     cfg,
		Logger:     a.Logger,
		Obs:        obs,
		LLMModel:   a.LLM.ChatModel(),
		LLMEnabled: a.LLM.Enabled(),
		Intent:     a.Intent,
		Places:     a.Places,
		Picker:     a.Picker,
		Caller:     a.Caller,
		Agent:      a.Agent,
		Chat:       chatSvc,
		RAG:        ragSvc,
		NewsFeed:   a.NewsFeed,
		NewsCache:  a.NewsCache,
		Selection:  a.Selection,
		Ready:      a.Pingers(),
	}
	if a.Recorder != nil {
		deps.Recorder = a.Recorder
		deps.Bookings = a.Recorder.Store()
	}
	if a.Notifier != nil {
		deps.Notifier = a.Notifier
	}
	if a.NewsIndex != nil {
		deps.NewsSearch = a.NewsIndex
	}
	return deps
}

// Pingers lists the connected stores for readiness checks.
func (a *App) Pingers() map[string]api.Pinger {
	out := make(map[string]api.Pinger)
	if a.Redis != nil {
		out["redis"] = a.Redis
	}
	if a.Postgres != nil {
		out["postgres"] = a.Postgres
	}
	if a.Elastic != nil {
		out["elasticsearch"] = a.Elastic
	}
	return out
}

// RunNewsScheduler blocks until ctx is cancelled, syncing the news cache on the configured
// schedule. It returns immediately when the scheduler is off.
func (a *App) RunNewsScheduler(ctx context.Context) error {
	cfg := a.Config.News
	interval := time.Duration(cfg.Interval) * time.Minute
	switch cfg.Scheduler {
	case "off":
		return nil
	case "asynq":
		if a.Redis == nil {
			return fmt.Errorf("news.scheduler asynq needs redis")
		}
		opt := a.Redis.Options()
		redisOpt := asynq.RedisClientOpt{Addr: opt.Addr, Password: opt.Password, DB: opt.DB}
		return news.NewDistributedScheduler(a.Syncer, redisOpt, interval, a.Logger).Run(ctx)
	default:
		news.NewScheduler(a.Syncer, interval, a.Logger).Run(ctx)
		return nil
	}
}

// Close releases every connection. Safe on a partially built App.
func (a *App) Close() {
	if a.Transcriber != nil {
		_ = a.Transcriber.Close()
	}
	if a.Postgres != nil {
		_ = a.Postgres.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay
	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i < maxRetries-1 {
			log.Warn(operationName+" failed, retrying", map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

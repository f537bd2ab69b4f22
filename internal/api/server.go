// Package api is the HTTP façade: reservation planning and booking, the tool agent, chat,
// document question answering, energy news and the selection state.
package api

import (
	"context"
	"net/http"
	"time"

	"energy-ai-agent/internal/chat"
	"energy-ai-agent/internal/common/config"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/common/observability"
	"energy-ai-agent/internal/models"
	"energy-ai-agent/internal/news"
	"energy-ai-agent/internal/rag"
	"energy-ai-agent/internal/selection"
	runtoolagent "energy-ai-agent/internal/workers/assistant/run-tool-agent"
	parsereservationintent "energy-ai-agent/internal/workers/reservation/parse-reservation-intent"
	placereservationcall "energy-ai-agent/internal/workers/reservation/place-reservation-call"
	recordbooking "energy-ai-agent/internal/workers/reservation/record-booking"
	searchvenues "energy-ai-agent/internal/workers/reservation/search-venues"
	selectvenue "energy-ai-agent/internal/workers/reservation/select-venue"
	sendbookingnotification "energy-ai-agent/internal/workers/reservation/send-booking-notification"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Step is one unit of work shared with the Zeebe workers.
type Step[I, O any] interface {
	Execute(ctx context.Context, input *I) (*O, error)
}

type BookingLister interface {
	List(ctx context.Context, limit int) ([]models.Booking, error)
}

type NewsFeed interface {
	Latest(ctx context.Context) (*models.NewsFeed, error)
}

type NewsSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.NewsHit, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries every service the routes use. Optional services may be nil; their routes then
// answer 503.
type Deps struct {
	Config *config.Config
	Logger logger.Logger
	Obs    *observability.Observability

	LLMModel   string
	LLMEnabled bool

	Intent   Step[parsereservationintent.Input, parsereservationintent.Output]
	Places   Step[searchvenues.Input, searchvenues.Output]
	Picker   Step[selectvenue.Input, selectvenue.Output]
	Caller   Step[placereservationcall.Input, placereservationcall.Output]
	Recorder Step[recordbooking.Input, recordbooking.Output]
	Notifier Step[sendbookingnotification.Input, sendbookingnotification.Output]
	Bookings BookingLister

	Agent Step[runtoolagent.Input, runtoolagent.Output]
	Chat  *chat.Service
	RAG   *rag.Service

	NewsFeed   NewsFeed
	NewsCache  *news.Cache
	NewsSearch NewsSearcher

	Selection *selection.Store

	Ready map[string]Pinger
}

type Server struct {
	deps Deps
	cfg  *config.Config
	log  logger.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(deps Deps) *gin.Engine {
	s := &Server{deps: deps, cfg: deps.Config, log: deps.Logger}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	r.Use(RequestID())
	r.Use(Tracing(deps.Obs))
	r.Use(Logging(deps.Logger))
	r.Use(Recovery(deps.Logger))
	r.Use(Metrics())
	r.Use(cors.New(corsConfig(s.cfg.Server.CORSOrigins)))

	r.GET("/", s.index)
	r.GET("/env", s.env)
	r.POST("/debug/echo", s.echo)
	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/bridge", s.bridge)

	limited := r.Group("/", RateLimit(s.cfg.Server.RateLimitPerMinute, s.cfg.Server.RateLimitBurst))
	{
		limited.POST("/plan", s.plan)
		limited.POST("/confirm", s.confirm)
		limited.POST("/book", s.book)
		limited.GET("/bookings", s.listBookings)

		limited.POST("/agent", s.agent)

		limited.POST("/chat", s.chat)
		limited.GET("/chat/:session_id", s.chatHistory)
		limited.DELETE("/chat/:session_id", s.chatClear)

		limited.POST("/ask_web", s.askWeb)
		limited.POST("/ask_pdf", s.askPDF)
		limited.POST("/ask_av", s.askAV)
		limited.POST("/ask_table", s.askTable)

		limited.GET("/energy-news", s.energyNews)
		limited.GET("/energy-news/cache", s.energyNewsCache)
		limited.GET("/energy-news/search", s.energyNewsSearch)
		limited.GET("/energy-news/feed.xml", s.energyNewsFeed)

		limited.POST("/api/select", s.selectVenue)
		limited.GET("/selected.json", s.selected)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) reqLog(c *gin.Context) logger.Logger {
	return requestLogger(c, s.log)
}

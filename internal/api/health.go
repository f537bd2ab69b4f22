package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const readyTimeout = 3 * time.Second

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"dry_run":   s.cfg.App.DryRun,
		"llm_model": s.deps.LLMModel,
	})
}

// env reports which credentials are present, never their values.
func (s *Server) env(c *gin.Context) {
	cfg := s.cfg
	c.JSON(http.StatusOK, gin.H{
		"OPENAI_API_KEY_set":     cfg.APIs.LLM.APIKey != "",
		"TWILIO_ACCOUNT_SID_set": cfg.Integrations.Twilio.AccountSID != "",
		"TWILIO_AUTH_TOKEN_set":  cfg.Integrations.Twilio.AuthToken != "",
		"TWILIO_FROM_NUMBER_set": cfg.Integrations.Twilio.FromNumber != "",
		"NOMINATIM_EMAIL_set":    cfg.APIs.Places.ContactEmail != "",
		"GOOGLE_SEARCH_set":      cfg.APIs.WebSearch.APIKey != "" && cfg.APIs.WebSearch.EngineID != "",
		"DEFAULT_CITY":           cfg.APIs.Places.DefaultCity,
		"DRY_RUN":                cfg.App.DryRun,
	})
}

func (s *Server) echo(c *gin.Context) {
	var body interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": body})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.cfg.App.Name,
		"version": s.cfg.App.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ready pings every configured store concurrently.
func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	var mu sync.Mutex
	checks := make(map[string]string, len(s.deps.Ready))
	g, gctx := errgroup.WithContext(ctx)
	for name, p := range s.deps.Ready {
		name, p := name, p
		g.Go(func() error {
			err := p.Ping(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = err.Error()
				return err
			}
			checks[name] = "ok"
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.reqLog(c).Warn("readiness check failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

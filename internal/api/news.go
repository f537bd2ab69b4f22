package api

import (
	"net/http"
	"strconv"
	"strings"

	"energy-ai-agent/internal/models"
	"energy-ai-agent/internal/news"

	"github.com/gin-gonic/gin"
)

const defaultNewsSearchLimit = 10

func (s *Server) energyNews(c *gin.Context) {
	if s.deps.NewsFeed == nil {
		unavailable(c, "news feed")
		return
	}
	feed, err := s.deps.NewsFeed.Latest(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

func (s *Server) energyNewsCache(c *gin.Context) {
	if s.deps.NewsCache == nil {
		unavailable(c, "news cache")
		return
	}
	snapshot, err := s.deps.NewsCache.Read()
	if err != nil {
		respondStatus(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) energyNewsSearch(c *gin.Context) {
	if s.deps.NewsSearch == nil {
		unavailable(c, "news search")
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, "q is required")
		return
	}
	limit := defaultNewsSearchLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	hits, err := s.deps.NewsSearch.Search(c.Request.Context(), q, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if hits == nil {
		hits = []models.NewsHit{}
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "hits": hits, "total": len(hits)})
}

func (s *Server) energyNewsFeed(c *gin.Context) {
	if s.deps.NewsCache == nil {
		unavailable(c, "news cache")
		return
	}
	snapshot, err := s.deps.NewsCache.Read()
	if err != nil {
		respondStatus(c, http.StatusInternalServerError, err)
		return
	}
	doc, err := news.RenderRSS(snapshot, s.cfg.News.PageURL)
	if err != nil {
		respondStatus(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(doc))
}

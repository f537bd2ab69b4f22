package api

import (
	"errors"
	"net/http"

	"energy-ai-agent/internal/selection"

	"github.com/gin-gonic/gin"
)

type selectRequest struct {
	Name string `json:"name"`
}

func (s *Server) selectVenue(c *gin.Context) {
	if s.deps.Selection == nil {
		unavailable(c, "selection store")
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if err := s.deps.Selection.Select(req.Name); err != nil {
		if errors.Is(err, selection.ErrNameRequired) {
			badRequest(c, err.Error())
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) selected(c *gin.Context) {
	if s.deps.Selection == nil {
		unavailable(c, "selection store")
		return
	}
	current, err := s.deps.Selection.Current()
	if err != nil {
		respondStatus(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

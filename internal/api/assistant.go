package api

import (
	"errors"
	"net/http"
	"strings"

	"energy-ai-agent/internal/chat"
	"energy-ai-agent/internal/models"
	runtoolagent "energy-ai-agent/internal/workers/assistant/run-tool-agent"

	"github.com/gin-gonic/gin"
)

type agentRequest struct {
	Question string `json:"question"`
}

func (s *Server) agent(c *gin.Context) {
	if s.deps.Agent == nil {
		unavailable(c, "agent")
		return
	}
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	out, err := s.deps.Agent.Execute(c.Request.Context(), &runtoolagent.Input{Question: req.Question})
	if err != nil {
		switch {
		case errors.Is(err, runtoolagent.ErrQuestionRequired):
			respondStatus(c, http.StatusBadRequest, err)
		case errors.Is(err, runtoolagent.ErrLLMTimeout):
			respondStatus(c, http.StatusGatewayTimeout, err)
		default:
			respondStatus(c, http.StatusBadGateway, err)
		}
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) chat(c *gin.Context) {
	if s.deps.Chat == nil {
		unavailable(c, "chat")
		return
	}
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	resp, err := s.deps.Chat.Reply(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, chat.ErrUserRequired) {
			badRequest(c, err.Error())
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) chatHistory(c *gin.Context) {
	if s.deps.Chat == nil {
		unavailable(c, "chat")
		return
	}
	id := strings.TrimSpace(c.Param("session_id"))
	history, err := s.deps.Chat.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if history == nil {
		history = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "messages": history, "history_len": len(history)})
}

func (s *Server) chatClear(c *gin.Context) {
	if s.deps.Chat == nil {
		unavailable(c, "chat")
		return
	}
	id := strings.TrimSpace(c.Param("session_id"))
	if err := s.deps.Chat.Clear(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "cleared": true})
}

package rag

import (
	"context"
	"fmt"
	"strings"

	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/models"
)

const webSystemPrompt = "You are a helpful RAG assistant. " +
	"If a URL is provided, you may reference public information from it if available; " +
	"otherwise answer from general knowledge and say you didn't browse."

// AnswerWeb answers question with an optional reference URL. The page is not fetched; the
// model is told whether a URL was given.
func (s *Service) AnswerWeb(ctx context.Context, question, url string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}
	url = strings.TrimSpace(url)
	ref := url
	if ref == "" {
		ref = "N/A"
	}

	answer, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages: []models.ChatMessage{
			{Role: "system", Content: webSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Question: %s\nURL(optional): %s\n"+
				"Return Markdown with short bullets and a final takeaway.", question, ref)},
		},
	})
	if err != nil {
		s.logger.Warn("web answer failed", map[string]interface{}{"url": url, "error": err.Error()})
		return nil, modelError(err)
	}

	sources := []string{}
	if url != "" {
		sources = append(sources, url)
	}
	return &models.Answer{Answer: answer, Sources: sources}, nil
}

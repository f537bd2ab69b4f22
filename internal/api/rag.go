package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"energy-ai-agent/internal/models"
	"energy-ai-agent/internal/rag"

	"github.com/gin-gonic/gin"
)

type askWebRequest struct {
	Question string `json:"question"`
	URL      string `json:"url"`
}

func (s *Server) askWeb(c *gin.Context) {
	if s.deps.RAG == nil {
		unavailable(c, "document QA")
		return
	}
	var req askWebRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	ans, err := s.deps.RAG.AnswerWeb(c.Request.Context(), req.Question, strings.TrimSpace(req.URL))
	s.answer(c, ans, err)
}

func (s *Server) askPDF(c *gin.Context) {
	s.askUpload(c, func(c *gin.Context, question string, fh *multipart.FileHeader, file io.Reader) (*models.Answer, error) {
		return s.deps.RAG.AnswerPDF(c.Request.Context(), question, file)
	})
}

func (s *Server) askAV(c *gin.Context) {
	s.askUpload(c, func(c *gin.Context, question string, fh *multipart.FileHeader, file io.Reader) (*models.Answer, error) {
		return s.deps.RAG.AnswerAV(c.Request.Context(), question, fh.Filename, file)
	})
}

func (s *Server) askTable(c *gin.Context) {
	s.askUpload(c, func(c *gin.Context, question string, fh *multipart.FileHeader, file io.Reader) (*models.Answer, error) {
		return s.deps.RAG.AnswerTable(c.Request.Context(), question, fh.Filename, file)
	})
}

type uploadAnswerer func(c *gin.Context, question string, fh *multipart.FileHeader, file io.Reader) (*models.Answer, error)

// askUpload reads the multipart `file` and `question` fields, bounded by the configured
// upload size, and hands them to answer.
func (s *Server) askUpload(c *gin.Context, answer uploadAnswerer) {
	if s.deps.RAG == nil {
		unavailable(c, "document QA")
		return
	}
	if limit := s.cfg.Server.MaxUploadMB << 20; limit > 0 {
		if c.Request.ContentLength > limit {
			tooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge(c)
			return
		}
		badRequest(c, "file is required")
		return
	}
	question := c.PostForm("question")

	f, err := fh.Open()
	if err != nil {
		badRequest(c, "cannot open uploaded file")
		return
	}
	defer f.Close()

	ans, err := answer(c, question, fh, f)
	s.answer(c, ans, err)
}

func tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds the size limit"})
}

func (s *Server) answer(c *gin.Context, ans *models.Answer, err error) {
	if err != nil {
		if errors.Is(err, rag.ErrQuestionRequired) {
			badRequest(c, err.Error())
			return
		}
		respondError(c, err)
		return
	}
	if c.Query("format") == "html" {
		ans = rag.WithHTML(ans)
	}
	c.JSON(http.StatusOK, ans)
}

// Package rag answers questions over a web URL, an uploaded PDF, an audio/video recording or a
// spreadsheet. Every pipeline returns a models.Answer; recoverable pipeline problems are reported
// inside the answer text, infrastructure failures as *errors.StandardError.
package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"energy-ai-agent/internal/common/config"
	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/llm"
)

var ErrQuestionRequired = errors.New("question is required")

type Option func(*Service)

// WithTranscriber enables the audio/video pipeline.
func WithTranscriber(t Transcriber) Option {
	return func(s *Service) { s.transcriber = t }
}

// WithFFmpeg sets the ffmpeg binary used to extract audio tracks.
func WithFFmpeg(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.ffmpegPath = path
		}
	}
}

type Service struct {
	llm         llm.Client
	cfg         config.RAGConfig
	transcriber Transcriber
	ffmpegPath  string
	logger      logger.Logger

	audioSegmentBytes int

	// swapped in tests
	extractAudio func(ctx context.Context, ffmpeg, in, out string) error
	now          func() time.Time
}

func NewService(client llm.Client, cfg config.RAGConfig, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		llm:          client,
		cfg:          withDefaults(cfg),
		ffmpegPath:   "ffmpeg",
		logger:       log.WithFields(map[string]interface{}{"component": "rag"}),
		extractAudio: extractAudio,
		now:          time.Now,

		audioSegmentBytes: maxInlineAudioBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func withDefaults(cfg config.RAGConfig) config.RAGConfig {
	def := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	def(&cfg.MaxPages, 30)
	def(&cfg.MaxDocs, 300)
	def(&cfg.TopK, 5)
	def(&cfg.ChunkSize, 1200)
	def(&cfg.ChunkOverlap, 200)
	def(&cfg.ChunkContextChars, 2000)
	def(&cfg.SlowNoticeSeconds, 25)
	def(&cfg.TranscriptChars, 8000)
	def(&cfg.TableMaxRows, 30)
	def(&cfg.TableMaxCols, 15)
	def(&cfg.TableMaxChars, 12000)
	def(&cfg.EmbedBatchSize, 64)
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 4
	}
	return cfg
}

// saveTemp copies an upload into a temp file that keeps the original extension.
// The caller removes it.
func saveTemp(r io.Reader, filename, fallbackExt string) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = fallbackExt
	}
	f, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	return f.Name(), nil
}

// modelError converts a failed model call into the error the HTTP layer reports.
func modelError(err error) *apperrors.StandardError {
	switch {
	case llm.IsTimeout(err):
		return apperrors.NewLLMTimeoutError()
	case llm.IsRateLimit(err):
		return apperrors.NewLLMRateLimitedError(err)
	default:
		return apperrors.NewLLMSynthesisFailedError(err)
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/models"
)

var ErrTranscriberNotConfigured = errors.New("speech-to-text is not configured")

const avPrompt = "You are given a transcript from an audio/video. Answer the user's question using only this transcript. " +
	"If missing info, say it's not present and suggest a follow-up.\n\n" +
	"Question: %s\n---\nTranscript:\n%s"

// AnswerAV transcribes an uploaded recording and answers question from the transcript.
func (s *Service) AnswerAV(ctx context.Context, question, filename string, file io.Reader) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}
	if s.transcriber == nil {
		return nil, apperrors.NewTranscriptionFailedError(ErrTranscriberNotConfigured)
	}

	transcript, err := s.transcribeUpload(ctx, filename, file)
	if err != nil {
		s.logger.Error("transcription failed", map[string]interface{}{"file": filename, "error": err.Error()})
		return nil, apperrors.NewTranscriptionFailedError(err)
	}

	answer, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages: []models.ChatMessage{{
			Role:    "user",
			Content: fmt.Sprintf(avPrompt, question, truncateRunes(transcript, s.cfg.TranscriptChars)),
		}},
	})
	if err != nil {
		return nil, modelError(err)
	}

	s.logger.Info("recording answered", map[string]interface{}{"file": filename, "transcript_chars": len([]rune(transcript))})
	return &models.Answer{Answer: answer, Sources: []string{"transcript"}}, nil
}

func (s *Service) transcribeUpload(ctx context.Context, filename string, file io.Reader) (string, error) {
	in, err := saveTemp(file, filename, ".bin")
	if err != nil {
		return "", err
	}
	defer os.Remove(in)

	out, err := os.CreateTemp("", "audio-*.wav")
	if err != nil {
		return "", fmt.Errorf("create wav file: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	if err := s.extractAudio(ctx, s.ffmpegPath, in, out.Name()); err != nil {
		return "", err
	}
	info, err := os.Stat(out.Name())
	if err != nil {
		return "", fmt.Errorf("stat wav: %w", err)
	}
	if info.Size() <= int64(s.audioSegmentBytes) {
		wav, err := os.ReadFile(out.Name())
		if err != nil {
			return "", fmt.Errorf("read wav: %w", err)
		}
		return s.transcriber.Transcribe(ctx, wav)
	}

	dir, err := os.MkdirTemp("", "audio-segments-*")
	if err != nil {
		return "", fmt.Errorf("create segment dir: %w", err)
	}
	defer os.RemoveAll(dir)

	segments, err := splitWAV(out.Name(), dir, s.audioSegmentBytes)
	if err != nil {
		return "", err
	}
	s.logger.Info("recording split for transcription", map[string]interface{}{
		"bytes":    info.Size(),
		"segments": len(segments),
	})

	parts := make([]string, 0, len(segments))
	for i, path := range segments {
		wav, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read segment: %w", err)
		}
		text, err := s.transcriber.Transcribe(ctx, wav)
		if err != nil {
			return "", fmt.Errorf("segment %d/%d: %w", i+1, len(segments), err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// extractAudio converts any audio or video container into 16 kHz mono PCM WAV.
func extractAudio(ctx context.Context, ffmpeg, in, out string) error {
	cmd := exec.CommandContext(ctx, ffmpeg,
		"-y",
		"-i", in,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "16000",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(lastLine(stderr.String())))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}

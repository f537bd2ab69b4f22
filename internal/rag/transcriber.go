package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"energy-ai-agent/internal/common/metrics"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// Transcriber turns 16 kHz mono LINEAR16 audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type GoogleTranscriber struct {
	client       *speech.Client
	languageCode string
}

// NewGoogleTranscriber uses credentialsFile when set and application default credentials
// otherwise.
func NewGoogleTranscriber(ctx context.Context, credentialsFile, languageCode string) (*GoogleTranscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	if languageCode == "" {
		languageCode = "zh-TW"
	}
	return &GoogleTranscriber{client: client, languageCode: languageCode}, nil
}

func (g *GoogleTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	start := time.Now()
	op, err := g.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			AudioChannelCount:          1,
			LanguageCode:               g.languageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wav},
		},
	})
	if err != nil {
		metrics.ObserveExternal("google_speech", time.Since(start).Seconds(), err)
		return "", fmt.Errorf("long running recognize: %w", err)
	}
	resp, err := op.Wait(ctx)
	metrics.ObserveExternal("google_speech", time.Since(start).Seconds(), err)
	if err != nil {
		return "", fmt.Errorf("wait for recognition: %w", err)
	}

	var b strings.Builder
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		b.WriteString(alts[0].GetTranscript())
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String()), nil
}

func (g *GoogleTranscriber) Close() error {
	return g.client.Close()
}

package rag

import (
	"bytes"

	"energy-ai-agent/internal/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts a Markdown answer to HTML.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WithHTML fills ans.AnswerHTML; rendering errors leave it empty.
func WithHTML(ans *models.Answer) *models.Answer {
	if ans == nil {
		return nil
	}
	if html, err := RenderHTML(ans.Answer); err == nil {
		ans.AnswerHTML = html
	}
	return ans
}

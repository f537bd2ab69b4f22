package rag

import (
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// separators are tried in order; the empty separator splits into single runes.
var separators = []string{"\n\n", "\n", " ", ""}

type chunk struct {
	Page int // 1-based
	Text string
}

// SplitText cuts text into pieces of at most size runes, preferring paragraph, then line, then
// word boundaries, with consecutive pieces sharing up to overlap runes.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(separators),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	docs, err := splitter.SplitText(text)
	if err != nil || len(docs) == 0 {
		return nil
	}
	return docs
}

// chunkPages splits every page and keeps at most maxDocs chunks.
func chunkPages(pages []string, size, overlap, maxDocs int) []chunk {
	var out []chunk
	for i, p := range pages {
		for _, text := range SplitText(p, size, overlap) {
			out = append(out, chunk{Page: i + 1, Text: text})
			if maxDocs > 0 && len(out) >= maxDocs {
				return out
			}
		}
	}
	return out
}

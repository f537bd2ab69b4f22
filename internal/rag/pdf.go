package rag

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/models"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

const (
	pdfNoPages       = "讀不到任何頁面，檔案可能為空或損毀。"
	pdfScanned       = "這份 PDF 幾乎無可抽取文字（可能是掃描影像）。\n請先以 OCR 工具轉成可複製文字的 PDF 後再上傳。"
	pdfTooLittleText = "解析到的文字太少，無法建立檢索索引。"
	pdfNoMatch       = "在可抽取文字中找不到與問題相關的內容。"

	pdfPrompt = "你是 PDF 助理。請僅依據提供的 PDF 片段回答；若片段沒有答案就說不知道。\n\n問題：%s\n---\n上下文：\n%s"

	embedConcurrency = 4
)

// AnswerPDF answers question from the text layer of an uploaded PDF. The upload is written to
// a temp file that is always removed.
func (s *Service) AnswerPDF(ctx context.Context, question string, file io.Reader) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}
	start := s.now()

	path, err := saveTemp(file, "", ".pdf")
	if err != nil {
		return nil, apperrors.NewDocumentParseFailedError("pdf", err)
	}
	defer os.Remove(path)

	pages, err := readPDFPages(path, s.cfg.MaxPages)
	if err != nil {
		return nil, apperrors.NewDocumentParseFailedError("pdf", err)
	}
	if len(pages) == 0 {
		return textAnswer(pdfNoPages), nil
	}
	if allBlank(pages) {
		return textAnswer(pdfScanned), nil
	}

	chunks := chunkPages(pages, s.cfg.ChunkSize, s.cfg.ChunkOverlap, s.cfg.MaxDocs)
	if len(chunks) == 0 {
		return textAnswer(pdfTooLittleText), nil
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		s.logger.Warn("pdf embedding failed", map[string]interface{}{"chunks": len(chunks), "error": err.Error()})
		if llm.IsRateLimit(err) {
			return textAnswer(fmt.Sprintf("嵌入向量服務連線/額度問題：%v", err)), nil
		}
		return textAnswer(fmt.Sprintf("建立向量索引失敗：%v", err)), nil
	}

	qv, err := s.llm.Embed(ctx, []string{question})
	if err != nil || len(qv) == 0 {
		if err == nil {
			err = fmt.Errorf("empty query embedding")
		}
		return textAnswer(fmt.Sprintf("相似檢索失敗：%v", err)), nil
	}

	hits := topK(qv[0], vectors, s.cfg.TopK)
	if len(hits) == 0 {
		return textAnswer(pdfNoMatch), nil
	}

	parts := make([]string, 0, len(hits))
	sources := make([]string, 0, len(hits))
	for _, i := range hits {
		parts = append(parts, truncateRunes(chunks[i].Text, s.cfg.ChunkContextChars))
		sources = append(sources, fmt.Sprintf("page %d", chunks[i].Page))
	}

	answer, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages: []models.ChatMessage{{
			Role:    "user",
			Content: fmt.Sprintf(pdfPrompt, question, strings.Join(parts, "\n\n")),
		}},
	})
	if err != nil {
		s.logger.Warn("pdf answer failed", map[string]interface{}{"error": err.Error()})
		if llm.IsRateLimit(err) {
			return textAnswer(fmt.Sprintf("產生答案時連線/額度問題：%v", err)), nil
		}
		return textAnswer(fmt.Sprintf("產生答案失敗：%v", err)), nil
	}

	if elapsed := s.now().Sub(start); elapsed > time.Duration(s.cfg.SlowNoticeSeconds)*time.Second {
		answer = fmt.Sprintf("[提示] 本次處理花了 %.1fs；可調整 MAX_PAGES / MAX_DOCS 加速。\n\n", elapsed.Seconds()) + answer
	}

	s.logger.Info("pdf answered", map[string]interface{}{
		"pages":  len(pages),
		"chunks": len(chunks),
		"hits":   len(hits),
	})
	return &models.Answer{Answer: answer, Sources: sources}, nil
}

// embedChunks embeds chunk texts in batches, running batches concurrently.
func (s *Service) embedChunks(ctx context.Context, chunks []chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	batch := s.cfg.EmbedBatchSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for lo := 0; lo < len(chunks); lo += batch {
		hi := lo + batch
		if hi > len(chunks) {
			hi = len(chunks)
		}
		lo := lo
		g.Go(func() error {
			texts := make([]string, 0, hi-lo)
			for _, c := range chunks[lo:hi] {
				texts = append(texts, c.Text)
			}
			out, err := s.llm.Embed(gctx, texts)
			if err != nil {
				return err
			}
			if len(out) != len(texts) {
				return fmt.Errorf("got %d vectors for %d chunks", len(out), len(texts))
			}
			copy(vectors[lo:hi], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// readPDFPages returns the plain text of the first maxPages pages. Malformed files can make the
// parser panic; that is reported as an error.
func readPDFPages(path string, maxPages int) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := reader.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func allBlank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

func textAnswer(text string) *models.Answer {
	return &models.Answer{Answer: text, Sources: []string{}}
}

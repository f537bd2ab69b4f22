package rag

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	apperrors "energy-ai-agent/internal/common/errors"
	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	tablePrompt      = "根據下方表格內容（Markdown），回答使用者的問題。\n表格內容：\n%s\n\n問題：\n%s\n"
	tableTruncated   = "\n\n...(已截斷)..."
	tableOfflineHead = "未設定 OPENAI_API_KEY，回傳摘要：\n\n"
	tableUnsupported = "不支援的檔案格式，請上傳 .xlsx/.csv/.tsv"
)

// Sheet is one parsed table: a header row plus data rows, all padded to the same width.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Shape returns (data rows, columns).
func (s Sheet) Shape() [2]int {
	return [2]int{len(s.Rows), len(s.Columns)}
}

// AnswerTable answers question over an uploaded spreadsheet. Sources carries per-sheet stats.
func (s *Service) AnswerTable(ctx context.Context, question, filename string, file io.Reader) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}

	sheets, err := ReadTable(filename, file)
	if err != nil {
		return nil, err
	}
	stats := TableStats(sheets, s.cfg.TableMaxCols)
	ctxMD := s.contextMarkdown(sheets)

	var answer string
	if s.llm.Enabled() {
		reply, err := s.llm.Chat(ctx, llm.ChatRequest{
			Messages:    []models.ChatMessage{{Role: "user", Content: fmt.Sprintf(tablePrompt, ctxMD, question)}},
			Temperature: 0.2,
		})
		if err != nil {
			s.logger.Warn("table answer failed", map[string]interface{}{"error": err.Error()})
			answer = fmt.Sprintf("(LLM 回答失敗) %v", err)
		} else {
			answer = strings.TrimSpace(reply)
		}
	}
	if answer == "" {
		parts := make([]string, 0, len(sheets))
		for _, sh := range sheets {
			shape := sh.Shape()
			parts = append(parts, fmt.Sprintf("### %s\n行數×列數：%d×%d\n\n%s",
				sh.Name, shape[0], shape[1], Markdown(sh, s.cfg.TableMaxRows, s.cfg.TableMaxCols)))
		}
		answer = tableOfflineHead + strings.Join(parts, "\n\n---\n\n")
	}

	return &models.Answer{Answer: answer, Sources: stats}, nil
}

func (s *Service) contextMarkdown(sheets []Sheet) string {
	parts := make([]string, 0, len(sheets))
	for _, sh := range sheets {
		parts = append(parts, fmt.Sprintf("### Sheet: %s\n\n%s\n", sh.Name, Markdown(sh, s.cfg.TableMaxRows, s.cfg.TableMaxCols)))
	}
	ctx := strings.Join(parts, "\n\n")
	if r := []rune(ctx); len(r) > s.cfg.TableMaxChars {
		ctx = string(r[:s.cfg.TableMaxChars]) + tableTruncated
	}
	return ctx
}

// ReadTable parses CSV, TSV and Excel workbooks by file extension. Unknown extensions are tried
// as CSV.
func ReadTable(filename string, r io.Reader) ([]Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewDocumentParseFailedError("table", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		sheets, err := readWorkbook(data)
		if err != nil {
			return nil, apperrors.NewDocumentParseFailedError("table", err)
		}
		return sheets, nil
	case ".xls":
		return nil, unsupportedTable(ext)
	case ".csv", ".txt":
		sheet, err := readDelimited(data, ',')
		if err != nil {
			return nil, apperrors.NewDocumentParseFailedError("table", err)
		}
		return []Sheet{sheet}, nil
	case ".tsv", ".tab":
		sheet, err := readDelimited(data, '\t')
		if err != nil {
			return nil, apperrors.NewDocumentParseFailedError("table", err)
		}
		return []Sheet{sheet}, nil
	default:
		sheet, err := readDelimited(data, ',')
		if err != nil {
			return nil, unsupportedTable(ext)
		}
		return []Sheet{sheet}, nil
	}
}

func unsupportedTable(ext string) error {
	e := apperrors.NewUnsupportedFormatError(ext)
	e.Message = tableUnsupported
	return e
}

func readWorkbook(data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheets = append(sheets, newSheet(name, rows))
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return sheets, nil
}

func readDelimited(data []byte, comma rune) (Sheet, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return Sheet{}, fmt.Errorf("parse delimited text: %w", err)
	}
	if len(rows) == 0 {
		return Sheet{}, fmt.Errorf("no rows")
	}
	return newSheet("Sheet1", rows), nil
}

// newSheet uses the first row as header. Missing header names become "Unnamed: i".
func newSheet(name string, rows [][]string) Sheet {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	sh := Sheet{Name: name, Columns: make([]string, width)}
	if len(rows) == 0 {
		return sh
	}
	for i := 0; i < width; i++ {
		if i < len(rows[0]) && strings.TrimSpace(rows[0][i]) != "" {
			sh.Columns[i] = strings.TrimSpace(rows[0][i])
		} else {
			sh.Columns[i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}
	for _, row := range rows[1:] {
		padded := make([]string, width)
		copy(padded, row)
		sh.Rows = append(sh.Rows, padded)
	}
	return sh
}

// Markdown renders at most maxRows data rows and maxCols columns as a pipe table.
func Markdown(sh Sheet, maxRows, maxCols int) string {
	cols := len(sh.Columns)
	if maxCols > 0 && cols > maxCols {
		cols = maxCols
	}
	rows := sh.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < cols; i++ {
			b.WriteString(" ")
			b.WriteString(escapeCell(cells[i]))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	writeRow(sh.Columns)
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		b.WriteString(":---|")
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// TableStats reports shape and a column sample per sheet.
func TableStats(sheets []Sheet, maxCols int) []models.SheetStats {
	out := make([]models.SheetStats, 0, len(sheets))
	for _, sh := range sheets {
		cols := sh.Columns
		if maxCols > 0 && len(cols) > maxCols {
			cols = cols[:maxCols]
		}
		out = append(out, models.SheetStats{
			Sheet:         sh.Name,
			Shape:         sh.Shape(),
			ColumnsSample: append([]string{}, cols...),
		})
	}
	return out
}

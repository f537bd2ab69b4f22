// internal/models/rag.go
package models

// Answer is returned by every RAG endpoint. Sources holds strings for the web, PDF and
// audio/video pipelines and SheetStats for tables.
type Answer struct {
	Answer     string      `json:"answer"`
	Sources    interface{} `json:"sources"`
	AnswerHTML string      `json:"answer_html,omitempty"`
}

type SheetStats struct {
	Sheet         string   `json:"sheet"`
	Shape         [2]int   `json:"shape"`
	ColumnsSample []string `json:"columns_sample"`
}

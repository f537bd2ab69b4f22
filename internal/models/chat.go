// internal/models/chat.go
package models

type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

type ChatRequest struct {
	SessionID string `json:"session_id"`
	User      string `json:"user"`
	System    string `json:"system,omitempty"`
	Model     string `json:"model,omitempty"`
	RAGAuto   *bool  `json:"rag_auto,omitempty"`
}

type ChatResponse struct {
	Answer     string   `json:"answer"`
	SessionID  string   `json:"session_id"`
	HistoryLen *int     `json:"history_len,omitempty"`
	Model      string   `json:"model"`
	UsesOpenAI bool     `json:"uses_openai"`
	Sources    []string `json:"sources,omitempty"`
}

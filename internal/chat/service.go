package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"energy-ai-agent/internal/common/logger"
	"energy-ai-agent/internal/llm"
	"energy-ai-agent/internal/models"
)

const (
	DefaultSessionID = "default"
	ModelRAGWeb      = "rag_web"

	urlOnlyQuestion = "請根據網址內容回答。"
	emptyAnswer     = "（模型沒有回傳內容）"
)

var ErrUserRequired = errors.New("user is required")

var urlPattern = regexp.MustCompile(`(?i)(https?://\S+)`)

// WebAnswerer answers a question about a web page.
type WebAnswerer interface {
	AnswerWeb(ctx context.Context, question, url string) (*models.Answer, error)
}

type Options struct {
	DefaultModel string
	Temperature  float32
	Location     *time.Location
}

type Service struct {
	store  Store
	llm    llm.Client
	web    WebAnswerer
	opts   Options
	logger logger.Logger
	now    func() time.Time
}

// NewService wires the chat flow; web may be nil to disable URL routing.
func NewService(store Store, client llm.Client, web WebAnswerer, opts Options, log logger.Logger) *Service {
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		store:  store,
		llm:    client,
		web:    web,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "chat"}),
		now:    time.Now,
	}
}

// Reply answers one user turn and records it in the session history.
func (s *Service) Reply(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	userText := strings.TrimSpace(req.User)
	if userText == "" {
		return nil, ErrUserRequired
	}
	systemPrompt := strings.TrimSpace(req.System)
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.opts.DefaultModel
	}
	ragAuto := req.RAGAuto == nil || *req.RAGAuto
	usesLLM := s.llm.Enabled()

	if ragAuto && s.web != nil {
		if link := urlPattern.FindString(userText); link != "" {
			question := strings.TrimSpace(strings.Replace(userText, link, "", 1))
			if question == "" {
				question = urlOnlyQuestion
			}
			ans, err := s.web.AnswerWeb(ctx, question, link)
			if err == nil {
				if _, err := s.store.Append(ctx, sessionID, turn(userText, ans.Answer)...); err != nil {
					return nil, err
				}
				return &models.ChatResponse{
					Answer:     ans.Answer,
					SessionID:  sessionID,
					Model:      ModelRAGWeb,
					UsesOpenAI: usesLLM,
					Sources:    sourceStrings(ans.Sources),
				}, nil
			}
			s.logger.Warn("web rag failed, falling back to chat", map[string]interface{}{
				"url":   link,
				"error": err.Error(),
			})
			userText = fmt.Sprintf("(網址處理失敗，改用一般聊天) %v\n\n", err) + userText
		}
	}

	var answer string
	if usesLLM {
		history, err := s.store.History(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		messages := make([]models.ChatMessage, 0, len(history)+2)
		if systemPrompt != "" {
			messages = append(messages, models.ChatMessage{Role: "system", Content: systemPrompt})
		}
		messages = append(messages, history...)
		messages = append(messages, models.ChatMessage{Role: "user", Content: userText})

		reply, err := s.llm.Chat(ctx, llm.ChatRequest{Model: model, Messages: messages, Temperature: s.opts.Temperature})
		switch {
		case err != nil:
			s.logger.Warn("chat model call failed", map[string]interface{}{"error": err.Error()})
			answer = fmt.Sprintf("(LLM 失敗，改用離線回覆) %v\n\n你剛才說：%s\n暫時建議：確認 OPENAI_API_KEY 設定或稍後再試。", err, userText)
		case strings.TrimSpace(reply) == "":
			answer = emptyAnswer
		default:
			answer = strings.TrimSpace(reply)
		}
	} else {
		answer = s.offlineAnswer(userText)
	}

	n, err := s.store.Append(ctx, sessionID, turn(userText, answer)...)
	if err != nil {
		return nil, err
	}
	return &models.ChatResponse{
		Answer:     answer,
		SessionID:  sessionID,
		HistoryLen: &n,
		Model:      model,
		UsesOpenAI: usesLLM,
	}, nil
}

func (s *Service) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	return s.store.History(ctx, sessionID)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.store.Clear(ctx, sessionID)
}

func (s *Service) offlineAnswer(userText string) string {
	ts := s.now().In(s.opts.Location).Format("2006-01-02 15:04:05")
	return "（離線模式）我目前無法存取雲端模型，但我已收到你的訊息。\n" +
		"時間：" + ts + "\n\n" +
		"你說的是：" + userText + "\n" +
		"可以嘗試：\n" +
		"1) 設定 OPENAI_API_KEY 後重試；\n" +
		"2) 若要針對網址或檔案提問，改用 /ask_web、/ask_pdf、/ask_av、/ask_table。"
}

func turn(user, assistant string) []models.ChatMessage {
	return []models.ChatMessage{
		{Role: "user", Content: user},
		{Role: "assistant", Content: assistant},
	}
}

func sourceStrings(src interface{}) []string {
	switch v := src.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return []string{}
}

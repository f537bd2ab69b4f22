package parsereservationintent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const systemPromptTemplate = `今天是 %s（%s）。你是餐廳訂位規劃助手。請把使用者的口語需求轉成 JSON：` +
	`{"cuisine":"菜系或關鍵字","datetime":"YYYY-MM-DD HH:MM","party_size":2,"location":"城市或行政區","restaurant":"指定餐廳(可選)","notes":"可選"}。` +
	`若使用者提供相對日期（例如今天、明天、這禮拜五），請換算成實際日期 YYYY-MM-DD HH:MM。` +
	`若沒給時間，就預設今天 19:00；若沒地點，用%s；若沒人數，預設 2。`

func systemPrompt(now time.Time, defaultCity string) string {
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02"), now.Location().String(), defaultCity)
}

func userPrompt(text string) string {
	return "使用者：" + text + "\n\n請只輸出 JSON（不要多餘文字）。"
}

var (
	trailingComma = regexp.MustCompile(`,\s*}`)
	smartQuotes   = strings.NewReplacer("“", `"`, "”", `"`, "’", "'")
)

// salvageJSON decodes the outermost {...} of raw, repairing smart quotes and trailing commas
// on a second attempt. ok is false when nothing decodable was found.
func salvageJSON(raw string) (map[string]interface{}, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	candidate := raw[start : end+1]

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &out); err == nil {
		return out, true
	}

	repaired := trailingComma.ReplaceAllString(smartQuotes.Replace(candidate), "}")
	if err := json.Unmarshal([]byte(repaired), &out); err == nil {
		return out, true
	}
	return nil, false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// internal/workers/assistant/run-tool-agent/models.go
package runtoolagent

type Input struct {
	Question string `json:"question"`
}

type Output struct {
	Answer string `json:"answer"`
	Tool   string `json:"tool,omitempty"`
}

// modelReply is the JSON envelope the model answers with.
type modelReply struct {
	Tool        string                 `json:"tool"`
	Args        map[string]interface{} `json:"args"`
	FinalAnswer *string                `json:"final_answer"`
}

type searchArgs struct {
	Query      string `mapstructure:"query"`
	MaxResults int    `mapstructure:"max_results"`
}

type newsSearchArgs struct {
	Query string `mapstructure:"query"`
	Limit int    `mapstructure:"limit"`
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

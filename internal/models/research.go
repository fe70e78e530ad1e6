// internal/models/research.go
package models

// SearchResult is one retrieved document. URL is the dedup key.
type SearchResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"rawContent,omitempty"`
	Score      float64 `json:"score"`
}

// SearchResponse is what a search provider returns for a single query.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Query   string         `json:"query"`
}

type RouterDecision struct {
	Mode       Mode           `json:"mode"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	Source     DecisionSource `json:"source,omitempty"`
}

// PipelineResult is the caller-facing record of one research run.
type PipelineResult struct {
	Mode                Mode           `json:"mode"`
	Query               string         `json:"query"`
	Answer              string         `json:"answer"`
	Sources             []SearchResult `json:"sources"`
	ReasoningTrace      []string       `json:"reasoningTrace"`
	Subqueries          []string       `json:"subqueries"`
	ResponseTimeSeconds float64        `json:"responseTimeSeconds"`
	ContextUsed         bool           `json:"contextUsed"`
	RouterDecision      RouterDecision `json:"routerDecision"`
	RunID               string         `json:"runId,omitempty"`
}

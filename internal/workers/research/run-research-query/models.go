// internal/workers/research/run-research-query/models.go
package runresearchquery

import "research-workers/internal/models"

type Input struct {
	Query            string    `json:"query"`
	SessionID        string    `json:"sessionId"`
	PreviousMessages []Message `json:"previousMessages"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Output struct {
	models.PipelineResult
	SessionID    string `json:"sessionId,omitempty"`
	HistorySaved bool   `json:"historySaved"`
}

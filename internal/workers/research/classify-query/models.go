// internal/workers/research/classify-query/models.go
package classifyquery

import "research-workers/internal/models"

type Input struct {
	Query         string `json:"query"`
	ContextExists bool   `json:"contextExists"`
	UseLLM        *bool  `json:"useLlm"`
}

type Output struct {
	models.RouterDecision
	Query string `json:"query"`
}

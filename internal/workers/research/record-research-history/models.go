// internal/workers/research/record-research-history/models.go
package recordresearchhistory

import "research-workers/internal/models"

type Input struct {
	SessionID string                 `json:"sessionId"`
	Result    *models.PipelineResult `json:"result"`
}

type Output struct {
	Recorded  bool   `json:"recorded"`
	SessionID string `json:"sessionId,omitempty"`
}

// internal/common/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantRetries int
	}{
		{"retryable search failure", NewSearchFailedError(fmt.Errorf("boom")), 3},
		{"generation timeout", NewGenerationTimeoutError(fmt.Errorf("slow")), 1},
		{"validation never retries", NewQueryValidationFailedError("query is required"), 0},
		{"engine unavailable", NewEngineUnavailableError("topology", fmt.Errorf("refused")), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestToStandardError(t *testing.T) {
	std := NewPipelineFailedError("x")
	assert.Same(t, std, ToStandardError(std))

	wrapped := ToStandardError(fmt.Errorf("plain"))
	assert.Equal(t, ErrCodeInternal, wrapped.Code)
	assert.False(t, wrapped.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeHistoryWriteFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchTimeout))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeGenerationFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeQueryValidationFailed))
	assert.Equal(t, "WORKFLOW", GetErrorCategory(ErrCodeEngineTimeout))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

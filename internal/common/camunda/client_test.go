// internal/common/camunda/client_test.go
package camunda

import (
	"context"
	goerrors "errors"
	"testing"
	"time"

	"research-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestExecuteWithRetry_RecoversFromTransientError(t *testing.T) {
	calls := 0
	res, err := executeWithRetry(context.Background(), fastRetry, func(ctx context.Context) (interface{}, error) {
		calls++
		if calls < 2 {
			return nil, goerrors.New("rpc error: code = Unavailable")
		}
		return "ok", nil
	}, "topology")

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 2, calls)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := executeWithRetry(context.Background(), fastRetry, func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, goerrors.New("permission denied")
	}, "deploy")

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeEngineUnavailable, stdErr.Code)
}

func TestExecuteWithRetry_ExhaustsRetriesOnTimeout(t *testing.T) {
	calls := 0
	_, err := executeWithRetry(context.Background(), fastRetry, func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, goerrors.New("context deadline exceeded")
	}, "complete-job")

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeEngineTimeout, stdErr.Code)
	assert.Contains(t, stdErr.Details, "after 3 attempts")
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(goerrors.New("connection refused")))
	assert.True(t, isRetryableZeebeError(goerrors.New("Deadline Exceeded")))
	assert.False(t, isRetryableZeebeError(goerrors.New("not found")))
}

// internal/common/logger/logger_test.go
package logger

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter_FieldsAreSortedAndTyped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.Info("pipeline done", map[string]interface{}{
		"mode":        "pro",
		"error":       errors.New("boom"),
		"resultCount": 4,
	})

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].Context
	require.Len(t, fields, 3)
	assert.Equal(t, "error", fields[0].Key)
	assert.Equal(t, "mode", fields[1].Key)
	assert.Equal(t, "resultCount", fields[2].Key)
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestZapAdapter_TruncatesLongQueries(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapAdapter(zap.New(core)).With(map[string]interface{}{"sessionId": "s-1"})

	long := strings.Repeat("я", maxQueryField+50)
	log.Warn("search failed", map[string]interface{}{"query": long, "url": long})

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, strings.Repeat("я", maxQueryField)+"...", ctx["query"])
	assert.Equal(t, long, ctx["url"])
	assert.Equal(t, "s-1", ctx["sessionId"])
}

func TestZapAdapter_LevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := NewZapAdapter(zap.New(core))

	log.Debug("ignored", nil)
	log.Info("ignored", nil)
	log.WithError(errors.New("x")).Error("kept", nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

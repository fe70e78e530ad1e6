// internal/workers/research/run-research-query/handler_test.go
package runresearchquery

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-workers/internal/common/errors"
	"research-workers/internal/models"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t, fields: map[string]interface{}{}}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	merged := map[string]interface{}{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{t: l.t, fields: merged}
}

type fakeOrchestrator struct {
	query string
	turns []models.ConversationTurn
	mode  models.Mode
}

func (f *fakeOrchestrator) Run(ctx context.Context, query string, priorTurns []models.ConversationTurn) *models.PipelineResult {
	f.query = query
	f.turns = priorTurns
	mode := f.mode
	if mode == "" {
		mode = models.ModeSimple
	}
	return &models.PipelineResult{
		Mode:       mode,
		Query:      query,
		Answer:     "answer [1]",
		Sources:    []models.SearchResult{{Title: "t", URL: "https://a"}},
		Subqueries: []string{query},
		RunID:      "run-1",
	}
}

type fakeHistory struct {
	turns    []models.ConversationTurn
	readErr  error
	writeErr error
	saved    []*models.PipelineResult
	limit    int
}

func (f *fakeHistory) RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	f.limit = limit
	return f.turns, f.readErr
}

func (f *fakeHistory) SaveRun(ctx context.Context, sessionID string, result *models.PipelineResult) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.saved = append(f.saved, result)
	return nil
}

type rejectAll struct{}

func (rejectAll) ValidateInput(taskType string, input map[string]interface{}) error {
	return goerrors.New("query: String length must be greater than or equal to 1")
}

func testConfig() *Config {
	return &Config{Timeout: 5 * time.Second, HistoryLimit: 4, SaveHistory: true}
}

func TestHandler_Execute_UsesPreviousMessages(t *testing.T) {
	orch := &fakeOrchestrator{}
	hist := &fakeHistory{turns: []models.ConversationTurn{{Role: models.RoleUser, Content: "stored"}}}
	h := NewHandler(testConfig(), orch, hist, nil, NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Query:     "  tell me more  ",
		SessionID: "s-1",
		PreviousMessages: []Message{
			{Role: "user", Content: "What is Go?"},
			{Role: "assistant", Content: "A language."},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "tell me more", orch.query)
	require.Len(t, orch.turns, 2)
	assert.Equal(t, models.RoleAssistant, orch.turns[1].Role)
	assert.Equal(t, 0, hist.limit, "stored history is not consulted when messages are passed")
	assert.True(t, out.HistorySaved)
	assert.Equal(t, "s-1", out.SessionID)
	assert.Len(t, hist.saved, 1)
}

func TestHandler_Execute_LoadsHistory(t *testing.T) {
	orch := &fakeOrchestrator{}
	hist := &fakeHistory{turns: []models.ConversationTurn{
		{Role: models.RoleUser, Content: "a"},
		{Role: models.RoleAssistant, Content: "b"},
	}}
	h := NewHandler(testConfig(), orch, hist, nil, NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "and this?", SessionID: "s-1"})

	require.NoError(t, err)
	assert.Equal(t, 4, hist.limit)
	assert.Len(t, orch.turns, 2)
}

func TestHandler_Execute_HistoryFailuresDegrade(t *testing.T) {
	orch := &fakeOrchestrator{}
	hist := &fakeHistory{readErr: goerrors.New("db down"), writeErr: goerrors.New("db down")}
	h := NewHandler(testConfig(), orch, hist, nil, NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "What is Go?", SessionID: "s-1"})

	require.NoError(t, err)
	assert.Empty(t, orch.turns)
	assert.False(t, out.HistorySaved)
	assert.Equal(t, "answer [1]", out.Answer)
}

func TestHandler_Execute_ErrorModeStillCompletes(t *testing.T) {
	h := NewHandler(testConfig(), &fakeOrchestrator{mode: models.ModeError}, nil, nil, NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "What is Go?"})

	require.NoError(t, err)
	assert.Equal(t, models.ModeError, out.Mode)
	assert.False(t, out.HistorySaved)
}

func TestHandler_Execute_EmptyQuery(t *testing.T) {
	h := NewHandler(testConfig(), &fakeOrchestrator{}, nil, nil, NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "   "})

	require.Error(t, err)
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeQueryValidationFailed, stdErr.Code)
}

func TestHandler_ParseInput(t *testing.T) {
	h := NewHandler(testConfig(), &fakeOrchestrator{}, nil, nil, NewTestLogger(t))

	input, err := h.parseInput(`{"query":"What is Go?","sessionId":"s-9","previousMessages":[{"role":"user","content":"hi"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "What is Go?", input.Query)
	assert.Equal(t, "s-9", input.SessionID)
	assert.Len(t, input.PreviousMessages, 1)

	_, err = h.parseInput(`{not json`)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputParsingFailed, err.(*errors.StandardError).Code)
}

func TestHandler_ParseInput_Validator(t *testing.T) {
	h := NewHandler(testConfig(), &fakeOrchestrator{}, nil, rejectAll{}, NewTestLogger(t))

	_, err := h.parseInput(`{"query":""}`)

	require.Error(t, err)
	stdErr := err.(*errors.StandardError)
	assert.Equal(t, errors.ErrCodeQueryValidationFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "query")
}

func TestOutput_FlattensResult(t *testing.T) {
	out := Output{
		PipelineResult: models.PipelineResult{Mode: models.ModePro, Answer: "x", Sources: []models.SearchResult{}},
		SessionID:      "s-1",
		HistorySaved:   true,
	}
	data, err := json.Marshal(out)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &vars))
	assert.Equal(t, "pro", vars["mode"])
	assert.Equal(t, "x", vars["answer"])
	assert.Equal(t, "s-1", vars["sessionId"])
	assert.Equal(t, true, vars["historySaved"])
}

// internal/research/router/router_test.go
package router

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-workers/internal/common/logger"
	"research-workers/internal/models"
	"research-workers/internal/research"
)

type stubGenerator struct {
	calls    atomic.Int32
	response string
	err      error
}

func (s *stubGenerator) Complete(ctx context.Context, messages []research.Message, temperature float64, maxTokens int) (string, error) {
	s.calls.Add(1)
	return s.response, s.err
}

func newTestRouter(t *testing.T, gen research.Generator, cacheSize int) *Router {
	r, err := New(Config{CacheSize: cacheSize}, gen, logger.NewTestLogger(t))
	require.NoError(t, err)
	return r
}

func TestHeuristic_Rules(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		contextExists bool
		mode          models.Mode
		confidence    float64
		reason        string
	}{
		{"short query", "What is Python?", false, models.ModeSimple, 0.90, "short query"},
		{"short query beats context", "tell me more", true, models.ModeSimple, 0.90, "short query"},
		{"long query", "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen",
			false, models.ModePro, 0.85, "long complex query"},
		{"context exists", "Python typing module overview please", true, models.ModePro, 0.80, "conversation context exists"},
		{"pro keywords", "Compare Python and Java for backend development and explain tradeoffs in detail",
			false, models.ModePro, 0.90, "2 complexity markers"},
		{"russian pro keywords", "Сравни Python и Java подробно пожалуйста", false, models.ModePro, 0.90, "2 complexity markers"},
		{"simple keyword", "When was the Eiffel Tower built exactly", false, models.ModeSimple, 0.85, "1 simple markers"},
		{"mechanism question", "How a jet engine actually works today", false, models.ModePro, 0.75, "mechanism question"},
		{"several question marks", "Python typing? Rust traits? Go interfaces?", false, models.ModePro, 0.80, "multiple aspects"},
		{"many conjunctions", "cats and dogs and birds and fish together", false, models.ModePro, 0.80, "multiple aspects"},
		{"default short", "Python typing module overview please", false, models.ModeSimple, 0.60, "medium complexity, leaning simple"},
		{"default long", "Python typing module overview for large teams shipping services", false, models.ModePro, 0.60, "medium complexity, leaning pro"},
		{"empty query", "   ", false, models.ModeSimple, 0.90, "short query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Heuristic(tt.query, tt.contextExists, nil)
			assert.Equal(t, tt.mode, d.Mode)
			assert.InDelta(t, tt.confidence, d.Confidence, 1e-9)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, models.SourceHeuristic, d.Source)
		})
	}
}

func TestHeuristic_ShortQueriesAlwaysSimple(t *testing.T) {
	queries := []string{"compare vs why", "почему небо голубое", "explain verify analyze research", "a", "go vs rust?"}
	for _, q := range queries {
		d := Heuristic(q, false, nil)
		assert.Equal(t, models.ModeSimple, d.Mode, q)
		assert.Equal(t, 0.90, d.Confidence, q)
	}
}

func TestHeuristic_LongQueriesAlwaysPro(t *testing.T) {
	q := strings.Repeat("what is the date ", 5)
	d := Heuristic(q, false, nil)
	assert.Equal(t, models.ModePro, d.Mode)
	assert.Equal(t, 0.85, d.Confidence)
}

func TestHeuristic_CustomKeywords(t *testing.T) {
	kw := &Keywords{Pro: []string{"alpha", "beta"}}
	d := Heuristic("alpha beta gamma delta epsilon", false, kw)
	assert.Equal(t, models.ModePro, d.Mode)
	assert.Equal(t, "2 complexity markers", d.Reason)
}

func TestRouter_ConfidentHeuristicSkipsClassifier(t *testing.T) {
	gen := &stubGenerator{response: "pro|0.99|x"}
	r := newTestRouter(t, gen, 0)

	d := r.Route(context.Background(), "What is Python?", false, true)

	assert.Equal(t, models.ModeSimple, d.Mode)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestRouter_FallbackDisabled(t *testing.T) {
	gen := &stubGenerator{response: "pro|0.99|x"}
	r := newTestRouter(t, gen, 0)

	d := r.Route(context.Background(), "Python typing module overview please", true, false)

	assert.Equal(t, models.ModePro, d.Mode)
	assert.Equal(t, 0.80, d.Confidence)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestRouter_ClassifierOverridesLowConfidence(t *testing.T) {
	gen := &stubGenerator{response: "pro|0.95|needs several sources"}
	r := newTestRouter(t, gen, 0)

	d := r.Route(context.Background(), "Python typing module overview please", false, true)

	assert.Equal(t, models.ModePro, d.Mode)
	assert.Equal(t, 0.95, d.Confidence)
	assert.Equal(t, "LLM: needs several sources", d.Reason)
	assert.Equal(t, models.SourceLLM, d.Source)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestRouter_BoundaryConfidenceConsultsClassifier(t *testing.T) {
	gen := &stubGenerator{response: "simple|0.7|follow-up is a lookup"}
	r := newTestRouter(t, gen, 0)

	d := r.Route(context.Background(), "Python typing module overview please", true, true)

	assert.Equal(t, models.ModeSimple, d.Mode)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestRouter_ClampsClassifierConfidence(t *testing.T) {
	gen := &stubGenerator{response: "pro|3|very sure"}
	r := newTestRouter(t, gen, 0)

	d := r.Route(context.Background(), "Python typing module overview please", false, true)

	assert.Equal(t, 1.0, d.Confidence)
}

func TestRouter_FallsBackToHeuristic(t *testing.T) {
	query := "Python typing module overview please"
	expected := Heuristic(query, false, nil)

	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"malformed output", &stubGenerator{response: "I would say this is a pro question"}},
		{"unknown mode", &stubGenerator{response: "deep|0.9|x"}},
		{"bad confidence", &stubGenerator{response: "pro|very|x"}},
		{"empty output", &stubGenerator{response: ""}},
		{"generation error", &stubGenerator{err: errors.New("GENERATION_TIMEOUT")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, tt.gen, 16)
			d := r.Route(context.Background(), query, false, true)
			assert.Equal(t, expected, d)
			assert.Equal(t, int32(1), tt.gen.calls.Load())
		})
	}
}

func TestRouter_NilGeneratorIsHeuristicOnly(t *testing.T) {
	r := newTestRouter(t, nil, 0)
	d := r.Route(context.Background(), "Python typing module overview please", false, true)
	assert.Equal(t, Heuristic("Python typing module overview please", false, nil), d)
}

func TestRouter_CachesClassifications(t *testing.T) {
	gen := &stubGenerator{response: "pro|0.9|depth"}
	r := newTestRouter(t, gen, 8)

	first := r.Route(context.Background(), "Python typing module overview please", false, true)
	second := r.Route(context.Background(), "  python   TYPING module overview please ", false, true)

	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, models.SourceLLM, first.Source)
	assert.Equal(t, models.SourceCache, second.Source)
	assert.Equal(t, first.Mode, second.Mode)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestRouter_DoesNotCacheFailures(t *testing.T) {
	gen := &stubGenerator{response: "garbage"}
	r := newTestRouter(t, gen, 8)

	r.Route(context.Background(), "Python typing module overview please", false, true)
	r.Route(context.Background(), "Python typing module overview please", false, true)

	assert.Equal(t, int32(2), gen.calls.Load())
}

func TestRouter_ConfidenceAlwaysInRange(t *testing.T) {
	responses := []string{"pro|-5|x", "simple|42|x", "pro|0.5|x", "nonsense"}
	queries := []string{
		"What is Python?",
		"Python typing module overview please",
		"Compare Python and Java for backend development and explain tradeoffs in detail",
		"Python typing module overview for large teams shipping services",
	}
	for _, resp := range responses {
		r := newTestRouter(t, &stubGenerator{response: resp}, 0)
		for _, q := range queries {
			d := r.Route(context.Background(), q, false, true)
			assert.GreaterOrEqual(t, d.Confidence, 0.0)
			assert.LessOrEqual(t, d.Confidence, 1.0)
			assert.True(t, d.Mode.Valid())
		}
	}
}

func BenchmarkHeuristic(b *testing.B) {
	kw := DefaultKeywords()
	for i := 0; i < b.N; i++ {
		Heuristic("Compare Python and Java for backend development and explain tradeoffs in detail", false, kw)
	}
}

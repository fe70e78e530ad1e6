// internal/research/simple/pipeline.go
package simple

import (
	"context"
	"fmt"

	"research-workers/internal/common/logger"
	"research-workers/internal/common/metrics"
	"research-workers/internal/models"
	"research-workers/internal/research"
	"research-workers/internal/research/prompt"
)

const NotFoundAnswer = "Sorry, no information was found for your query."

type Config struct {
	MaxResults  int
	Region      string
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{
		MaxResults:  5,
		Temperature: 0.3,
		MaxTokens:   500,
	}
}

// Pipeline answers a query from a single search. It never sees conversation context.
type Pipeline struct {
	cfg       Config
	searcher  research.Searcher
	generator research.Generator
	logger    logger.Logger
}

func New(cfg Config, searcher research.Searcher, generator research.Generator, log logger.Logger) *Pipeline {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	return &Pipeline{
		cfg:       cfg,
		searcher:  searcher,
		generator: generator,
		logger:    log.With(map[string]interface{}{"component": "simple-pipeline"}),
	}
}

// Run returns an error only when the search itself fails; a failed synthesis is
// reported inside the answer.
func (p *Pipeline) Run(ctx context.Context, query string) (*models.PipelineResult, error) {
	result := &models.PipelineResult{
		Mode:           models.ModeSimple,
		Query:          query,
		Sources:        []models.SearchResult{},
		ReasoningTrace: []string{"Simple mode: single search"},
		Subqueries:     []string{query},
	}

	resp, err := research.GuardedSearch(ctx, p.searcher, query, research.SearchOptions{
		MaxResults: p.cfg.MaxResults,
		Region:     p.cfg.Region,
	})
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("search", "simple").Inc()
		return nil, fmt.Errorf("simple search: %w", err)
	}

	results := resp.Results
	if len(results) > p.cfg.MaxResults {
		results = results[:p.cfg.MaxResults]
	}
	result.ReasoningTrace = append(result.ReasoningTrace, fmt.Sprintf("Found %d results", len(results)))

	if len(results) == 0 {
		result.Answer = NotFoundAnswer
		result.ReasoningTrace = append(result.ReasoningTrace, "No results, skipping synthesis")
		return result, nil
	}
	result.Sources = results

	messages := []research.Message{
		research.SystemMessage(prompt.SimpleSystem + " " + prompt.LanguageInstruction(query)),
		research.UserMessage(prompt.SimpleUser(query, prompt.NumberedSources(results, 0))),
	}
	answer, err := p.generator.Complete(ctx, messages, p.cfg.Temperature, p.cfg.MaxTokens)
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("llm", "synthesize").Inc()
		p.logger.Warn("answer generation failed", map[string]interface{}{
			"query": prompt.Truncate(query, 120),
			"error": err.Error(),
		})
		result.Answer = "Error generating answer: " + err.Error()
		result.ReasoningTrace = append(result.ReasoningTrace, "Answer generation failed")
		return result, nil
	}

	result.Answer = answer
	result.ReasoningTrace = append(result.ReasoningTrace, "Answer generated")
	return result, nil
}

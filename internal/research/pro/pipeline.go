// internal/research/pro/pipeline.go
package pro

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"research-workers/internal/common/logger"
	"research-workers/internal/common/metrics"
	"research-workers/internal/models"
	"research-workers/internal/research"
	"research-workers/internal/research/prompt"
)

const InsufficientAnswer = "Could not find sufficient information to answer your query."

type Config struct {
	MaxResults  int
	Region      string
	Concurrency int
	// WorkingSet bounds the aggregated results, CitationSet the ones shown to the model.
	WorkingSet           int
	CitationSet          int
	Temperature          float64
	MaxTokens            int
	DecomposeTemperature float64
	DecomposeMaxTokens   int
}

func DefaultConfig() Config {
	return Config{
		MaxResults:           10,
		Concurrency:          3,
		WorkingSet:           10,
		CitationSet:          5,
		Temperature:          0.5,
		MaxTokens:            1500,
		DecomposeTemperature: 0.5,
		DecomposeMaxTokens:   200,
	}
}

type Request struct {
	Query      string
	Context    string
	PriorTurns []models.ConversationTurn
}

// Pipeline decomposes a query into subqueries, searches them concurrently and
// synthesizes an analytical answer from the merged results.
type Pipeline struct {
	cfg       Config
	searcher  research.Searcher
	generator research.Generator
	logger    logger.Logger
}

func New(cfg Config, searcher research.Searcher, generator research.Generator, log logger.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.WorkingSet <= 0 {
		cfg.WorkingSet = def.WorkingSet
	}
	if cfg.CitationSet <= 0 {
		cfg.CitationSet = def.CitationSet
	}
	return &Pipeline{
		cfg:       cfg,
		searcher:  searcher,
		generator: generator,
		logger:    log.With(map[string]interface{}{"component": "pro-pipeline"}),
	}
}

// Run never fails on provider errors: failed subquery searches are skipped and a
// failed synthesis is reported inside the answer.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.PipelineResult, error) {
	result := &models.PipelineResult{
		Mode:           models.ModePro,
		Query:          req.Query,
		Sources:        []models.SearchResult{},
		ReasoningTrace: []string{"Pro mode: multi-step research"},
	}
	if len(req.PriorTurns) > 0 {
		result.ReasoningTrace = append(result.ReasoningTrace, fmt.Sprintf("Conversation history: %d turns", len(req.PriorTurns)))
	}

	subqueries := p.decompose(ctx, req, result)
	result.Subqueries = subqueries

	merged := p.searchAll(ctx, subqueries, result)
	unique := Dedup(merged)
	if len(unique) > p.cfg.WorkingSet {
		unique = unique[:p.cfg.WorkingSet]
	}
	result.ReasoningTrace = append(result.ReasoningTrace, fmt.Sprintf("Aggregated %d unique results", len(unique)))

	if len(unique) == 0 {
		result.Answer = InsufficientAnswer
		result.ReasoningTrace = append(result.ReasoningTrace, "No results, skipping synthesis")
		return result, nil
	}

	cited := unique
	if len(cited) > p.cfg.CitationSet {
		cited = cited[:p.cfg.CitationSet]
	}
	result.Sources = cited

	p.synthesize(ctx, req, cited, result)
	return result, nil
}

func (p *Pipeline) decompose(ctx context.Context, req Request, result *models.PipelineResult) []string {
	messages := []research.Message{
		research.SystemMessage(prompt.DecomposeSystem),
		research.UserMessage(prompt.DecomposeUser(req.Query, req.Context)),
	}
	text, err := p.generator.Complete(ctx, messages, p.cfg.DecomposeTemperature, p.cfg.DecomposeMaxTokens)
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("llm", "decompose").Inc()
		p.logger.Warn("subquery generation failed, searching the original query", map[string]interface{}{
			"error": err.Error(),
		})
		result.ReasoningTrace = append(result.ReasoningTrace, "Subquery generation failed, using the original query")
		return []string{req.Query}
	}

	subqueries, ok := prompt.ParseSubqueries(text, prompt.MaxSubqueries)
	if !ok {
		result.ReasoningTrace = append(result.ReasoningTrace, "No subqueries parsed, using the original query")
		return []string{req.Query}
	}
	result.ReasoningTrace = append(result.ReasoningTrace,
		fmt.Sprintf("Generated %d subqueries: %s", len(subqueries), strings.Join(subqueries, "; ")))
	return subqueries
}

func (p *Pipeline) searchAll(ctx context.Context, subqueries []string, result *models.PipelineResult) []models.SearchResult {
	perQuery := make([][]models.SearchResult, len(subqueries))
	failures := make([]error, len(subqueries))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, sq := range subqueries {
		i, sq := i, sq
		g.Go(func() error {
			resp, err := research.GuardedSearch(ctx, p.searcher, sq, research.SearchOptions{
				MaxResults: p.cfg.MaxResults,
				Region:     p.cfg.Region,
			})
			if err != nil {
				failures[i] = err
				return nil
			}
			perQuery[i] = resp.Results
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.SearchResult
	for i, sq := range subqueries {
		if failures[i] != nil {
			metrics.ProviderFailures.WithLabelValues("search", "pro").Inc()
			p.logger.Warn("subquery search failed", map[string]interface{}{
				"subquery": sq,
				"error":    failures[i].Error(),
			})
			result.ReasoningTrace = append(result.ReasoningTrace, fmt.Sprintf("Search failed for %q", sq))
			continue
		}
		result.ReasoningTrace = append(result.ReasoningTrace, fmt.Sprintf("Searched %q: %d results", sq, len(perQuery[i])))
		merged = append(merged, perQuery[i]...)
	}
	return merged
}

func (p *Pipeline) synthesize(ctx context.Context, req Request, cited []models.SearchResult, result *models.PipelineResult) {
	system := prompt.ProSystem
	if req.Context != "" {
		system += prompt.ProContextSystem
	}
	system += " " + prompt.LanguageInstruction(req.Query)

	messages := []research.Message{
		research.SystemMessage(system),
		research.UserMessage(prompt.ProUser(req.Query, prompt.NumberedSources(cited, prompt.SnippetLimit), req.Context)),
	}
	result.ContextUsed = req.Context != ""
	answer, err := p.generator.Complete(ctx, messages, p.cfg.Temperature, p.cfg.MaxTokens)
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("llm", "synthesize").Inc()
		p.logger.Warn("answer generation failed", map[string]interface{}{"error": err.Error()})
		result.Answer = "Error generating answer: " + err.Error()
		result.ReasoningTrace = append(result.ReasoningTrace, "Answer generation failed")
		return
	}

	result.Answer = answer
	if result.ContextUsed {
		result.ReasoningTrace = append(result.ReasoningTrace, "Answer generated with conversation context")
	} else {
		result.ReasoningTrace = append(result.ReasoningTrace, "Answer generated")
	}
}

// internal/research/router/router.go
package router

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"research-workers/internal/common/logger"
	"research-workers/internal/common/metrics"
	"research-workers/internal/models"
	"research-workers/internal/research"
	"research-workers/internal/research/prompt"
)

const (
	// ConfidentAbove is the heuristic confidence above which the classifier is skipped.
	ConfidentAbove = 0.80

	classifyTemperature = 0.3
	classifyMaxTokens   = 100
)

type Config struct {
	// CacheSize bounds memoised classifier answers; 0 disables the cache.
	CacheSize int
	Keywords  *Keywords
}

type Router struct {
	generator research.Generator
	keywords  *Keywords
	cache     *lru.Cache[string, models.RouterDecision]
	logger    logger.Logger
}

// New builds a Router. generator may be nil, in which case routing is heuristic only.
func New(cfg Config, generator research.Generator, log logger.Logger) (*Router, error) {
	r := &Router{
		generator: generator,
		keywords:  cfg.Keywords,
		logger:    log.With(map[string]interface{}{"component": "router"}),
	}
	if r.keywords == nil {
		r.keywords = DefaultKeywords()
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, models.RouterDecision](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	return r, nil
}

// Route picks a pipeline for query. It never fails: when the classifier is
// unavailable or answers badly the heuristic decision is returned unchanged.
func (r *Router) Route(ctx context.Context, query string, contextExists, useLLMFallback bool) models.RouterDecision {
	decision := Heuristic(query, contextExists, r.keywords)

	if decision.Confidence > ConfidentAbove || !useLLMFallback || r.generator == nil {
		r.record(query, decision)
		return decision
	}

	key := cacheKey(query, contextExists)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			cached.Source = models.SourceCache
			r.record(query, cached)
			return cached
		}
	}

	classified, ok := r.classify(ctx, query, contextExists)
	if !ok {
		r.record(query, decision)
		return decision
	}
	if r.cache != nil {
		r.cache.Add(key, classified)
	}
	r.record(query, classified)
	return classified
}

func (r *Router) classify(ctx context.Context, query string, contextExists bool) (models.RouterDecision, bool) {
	messages := []research.Message{
		research.SystemMessage(prompt.ClassifySystem),
		research.UserMessage(prompt.ClassifyUser(query, contextExists)),
	}

	text, err := r.generator.Complete(ctx, messages, classifyTemperature, classifyMaxTokens)
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("llm", "classify").Inc()
		r.logger.Warn("query classification failed, using heuristic", map[string]interface{}{
			"error": err.Error(),
		})
		return models.RouterDecision{}, false
	}

	decision, ok := prompt.ParseClassification(text)
	if !ok {
		r.logger.Warn("unparseable classification, using heuristic", map[string]interface{}{
			"response": prompt.Truncate(text, 200),
		})
	}
	return decision, ok
}

func (r *Router) record(query string, d models.RouterDecision) {
	metrics.RouteDecisions.WithLabelValues(string(d.Mode), string(d.Source)).Inc()
	r.logger.Info("router decision", map[string]interface{}{
		"query":      prompt.Truncate(query, 120),
		"mode":       d.Mode,
		"confidence": d.Confidence,
		"reason":     d.Reason,
		"source":     d.Source,
	})
}

func cacheKey(query string, contextExists bool) string {
	key := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if contextExists {
		return "ctx:" + key
	}
	return key
}

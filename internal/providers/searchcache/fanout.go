// internal/providers/searchcache/fanout.go
package searchcache

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"research-workers/internal/common/logger"
	"research-workers/internal/common/metrics"
	"research-workers/internal/models"
	"research-workers/internal/research"
)

const DefaultKnowledgeSlots = 2

// Fanout queries the web and the knowledge base together. Web results come first;
// up to knowledgeSlots of the result cap are kept for knowledge base hits.
type Fanout struct {
	web            research.Searcher
	knowledge      research.Searcher
	knowledgeSlots int
	logger         logger.Logger
}

func NewFanout(web, knowledge research.Searcher, knowledgeSlots int, log logger.Logger) *Fanout {
	if knowledgeSlots <= 0 {
		knowledgeSlots = DefaultKnowledgeSlots
	}
	return &Fanout{
		web:            web,
		knowledge:      knowledge,
		knowledgeSlots: knowledgeSlots,
		logger:         log.With(map[string]interface{}{"component": "search-fanout"}),
	}
}

func (f *Fanout) Search(ctx context.Context, query string, opts research.SearchOptions) (*models.SearchResponse, error) {
	var (
		webResp, kbResp *models.SearchResponse
		webErr, kbErr   error
		g               errgroup.Group
	)
	g.Go(func() error {
		webResp, webErr = research.GuardedSearch(ctx, f.web, query, opts)
		return nil
	})
	g.Go(func() error {
		kbResp, kbErr = research.GuardedSearch(ctx, f.knowledge, query, opts)
		return nil
	})
	_ = g.Wait()

	if webErr != nil && kbErr != nil {
		if errors.Is(webErr, research.ErrSearchTimeout) && errors.Is(kbErr, research.ErrSearchTimeout) {
			return nil, fmt.Errorf("%w: web: %v; knowledge base: %v", research.ErrSearchTimeout, webErr, kbErr)
		}
		return nil, fmt.Errorf("%w: web: %v; knowledge base: %v", research.ErrSearch, webErr, kbErr)
	}
	if webErr != nil {
		metrics.ProviderFailures.WithLabelValues("websearch", "search").Inc()
		f.logger.Warn("web search failed, using knowledge base only", map[string]interface{}{"error": webErr.Error()})
	}
	if kbErr != nil {
		metrics.ProviderFailures.WithLabelValues("knowledgebase", "search").Inc()
		f.logger.Warn("knowledge base search failed, using web only", map[string]interface{}{"error": kbErr.Error()})
	}

	var web, kb []models.SearchResult
	if webResp != nil {
		web = webResp.Results
	}
	if kbResp != nil {
		kb = kbResp.Results
	}

	return &models.SearchResponse{Results: merge(web, kb, opts.MaxResults, f.knowledgeSlots), Query: query}, nil
}

func merge(web, kb []models.SearchResult, limit, knowledgeSlots int) []models.SearchResult {
	if limit <= 0 {
		out := make([]models.SearchResult, 0, len(web)+len(kb))
		return append(append(out, web...), kb...)
	}

	kbTake := min(len(kb), knowledgeSlots, limit)
	webTake := min(len(web), limit-kbTake)
	// let the knowledge base fill slots the web could not
	kbTake = min(len(kb), limit-webTake)

	out := make([]models.SearchResult, 0, webTake+kbTake)
	out = append(out, web[:webTake]...)
	return append(out, kb[:kbTake]...)
}

// internal/providers/websearch/client.go
package websearch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"research-workers/internal/common/logger"
	"research-workers/internal/models"
	"research-workers/internal/research"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
}

// Client calls a Tavily-style search service: POST /search with a JSON query.
type Client struct {
	rest   *resty.Client
	logger logger.Logger
}

type searchRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
	Region            string `json:"region,omitempty"`
}

type searchResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title      string  `json:"title"`
		URL        string  `json:"url"`
		Content    string  `json:"content"`
		RawContent string  `json:"raw_content"`
		Score      float64 `json:"score"`
	} `json:"results"`
}

func New(cfg Config, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 100 * time.Millisecond
	}

	rest := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(2 * time.Second)
	if cfg.APIKey != "" {
		rest.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	rest.AddRetryCondition(retryCondition)

	return &Client{
		rest:   rest,
		logger: log.With(map[string]interface{}{"provider": "websearch"}),
	}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

// Search returns at most opts.MaxResults results. Failures wrap research.ErrSearch
// or research.ErrSearchTimeout.
func (c *Client) Search(ctx context.Context, query string, opts research.SearchOptions) (*models.SearchResponse, error) {
	var out searchResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(searchRequest{
			Query:             query,
			MaxResults:        opts.MaxResults,
			IncludeRawContent: opts.IncludeRawContent,
			Region:            opts.Region,
		}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", research.ErrSearchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", research.ErrSearch, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", research.ErrSearch, resp.StatusCode(), truncate(resp.String(), 256))
	}

	results := make([]models.SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, models.SearchResult{
			Title:      r.Title,
			URL:        r.URL,
			Content:    r.Content,
			RawContent: r.RawContent,
			Score:      r.Score,
		})
	}
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}

	c.logger.Debug("web search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(results),
	})
	return &models.SearchResponse{Results: results, Query: query}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

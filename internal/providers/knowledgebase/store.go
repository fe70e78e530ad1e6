// internal/providers/knowledgebase/store.go
package knowledgebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"research-workers/internal/common/logger"
	"research-workers/internal/models"
	"research-workers/internal/research"
)

var ErrMissingIndex = errors.New("knowledge index name is required")

type Config struct {
	Index string
	// Fields are the multi_match fields with optional boosts.
	Fields []string
}

func DefaultFields() []string {
	return []string{"title^2", "content"}
}

type Document struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Store searches internal documents kept in an Elasticsearch index.
type Store struct {
	cfg    Config
	client *elasticsearch.Client
	logger logger.Logger
}

func New(cfg Config, client *elasticsearch.Client, log logger.Logger) (*Store, error) {
	if cfg.Index == "" {
		return nil, ErrMissingIndex
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = DefaultFields()
	}
	return &Store{
		cfg:    cfg,
		client: client,
		logger: log.With(map[string]interface{}{"provider": "knowledgebase", "index": cfg.Index}),
	}, nil
}

type searchHits struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *Store) buildQuery(query string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": s.cfg.Fields,
				"type":   "best_fields",
			},
		},
		"_source": []string{"title", "url", "content"},
	})
}

// Search runs a multi_match query. Hits without a url keep an es:// locator so
// they survive URL deduplication.
func (s *Store) Search(ctx context.Context, query string, opts research.SearchOptions) (*models.SearchResponse, error) {
	body, err := s.buildQuery(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", research.ErrSearch, err)
	}

	size := opts.MaxResults
	if size <= 0 {
		size = 5
	}
	req := esapi.SearchRequest{
		Index: []string{s.cfg.Index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", research.ErrSearchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", research.ErrSearch, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("%w: elasticsearch %s: %s", research.ErrSearch, res.Status(), string(raw))
	}

	var parsed searchHits
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode hits: %v", research.ErrSearch, err)
	}

	results := make([]models.SearchResult, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		url := hit.Source.URL
		if url == "" {
			url = fmt.Sprintf("es://%s/%s", s.cfg.Index, hit.ID)
		}
		results = append(results, models.SearchResult{
			Title:   hit.Source.Title,
			URL:     url,
			Content: hit.Source.Content,
			Score:   hit.Score,
		})
	}

	s.logger.Debug("knowledge base search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(results),
	})
	return &models.SearchResponse{Results: results, Query: query}, nil
}

// Add indexes a document. An empty id lets Elasticsearch assign one.
func (s *Store) Add(ctx context.Context, id string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      s.cfg.Index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index document: %s", res.Status())
	}
	return nil
}

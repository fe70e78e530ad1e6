// internal/providers/searchcache/cache.go
package searchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"research-workers/internal/common/logger"
	"research-workers/internal/common/metrics"
	"research-workers/internal/models"
	"research-workers/internal/research"
)

const DefaultPrefix = "research:search:"

type Config struct {
	TTL    time.Duration
	Prefix string
}

// Cache is a Searcher decorator backed by Redis. Redis failures are logged and the
// call falls through to the wrapped searcher.
type Cache struct {
	next   research.Searcher
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func New(next research.Searcher, rdb redis.Cmdable, cfg Config, log logger.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Cache{
		next:   next,
		rdb:    rdb,
		ttl:    cfg.TTL,
		prefix: cfg.Prefix,
		logger: log.With(map[string]interface{}{"component": "search-cache"}),
	}
}

// Key identifies a search by normalised query, result cap and region.
func (c *Cache) Key(query string, opts research.SearchOptions) string {
	normalised := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%t", normalised, opts.MaxResults, opts.Region, opts.IncludeRawContent)))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *Cache) Search(ctx context.Context, query string, opts research.SearchOptions) (*models.SearchResponse, error) {
	key := c.Key(query, opts)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached models.SearchResponse
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			metrics.SearchCacheLookups.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		metrics.SearchCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"key": key})
	case errors.Is(err, redis.Nil):
		metrics.SearchCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.SearchCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("search cache read failed", map[string]interface{}{"error": err.Error()})
	}

	resp, err := c.next.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	// empty responses are never cached
	if len(resp.Results) == 0 {
		return resp, nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return resp, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("search cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return resp, nil
}

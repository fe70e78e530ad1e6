// internal/bootstrap/bootstrap.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"research-workers/internal/common/config"
	"research-workers/internal/common/database"
	"research-workers/internal/common/logger"
	"research-workers/internal/history"
	"research-workers/internal/models"
	"research-workers/internal/providers/knowledgebase"
	"research-workers/internal/providers/llm"
	"research-workers/internal/providers/searchcache"
	"research-workers/internal/providers/websearch"
	"research-workers/internal/research"
	"research-workers/internal/research/conversation"
	"research-workers/internal/research/orchestrator"
	"research-workers/internal/research/pro"
	"research-workers/internal/research/router"
	"research-workers/internal/research/simple"
	"research-workers/pkg/registry"
)

type Options struct {
	// ConnectAttempts bounds connection attempts per backing store.
	ConnectAttempts int
	ConnectDelay    time.Duration
	// Recorder receives pipeline run metrics. May be nil.
	Recorder orchestrator.Recorder
}

// Components is the research stack built from configuration. Optional backends are
// nil when their configuration section is empty.
type Components struct {
	Generator    research.Generator
	Searcher     research.Searcher
	Router       *router.Router
	Orchestrator *orchestrator.Orchestrator
	History      *history.Store
	Knowledge    *knowledgebase.Store
	Registry     *registry.ActivityRegistry

	closers     []func() error
	checks      map[string]func(context.Context) error
	cache       *database.RedisClient
	cachePrefix string
}

// ErrSearchCacheDisabled is returned by ClearSearchCache when no cache is configured.
var ErrSearchCacheDisabled = errors.New("SEARCH_CACHE_DISABLED")

// Build wires providers, the research core and optional stores.
func Build(ctx context.Context, cfg *config.Config, opts Options, log logger.Logger) (*Components, error) {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}
	if opts.ConnectDelay <= 0 {
		opts.ConnectDelay = 2 * time.Second
	}

	c := &Components{checks: make(map[string]func(context.Context) error)}
	if err := c.build(ctx, cfg, opts, log); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build(ctx context.Context, cfg *config.Config, opts Options, log logger.Logger) error {
	generator := llm.New(llm.Config{
		BaseURL:    cfg.APIs.LLM.BaseURL,
		APIKey:     cfg.APIs.LLM.APIKey,
		Model:      cfg.APIs.LLM.Model,
		Timeout:    config.GetDuration(cfg.APIs.LLM.Timeout),
		MaxRetries: cfg.APIs.LLM.MaxRetries,
	}, log)
	c.Generator = generator

	var searcher research.Searcher = websearch.New(websearch.Config{
		BaseURL:    cfg.APIs.WebSearch.BaseURL,
		APIKey:     cfg.APIs.WebSearch.APIKey,
		Timeout:    config.GetDuration(cfg.APIs.WebSearch.Timeout),
		MaxRetries: cfg.APIs.WebSearch.MaxRetries,
	}, log)

	if cfg.SearchCache.Enabled {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, rdb.Close)
		if err := connect(ctx, opts, log, "Redis", rdb.Ping); err != nil {
			return err
		}
		c.checks["redis"] = rdb.Ping
		c.cache = rdb
		c.cachePrefix = cfg.SearchCache.Prefix
		if c.cachePrefix == "" {
			c.cachePrefix = searchcache.DefaultPrefix
		}
		searcher = searchcache.New(searcher, rdb.Client, searchcache.Config{
			TTL:    time.Duration(cfg.SearchCache.TTL) * time.Second,
			Prefix: c.cachePrefix,
		}, log)
	}

	if cfg.Research.KnowledgeIndex != "" {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := connect(ctx, opts, log, "Elasticsearch", func(context.Context) error { return es.Ping() }); err != nil {
			return err
		}
		c.checks["elasticsearch"] = func(context.Context) error { return es.Ping() }
		if err := es.EnsureIndex(ctx, cfg.Research.KnowledgeIndex, database.KnowledgeMapping); err != nil {
			return err
		}
		kb, err := knowledgebase.New(knowledgebase.Config{Index: cfg.Research.KnowledgeIndex}, es.Client, log)
		if err != nil {
			return err
		}
		c.Knowledge = kb
		searcher = searchcache.NewFanout(searcher, kb, cfg.Research.KnowledgeSlots, log)
	}
	c.Searcher = searcher

	if cfg.Database.Postgres.Enabled() {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, pg.Close)
		if err := connect(ctx, opts, log, "PostgreSQL", pg.Ping); err != nil {
			return err
		}
		c.checks["postgres"] = pg.Ping
		store := history.NewStore(pg.DB, log)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		c.History = store
	}

	rt, err := router.New(router.Config{CacheSize: cfg.Research.RouterCacheSize}, generator, log)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	c.Router = rt

	simpleCfg := simple.DefaultConfig()
	simpleCfg.MaxResults = cfg.Research.MaxResultsSimple
	simpleCfg.Region = cfg.Research.SearchRegion

	proCfg := pro.DefaultConfig()
	proCfg.MaxResults = cfg.Research.MaxResultsPro
	proCfg.Region = cfg.Research.SearchRegion
	proCfg.Concurrency = cfg.Research.SubqueryConcurrency

	c.Orchestrator = orchestrator.New(
		orchestrator.Config{UseLLMRouter: cfg.Research.LLMRouterEnabled()},
		rt,
		conversation.NewManager(conversation.Config{
			MaxMessages: cfg.Research.MaxContextMessages,
			MaxTokens:   cfg.Research.MaxContextTokens,
		}),
		simple.New(simpleCfg, searcher, generator, log),
		pro.New(proCfg, searcher, generator, log),
		opts.Recorder,
		log,
	)

	if cfg.Registry.Path != "" {
		reg, err := registry.LoadRegistry(cfg.Registry.Path)
		if err != nil {
			log.Warn("activity registry not loaded, job input is not schema-checked", map[string]interface{}{
				"path":  cfg.Registry.Path,
				"error": err.Error(),
			})
		} else {
			c.Registry = reg
		}
	}

	return nil
}

// SessionRepository returns the history store, or nil when history is disabled.
func (c *Components) SessionRepository() models.SessionRepository {
	if c.History == nil {
		return nil
	}
	return c.History
}

// Ready pings every configured backing store and joins the failures.
func (c *Components) Ready(ctx context.Context) error {
	var errs []error
	for name, check := range c.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ClearSearchCache deletes all cached search responses.
func (c *Components) ClearSearchCache(ctx context.Context) (int, error) {
	if c.cache == nil {
		return 0, ErrSearchCacheDisabled
	}
	return c.cache.DeletePrefix(ctx, c.cachePrefix)
}

func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func connect(ctx context.Context, opts Options, log logger.Logger, name string, ping func(context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(opts.ConnectAttempts-1), retry.NewExponential(opts.ConnectDelay))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := ping(ctx); err != nil {
			if attempt < opts.ConnectAttempts {
				log.Warn(fmt.Sprintf("%s connection failed, retrying...", name), map[string]interface{}{
					"error":       err.Error(),
					"attempt":     attempt,
					"maxAttempts": opts.ConnectAttempts,
				})
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s connection failed after %d attempts: %w", name, attempt, err)
	}
	log.Info(fmt.Sprintf("%s connected successfully", name), nil)
	return nil
}

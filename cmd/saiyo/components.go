package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/aspect"
	"github.com/hyperjump/saiyo/internal/categorize"
	"github.com/hyperjump/saiyo/internal/config"
	"github.com/hyperjump/saiyo/internal/embedding"
	"github.com/hyperjump/saiyo/internal/indexer"
	"github.com/hyperjump/saiyo/internal/keyword"
	"github.com/hyperjump/saiyo/internal/search"
	"github.com/hyperjump/saiyo/internal/storage"
	"github.com/hyperjump/saiyo/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Provider  *embedding.Provider
	Index     *vector.MemoryIndex
	Directory *keyword.BleveDirectory
	Engine    *search.Engine
	Manager   *indexer.Manager
	redis     *embedding.RedisCache
}

// Close releases every component. The index is not saved here; mutations save as they go.
func (c *Components) Close() {
	if c.Directory != nil {
		_ = c.Directory.Close()
	}
	if c.Provider != nil {
		_ = c.Provider.Close()
	}
	if c.redis != nil {
		c.redis.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	table, err := cfg.ActiveTable()
	if err != nil {
		return nil, err
	}
	mode, err := search.ParseMatchMode(cfg.Search.MatchMode)
	if err != nil {
		return nil, err
	}

	c.Storage, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	base, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s embedder: %w", cfg.Embedding.Provider, err)
	}
	cached, err := c.withCache(base, cfg, logger)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	c.Provider, err = embedding.NewProvider(cached, cfg.Embedding.Dimensions,
		embedding.WithProviderName(cfg.Embedding.Provider),
		embedding.WithTimeout(cfg.Embedding.Timeout),
		embedding.WithStrict(cfg.Embedding.Strict),
		embedding.WithConcurrency(cfg.Embedding.Concurrency),
		embedding.WithProviderLogger(logger),
	)
	if err != nil {
		_ = cached.Close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	c.Index, err = vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.Directory, err = keyword.NewBleveDirectory(cfg.Storage.DirectoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize candidate directory: %w", err)
	}

	categorizer, err := newCategorizer(cfg.Categorizer, logger)
	if err != nil {
		return nil, err
	}
	parser := aspect.NewParser(table, categorizer, aspect.WithParserLogger(logger))

	c.Engine = search.NewEngine(c.Index, parser, c.Provider, c.Storage,
		search.WithMatchMode(mode),
		search.WithLimits(cfg.Search.DefaultK, cfg.Search.MaxK),
		search.WithLogger(logger),
	)
	c.Manager = indexer.NewManager(c.Index, c.Provider, table, c.Storage,
		indexer.WithDirectory(c.Directory),
		indexer.WithIndexPath(cfg.Storage.IndexPath),
		indexer.WithLogger(logger),
	)
	if err := c.Manager.Restore(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore index: %w", err)
	}
	logger.Info("components initialized",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("weights_version", table.Version),
		zap.String("match_mode", string(mode)),
		zap.Int("live_entries", c.Index.Size()),
	)
	return c, nil
}

func newEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	case "onnx":
		return embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Dimensions), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

// withCache wraps remote and model embedders with Redis when configured, or an in-process LRU.
// The mock embedder is cheap and stays uncached.
func (c *Components) withCache(e embedding.Embedder, cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	if cfg.Embedding.Provider == "mock" {
		return e, nil
	}
	var store embedding.Store
	switch {
	case len(cfg.Cache.Redis.Addrs) > 0:
		rc, err := embedding.NewRedisCache(embedding.RedisCacheConfig{
			Addrs:    cfg.Cache.Redis.Addrs,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      cfg.Cache.Redis.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		c.redis = rc
		store = rc
	case cfg.Embedding.CacheSize > 0:
		store = embedding.NewEmbeddingCache(cfg.Embedding.CacheSize)
	default:
		return e, nil
	}
	return embedding.NewCachedEmbedder(e, store, cfg.Embedding.Provider+"/"+cfg.Embedding.Model, logger), nil
}

func newCategorizer(cfg config.CategorizerConfig, logger *zap.Logger) (aspect.TextCategorizer, error) {
	if !cfg.Enabled {
		return categorize.Disabled{}, nil
	}
	llm, err := categorize.New(categorize.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	}, categorize.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize categorizer: %w", err)
	}
	return llm, nil
}

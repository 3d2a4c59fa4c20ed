package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	"github.com/kailas-cloud/clinrag/internal/config"
	dbRedis "github.com/kailas-cloud/clinrag/internal/db/redis"
	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/metrics"
	"github.com/kailas-cloud/clinrag/internal/repository/chunkgraph"
	"github.com/kailas-cloud/clinrag/internal/repository/embcache"
	"github.com/kailas-cloud/clinrag/internal/repository/memgraph"
	"github.com/kailas-cloud/clinrag/internal/repository/neo4jgraph"
	"github.com/kailas-cloud/clinrag/internal/repository/pggraph"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
	"github.com/kailas-cloud/clinrag/internal/transport/local"
	openaiEmb "github.com/kailas-cloud/clinrag/internal/transport/openai"
	"github.com/kailas-cloud/clinrag/internal/transport/rerank"
	embeddinguc "github.com/kailas-cloud/clinrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/clinrag/internal/usecase/health"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
	"github.com/kailas-cloud/clinrag/internal/usecase/retrieve"
)

// backend is what every graph store offers the composition root.
type backend interface {
	ingest.Store
	retrieve.Store
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
}

// app holds the wired services. Model state is built once here and shared.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     backend
	chunker   *chunking.Chunker
	generator *embeddinguc.Generator
	ingest    *ingest.Service
	retrieve  *retrieve.Service
	health    *healthuc.Service
	closers   []func()
}

// Close releases backend connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// newApp is the composition root: store, embedder chain, chunker and services.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterHTTPMetrics()

	a := &app{cfg: cfg, logger: logger}

	store, redisStore, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	if err := store.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	tok, err := tokenizer.New(cfg.Tokenizer.Kind, cfg.Tokenizer.Encoding)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}

	policy, err := embeddinguc.ParseOverflowPolicy(cfg.Embedding.OverflowPolicy)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder := buildEmbedder(cfg.Embedding, cfg.Database.KeyPrefix, redisStore, logger)
	a.generator = embeddinguc.NewGenerator(embedder, tok, logger).
		WithBatchSize(cfg.Embedding.BatchSize).
		WithContextWindow(cfg.Embedding.ContextWindow).
		WithOverflowPolicy(policy).
		WithContextualPrefix(cfg.Embedding.PrefixEnabled()).
		WithQueryInstruction(cfg.Embedding.QueryInstruction)

	a.chunker = chunking.New(tok, chunkingConfigs(cfg.Chunking), logger)

	a.ingest = ingest.New(a.chunker, a.generator, store, logger).
		WithWorkers(cfg.Ingest.Workers).
		WithMaxBatchSize(cfg.Ingest.MaxBatchSize)

	ce, rerankHealth := buildCrossEncoder(cfg.Rerank, logger)
	a.retrieve = retrieve.New(store, a.generator, ce, logger).
		WithTimeout(time.Duration(cfg.Retrieval.TimeoutMs) * time.Millisecond)

	a.health = healthuc.New(store, embedder)
	if rerankHealth != nil {
		a.health = a.health.WithRerank(rerankHealth)
	}

	logger.Info("clinrag components ready",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("tokenizer", cfg.Tokenizer.Kind),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("rerank_provider", cfg.Rerank.Provider),
	)
	return a, nil
}

// openBackend connects the configured graph store. The redis KV store is returned
// separately so the embedding cache can share the connection.
func (a *app) openBackend(ctx context.Context) (backend, *dbRedis.Store, error) {
	cfg := a.cfg.Database
	dims := a.cfg.Embedding.Dimensions
	ready := time.Duration(cfg.ReadinessTimeout) * time.Second

	switch cfg.Driver {
	case "memory":
		return memgraph.New(), nil, nil

	case "redis":
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create redis store: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		if err := rs.WaitForReady(ctx, ready); err != nil {
			return nil, nil, fmt.Errorf("redis not ready: %w", err)
		}
		store := chunkgraph.New(rs, cfg.KeyPrefix, dims).WithHNSW(chunkgraph.HNSWConfig{
			M:           cfg.HNSWM,
			EFConstruct: cfg.HNSWEFConstruct,
			EFRuntime:   cfg.HNSWEFRuntime,
		})
		return store, rs, nil

	case "neo4j":
		driver, err := neo4jgraph.NewDriver(cfg.URI, cfg.Username, cfg.Password)
		if err != nil {
			return nil, nil, err
		}
		store := neo4jgraph.New(driver, dims)
		a.closers = append(a.closers, func() { _ = store.Close(context.Background()) })
		if err := pingWithin(ctx, store, ready); err != nil {
			return nil, nil, fmt.Errorf("neo4j not ready: %w", err)
		}
		return store, nil, nil

	case "postgres":
		pool, err := pggraph.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, pool.Close)
		store := pggraph.New(pool, dims, a.logger)
		if err := pingWithin(ctx, store, ready); err != nil {
			return nil, nil, fmt.Errorf("postgres not ready: %w", err)
		}
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func pingWithin(ctx context.Context, p interface{ Ping(context.Context) error }, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return p.Ping(ctx)
}

// buildEmbedder assembles the decorator chain: provider -> cache -> throttle.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	keyPrefix string,
	kv *dbRedis.Store,
	logger *zap.Logger,
) *embeddinguc.InstrumentedEmbedder {
	var base domain.Embedder
	switch cfg.Provider {
	case "openai":
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:     logger,
		})
	default:
		base = local.NewEmbedder(cfg.Dimensions)
	}

	embedder := base
	if cfg.Cache && kv != nil {
		ns := embcache.Namespace(keyPrefix, cfg.Model, cfg.Dimensions)
		embedder = embcache.New(base, kv, ns, logger).
			WithTTL(time.Duration(cfg.CacheTTLSec) * time.Second).
			WithCounter(metrics.EmbeddingCacheTotal)
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, embeddinguc.NewLimiter(cfg.RequestsPerSecond), logger,
	)
}

// buildCrossEncoder returns the reranker and, for remote ones, its health check.
func buildCrossEncoder(cfg config.RerankConfig, logger *zap.Logger) (domain.CrossEncoder, healthuc.RerankChecker) {
	if cfg.Provider == "http" {
		c := rerank.NewClient(rerank.Config{
			URL:     cfg.URL,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		return c, c
	}
	return rerank.NewLexical(), nil
}

func chunkingConfigs(c config.ChunkingConfig) chunking.Configs {
	conv := func(b config.ChunkBounds) chunking.Config {
		return chunking.Config{
			TargetTokens:  b.TargetTokens,
			MinTokens:     b.MinTokens,
			MaxTokens:     b.MaxTokens,
			OverlapTokens: b.OverlapTokens,
		}
	}
	return chunking.Configs{
		Guideline:  conv(c.Guideline),
		Calculator: conv(c.Calculator),
		Literature: conv(c.Literature),
	}
}

// retrievalDefaults maps config to the options every request starts from.
// Unset hybrid, rerank and mmr mean enabled.
func retrievalDefaults(r config.RetrievalConfig) request.Options {
	m := mode.Hybrid
	if r.Hybrid != nil && !*r.Hybrid {
		m = mode.Semantic
	}
	return request.Options{
		K:                   r.K,
		RerankCandidates:    r.RerankCandidates,
		SimilarityThreshold: r.SimilarityThreshold,
		Mode:                m,
		VectorWeight:        r.VectorWeight,
		KeywordWeight:       r.KeywordWeight,
		Fusion:              request.Fusion(r.Fusion),
		Rerank:              r.Rerank == nil || *r.Rerank,
		MMR:                 r.MMR == nil || *r.MMR,
		Lambda:              r.Lambda,
		Expand:              r.Expand,
		ExpansionHops:       r.ExpansionHops,
	}
}

package clinrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	dbRedis "github.com/kailas-cloud/clinrag/internal/db/redis"
	"github.com/kailas-cloud/clinrag/internal/domain"
	dombatch "github.com/kailas-cloud/clinrag/internal/domain/batch"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/repository/chunkgraph"
	"github.com/kailas-cloud/clinrag/internal/repository/memgraph"
	"github.com/kailas-cloud/clinrag/internal/repository/neo4jgraph"
	"github.com/kailas-cloud/clinrag/internal/repository/pggraph"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
	"github.com/kailas-cloud/clinrag/internal/transport/local"
	"github.com/kailas-cloud/clinrag/internal/transport/rerank"
	embeddinguc "github.com/kailas-cloud/clinrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/clinrag/internal/usecase/health"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
	"github.com/kailas-cloud/clinrag/internal/usecase/retrieve"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "clinrag:"

	defaultSimilarityThreshold = 0.2
)

// Internal interfaces for substitution in tests.
type ingestUseCase interface {
	Ingest(ctx context.Context, in ingest.Input) (ingest.Report, error)
	IngestBatch(ctx context.Context, items []ingest.Input) []dombatch.Result
	Delete(ctx context.Context, id string) error
	Preview(ctx context.Context, in ingest.Input) (chunking.Result, error)
}

type retrieveUseCase interface {
	Retrieve(ctx context.Context, req request.Request) ([]result.Hit, error)
}

// backend is the graph store behind the client.
type backend interface {
	ingest.Store
	retrieve.Store
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
}

// Client is the clinrag SDK entry point.
type Client struct {
	store       backend
	ingestSvc   ingestUseCase
	retrieveSvc retrieveUseCase
	healthSvc   healthUseCase
	defaults    request.Options
	closers     []func()
	obs         *observer
}

// New creates a Client, connects the graph store and prepares its schema.
// The provided context is used for the readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:           "memory",
		keyPrefix:        defaultKeyPrefix,
		vectorDimensions: domain.DefaultDimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.vectorDimensions <= 0 {
		return nil, errors.New("clinrag: vector dimensions must be positive")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs}
	store, err := c.createStore(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.store = store

	if err := store.EnsureSchema(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("clinrag: ensure schema: %w", err)
	}

	if err := c.wire(cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) createStore(ctx context.Context, cfg *clientConfig) (backend, error) {
	switch cfg.driver {
	case "memory":
		return memgraph.New(), nil

	case "redis":
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Username: cfg.username,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("clinrag: connect redis: %w", err)
		}
		c.closers = append(c.closers, rs.Close)
		if err := rs.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return nil, fmt.Errorf("clinrag: redis not ready: %w", err)
		}
		return chunkgraph.New(rs, cfg.keyPrefix, cfg.vectorDimensions), nil

	case "neo4j":
		driver, err := neo4jgraph.NewDriver(cfg.uri, cfg.username, cfg.password)
		if err != nil {
			return nil, fmt.Errorf("clinrag: connect neo4j: %w", err)
		}
		store := neo4jgraph.New(driver, cfg.vectorDimensions)
		c.closers = append(c.closers, func() { _ = store.Close(context.Background()) })
		if err := ping(ctx, store); err != nil {
			return nil, fmt.Errorf("clinrag: neo4j not ready: %w", err)
		}
		return store, nil

	case "postgres":
		pool, err := pggraph.NewPool(ctx, cfg.dsn)
		if err != nil {
			return nil, fmt.Errorf("clinrag: connect postgres: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		store := pggraph.New(pool, cfg.vectorDimensions, zap.NewNop())
		if err := ping(ctx, store); err != nil {
			return nil, fmt.Errorf("clinrag: postgres not ready: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("clinrag: unknown driver %q", cfg.driver)
	}
}

func ping(ctx context.Context, p interface{ Ping(context.Context) error }) error {
	ctx, cancel := context.WithTimeout(ctx, defaultReadinessTimeout)
	defer cancel()
	return p.Ping(ctx)
}

// wire builds the tokenizer, embedding chain and services over the store.
func (c *Client) wire(cfg *clientConfig) error {
	logger := zap.NewNop()

	var tok tokenizer.Tokenizer = tokenizer.NewLexical()
	if cfg.tiktoken != "" {
		t, err := tokenizer.NewTiktoken(cfg.tiktoken)
		if err != nil {
			return fmt.Errorf("clinrag: tokenizer: %w", err)
		}
		tok = t
	}

	var base domain.Embedder = local.NewEmbedder(cfg.vectorDimensions)
	provider := "hashing"
	if cfg.embedder != nil {
		base = &embedderAdapter{inner: cfg.embedder}
		provider = "sdk"
	}
	embedder := embeddinguc.NewInstrumentedEmbedder(base, provider, "", nil, logger)
	gen := embeddinguc.NewGenerator(embedder, tok, logger)

	var ce domain.CrossEncoder = rerank.NewLexical()
	if cfg.crossEncoder != nil {
		ce = cfg.crossEncoder
	}

	chunker := chunking.New(tok, chunking.DefaultConfigs(), logger)
	c.ingestSvc = ingest.New(chunker, gen, c.store, logger).
		WithWorkers(cfg.workers).
		WithMaxBatchSize(cfg.maxBatchSize)
	c.retrieveSvc = retrieve.New(c.store, gen, ce, logger)
	c.healthSvc = healthuc.New(c.store, embedder)
	c.defaults = request.Options{SimilarityThreshold: defaultSimilarityThreshold, Rerank: true, MMR: true}
	return nil
}

// Close releases the store connections.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Ping checks the graph store.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return fmt.Errorf("clinrag: client not connected: %w", ErrStorageUnavailable)
	}
	return c.store.Ping(ctx)
}

// Documents returns the document ingestion service.
func (c *Client) Documents() *DocumentService {
	return &DocumentService{svc: c.ingestSvc, obs: c.obs}
}

// Retriever returns the retrieval service.
func (c *Client) Retriever() *RetrieverService {
	return &RetrieverService{svc: c.retrieveSvc, defaults: c.defaults, obs: c.obs}
}

// embedderAdapter wraps a public Embedder to satisfy domain.Embedder and, when the
// wrapped value batches, domain.BatchEmbedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

package clinrag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "memory", "redis", "neo4j" or "postgres"
	addrs     []string
	password  string
	uri       string
	username  string
	dsn       string
	keyPrefix string

	embedder     Embedder
	crossEncoder CrossEncoder

	vectorDimensions int
	tiktoken         string
	maxBatchSize     int
	workers          int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithMemory keeps the graph in process memory (default).
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithRedis stores the graph in Redis 8+ with the query engine.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithNeo4j stores the graph in Neo4j 5.
func WithNeo4j(uri, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "neo4j"
		c.uri = uri
		c.username = username
		c.password = password
	})
}

// WithPostgres stores the graph in PostgreSQL with pgvector.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	})
}

// WithKeyPrefix scopes Redis keys. Default: "clinrag:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEmbedder sets the embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCrossEncoder sets the reranker. Default: lexical overlap scoring.
func WithCrossEncoder(ce CrossEncoder) Option {
	return optionFunc(func(c *clientConfig) {
		c.crossEncoder = ce
	})
}

// WithVectorDimensions sets the embedding width. Default: 768.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithTiktoken counts tokens with a tiktoken encoding instead of the lexical tokenizer.
func WithTiktoken(encoding string) Option {
	return optionFunc(func(c *clientConfig) {
		c.tiktoken = encoding
	})
}

// WithMaxBatchSize sets the maximum number of documents per batch.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithWorkers sets how many documents a batch ingests concurrently. Default: 4.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

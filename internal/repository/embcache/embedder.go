// Package embcache memoizes provider embeddings in the key-value store so that
// re-ingesting an unchanged guideline does not pay for the same vectors twice.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/db"
	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/logger"
)

// store is the slice of db.Store the cache needs.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder serves vectors from the store and falls through to inner on a miss.
type CachedEmbedder struct {
	inner     domain.Embedder
	store     store
	namespace string
	ttl       time.Duration
	counter   *prometheus.CounterVec
	logger    *zap.Logger
}

// Namespace scopes cache keys to one model and width, so switching either never
// serves a stale vector.
func Namespace(keyPrefix, model string, dims int) string {
	return fmt.Sprintf("%semb_cache:%s:%d:", keyPrefix, model, dims)
}

// New wraps inner. Entries never expire until WithTTL is set.
func New(inner domain.Embedder, s store, namespace string, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:     inner,
		store:     s,
		namespace: namespace,
		logger:    logger,
	}
}

// WithTTL sets the expiry of new entries; zero keeps them forever.
func (c *CachedEmbedder) WithTTL(ttl time.Duration) *CachedEmbedder {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// WithCounter records lookups in a counter vec labelled "result" (hit, miss).
func (c *CachedEmbedder) WithCounter(counter *prometheus.CounterVec) *CachedEmbedder {
	c.counter = counter
	return c
}

// Embed returns the cached vector with zero token usage, or the inner result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.remember(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed sends each distinct missing text to inner once, in a single batch.
// Token counts cover only what inner actually embedded.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	pending := make(map[string][]int)
	var misses []string

	for i, text := range texts {
		if idx, seen := pending[text]; seen {
			pending[text] = append(idx, i)
			continue
		}
		keys[i] = c.key(text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		pending[text] = []int{i}
		misses = append(misses, text)
	}

	if len(misses) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed batch: %w", err)
	}
	if len(res.Embeddings) != len(misses) {
		return domain.BatchEmbeddingResult{}, domain.NewEmbeddingFailure(fmt.Errorf(
			"inner returned %d vectors for %d texts", len(res.Embeddings), len(misses)))
	}

	for j, text := range misses {
		idx := pending[text]
		for _, i := range idx {
			out[i] = res.Embeddings[j]
		}
		c.remember(ctx, keys[idx[0]], res.Embeddings[j])
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.namespace + hex.EncodeToString(sum[:])
}

// lookup treats every store or decode failure as a miss.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			logger.FromContextOr(ctx, c.logger).Warn("Embedding cache read failed",
				zap.String("key", key), zap.Error(err))
		}
		c.count("miss")
		return nil, false
	}

	vec, err := decode(data)
	if err != nil {
		logger.FromContextOr(ctx, c.logger).Warn("Discarding corrupt embedding cache entry",
			zap.String("key", key), zap.Error(err))
		c.count("miss")
		return nil, false
	}
	c.count("hit")
	return vec, true
}

func (c *CachedEmbedder) remember(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.Set(ctx, key, encode(vec), c.ttl); err != nil {
		logger.FromContextOr(ctx, c.logger).Warn("Embedding cache write failed",
			zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.counter != nil {
		c.counter.WithLabelValues(result).Inc()
	}
}

// encode writes a uint32 width followed by little-endian float32 components.
func encode(v []float32) []byte {
	buf := make([]byte, 4+len(v)*4)
	binary.LittleEndian.PutUint32(buf, uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(f))
	}
	return buf
}

func decode(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("entry too short: %d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint32(data))
	if n == 0 || len(data) != 4+n*4 {
		return nil, fmt.Errorf("entry declares %d components in %d bytes", n, len(data))
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+i*4:]))
	}
	return vec, nil
}

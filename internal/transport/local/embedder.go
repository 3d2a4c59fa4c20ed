// Package local provides an in-process embedding provider for offline runs and tests.
package local

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

const bigramWeight = 0.5

// Embedder is a deterministic feature-hashing embedder. Every term and adjacent term
// pair is hashed into one of dims buckets with a hash-derived sign, and the result is
// L2-normalized, so texts sharing vocabulary land close in cosine space.
type Embedder struct {
	dims int
}

// NewEmbedder returns a hashing embedder producing dims-wide vectors.
func NewEmbedder(dims int) *Embedder {
	if dims <= 0 {
		dims = domain.DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Dimensions returns the vector width.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, domain.NewEmbeddingFailure(err)
	}
	vec, n := e.vector(text)
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: n, TotalTokens: n}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.BatchEmbeddingResult{}, domain.NewEmbeddingFailure(err)
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		vec, n := e.vector(t)
		out.Embeddings[i] = vec
		out.PromptTokens += n
		out.TotalTokens += n
	}
	return out, nil
}

// HealthCheck implements domain.HealthChecker; the local model is always available.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vector(text string) ([]float32, int) {
	vec := make([]float32, e.dims)
	terms := tokenizer.Terms(text)
	for i, t := range terms {
		e.add(vec, t, 1)
		if i > 0 {
			e.add(vec, terms[i-1]+" "+t, bigramWeight)
		}
	}
	return domain.Normalize(vec), len(terms)
}

func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(e.dims)
	if h>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

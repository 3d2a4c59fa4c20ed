package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/logger"
	"github.com/kailas-cloud/clinrag/internal/metrics"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// OverflowPolicy decides what happens to text longer than the model context window.
type OverflowPolicy string

const (
	// Truncate cuts the text at the window and logs the loss.
	Truncate OverflowPolicy = "truncate"
	// Pool embeds every window and mean-pools the vectors.
	Pool OverflowPolicy = "pool"
)

// ParseOverflowPolicy maps a config value to a policy; empty means Truncate.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Truncate:
		return Truncate, nil
	case Pool:
		return Pool, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

const (
	defaultBatchSize     = 32
	defaultContextWindow = domain.DefaultContextWindow
)

// Generator turns chunks and queries into vectors.
type Generator struct {
	embedder    domain.Embedder
	tok         tokenizer.Tokenizer
	logger      *zap.Logger
	batchSize   int
	window      int
	policy      OverflowPolicy
	prefix      bool
	instruction string
}

// NewGenerator creates a generator with the contextual prefix on and the truncate policy.
func NewGenerator(embedder domain.Embedder, tok tokenizer.Tokenizer, logger *zap.Logger) *Generator {
	return &Generator{
		embedder:  embedder,
		tok:       tok,
		logger:    logger,
		batchSize: defaultBatchSize,
		window:    defaultContextWindow,
		policy:    Truncate,
		prefix:    true,
	}
}

// WithBatchSize sets how many texts go into one provider call.
func (g *Generator) WithBatchSize(n int) *Generator {
	if n > 0 {
		g.batchSize = n
	}
	return g
}

// WithContextWindow sets the model context window in tokens.
func (g *Generator) WithContextWindow(n int) *Generator {
	if n > 0 {
		g.window = n
	}
	return g
}

// WithOverflowPolicy sets the context window policy.
func (g *Generator) WithOverflowPolicy(p OverflowPolicy) *Generator {
	g.policy = p
	return g
}

// WithContextualPrefix toggles the section/type/evidence prefix.
func (g *Generator) WithContextualPrefix(enabled bool) *Generator {
	g.prefix = enabled
	return g
}

// WithQueryInstruction sets text prepended to queries only.
func (g *Generator) WithQueryInstruction(s string) *Generator {
	g.instruction = s
	return g
}

// ContextualText is the text actually embedded for c.
func (g *Generator) ContextualText(c chunk.Chunk) string {
	if !g.prefix {
		return c.Content()
	}
	return ContextualText(c)
}

// ContextualText prefixes content with "Section: a > b | Type: t | Evidence: e",
// each part only when present, and a blank line.
func ContextualText(c chunk.Chunk) string {
	var parts []string
	if p := c.PathString(); p != "" {
		parts = append(parts, "Section: "+p)
	}
	if c.SemanticType() != "" {
		parts = append(parts, "Type: "+string(c.SemanticType()))
	}
	if c.EvidenceLevel() != "" {
		parts = append(parts, "Evidence: "+c.EvidenceLevel())
	}
	if len(parts) == 0 {
		return c.Content()
	}
	return strings.Join(parts, " | ") + "\n\n" + c.Content()
}

// span maps a chunk to its texts in the flattened batch.
type span struct{ start, n int }

// EmbedChunks returns copies of chunks carrying their vectors, in input order.
// Any provider failure abandons the whole set.
func (g *Generator) EmbedChunks(ctx context.Context, chunks []chunk.Chunk) ([]chunk.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	log := logger.FromContextOr(ctx, g.logger)

	var texts []string
	spans := make([]span, len(chunks))
	for i, c := range chunks {
		pieces := g.fit(log, c, g.ContextualText(c))
		spans[i] = span{start: len(texts), n: len(pieces)}
		texts = append(texts, pieces...)
	}

	vectors, err := g.embedBatched(ctx, texts)
	if err != nil {
		return nil, err
	}

	out := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		s := spans[i]
		var v []float32
		if s.n == 1 {
			v = domain.Normalize(vectors[s.start])
		} else {
			v = domain.MeanPool(vectors[s.start : s.start+s.n])
		}
		out[i] = c.WithEmbedding(v)
	}
	return out, nil
}

// EmbedQuery embeds raw query text; queries never get the contextual prefix.
func (g *Generator) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	text := g.instruction + query
	if g.tok.Count(text) > g.window {
		text = g.tok.Truncate(text, g.window)
	}
	res, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, wrapFailure(err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return domain.Normalize(res.Embedding), nil
}

// fit applies the overflow policy and returns one or more texts to embed.
func (g *Generator) fit(log *zap.Logger, c chunk.Chunk, text string) []string {
	tokens := g.tok.Count(text)
	if tokens <= g.window {
		return []string{text}
	}
	if g.policy == Pool {
		if w := g.tok.Windows(text, g.window); len(w) > 0 {
			return w
		}
	}

	metrics.EmbeddingTruncationsTotal.WithLabelValues(string(c.SemanticType())).Inc()
	if c.SemanticType() == chunk.CalculatorAlgorithm {
		metrics.AlgorithmTruncationsTotal.Inc()
	}
	log.Warn("Chunk truncated at embedding context window",
		zap.String("chunk_id", c.ID()),
		zap.String("semantic_type", string(c.SemanticType())),
		zap.Int("tokens", tokens),
		zap.Int("lost_tokens", tokens-g.window),
	)
	return []string{g.tok.Truncate(text, g.window)}
}

func (g *Generator) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for offset := 0; offset < len(texts); offset += g.batchSize {
		end := min(offset+g.batchSize, len(texts))

		res, err := domain.EmbedAll(ctx, g.embedder, texts[offset:end])
		if err != nil {
			return nil, wrapFailure(err)
		}
		domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
		if len(res.Embeddings) != end-offset {
			return nil, domain.NewEmbeddingFailure(fmt.Errorf(
				"provider returned %d vectors for %d texts", len(res.Embeddings), end-offset))
		}
		out = append(out, res.Embeddings...)
	}
	return out, nil
}

// wrapFailure marks provider errors retryable; a dimension mismatch is a
// configuration error and stays as is.
func wrapFailure(err error) error {
	if errors.Is(err, domain.ErrVectorDimMismatch) {
		return fmt.Errorf("embed: %w", err)
	}
	return domain.NewEmbeddingFailure(fmt.Errorf("embed: %w", err))
}

package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/metrics"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
	"github.com/kailas-cloud/clinrag/internal/transport/local"
)

// recordingEmbedder returns [len(text), 1] for every text and remembers each batch.
type recordingEmbedder struct {
	batches [][]string
	singles []string
	err     error
	dimErr  bool
}

func lengthVector(text string) []float32 { return []float32{float32(len(text)), 1} }

func (r *recordingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	r.singles = append(r.singles, text)
	if r.err != nil {
		return domain.EmbeddingResult{}, r.err
	}
	return domain.EmbeddingResult{Embedding: lengthVector(text)}, nil
}

func (r *recordingEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r.batches = append(r.batches, append([]string(nil), texts...))
	if r.err != nil {
		return domain.BatchEmbeddingResult{}, r.err
	}
	if r.dimErr {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("got 3 dims: %w", domain.ErrVectorDimMismatch)
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		out.Embeddings[i] = lengthVector(t)
	}
	return out, nil
}

func newChunk(ordinal int, content string, path []string, st chunk.SemanticType, level string) chunk.Chunk {
	return chunk.New(chunk.Params{
		DocumentID:    "doc-1",
		DocumentType:  document.Guideline,
		Ordinal:       ordinal,
		Content:       content,
		SectionPath:   path,
		SemanticType:  st,
		EvidenceLevel: level,
	}, tokenizer.NewLexical())
}

func TestContextualText(t *testing.T) {
	c := newChunk(0, "Offer active surveillance.", []string{"Localized Disease", "Low Risk"}, chunk.Recommendation, "A")

	got := ContextualText(c)
	want := "Section: Localized Disease > Low Risk | Type: recommendation | Evidence: A\n\nOffer active surveillance."
	if got != want {
		t.Errorf("ContextualText:\ngot:  %q\nwant: %q", got, want)
	}

	bare := newChunk(0, "Plain text.", nil, chunk.General, "")
	if got := ContextualText(bare); got != "Type: general\n\nPlain text." {
		t.Errorf("unexpected text without path: %q", got)
	}
}

func TestGenerator_PrefixDisabled(t *testing.T) {
	inner := &recordingEmbedder{}
	g := NewGenerator(inner, tokenizer.NewLexical(), zap.NewNop()).WithContextualPrefix(false)

	c := newChunk(0, "Offer active surveillance.", []string{"Low Risk"}, chunk.Recommendation, "A")
	if _, err := g.EmbedChunks(context.Background(), []chunk.Chunk{c}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batches[0][0] != "Offer active surveillance." {
		t.Errorf("expected raw content, got %q", inner.batches[0][0])
	}
}

func TestGenerator_EmbedChunks_Batches(t *testing.T) {
	inner := &recordingEmbedder{}
	g := NewGenerator(inner, tokenizer.NewLexical(), zap.NewNop()).WithBatchSize(2)

	chunks := make([]chunk.Chunk, 5)
	for i := range chunks {
		chunks[i] = newChunk(i, fmt.Sprintf("Chunk number %d.", i), []string{"S"}, chunk.General, "")
	}

	out, err := g.EmbedChunks(context.Background(), chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.batches) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(inner.batches))
	}
	if len(out) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(out))
	}
	for i, c := range out {
		if c.ID() != chunks[i].ID() {
			t.Errorf("chunk %d out of order", i)
		}
		if n := norm(c.Embedding()); math.Abs(n-1) > 1e-6 {
			t.Errorf("chunk %d not normalized: %g", i, n)
		}
	}
}

func TestGenerator_Truncate(t *testing.T) {
	inner := &recordingEmbedder{}
	tok := tokenizer.NewLexical()
	g := NewGenerator(inner, tok, zap.NewNop()).
		WithContextWindow(4).
		WithContextualPrefix(false)

	c := newChunk(0, "one two three four five six seven eight nine ten", nil, chunk.CalculatorAlgorithm, "")

	label := metrics.EmbeddingTruncationsTotal.WithLabelValues(string(chunk.CalculatorAlgorithm))
	before := testutil.ToFloat64(label)
	beforeAlg := testutil.ToFloat64(metrics.AlgorithmTruncationsTotal)

	if _, err := g.EmbedChunks(context.Background(), []chunk.Chunk{c}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inner.batches[0][0]; got != "one two three four" {
		t.Errorf("expected truncated text, got %q", got)
	}
	if d := testutil.ToFloat64(label) - before; d != 1 {
		t.Errorf("expected truncation counter +1, got %g", d)
	}
	if d := testutil.ToFloat64(metrics.AlgorithmTruncationsTotal) - beforeAlg; d != 1 {
		t.Errorf("expected algorithm truncation counter +1, got %g", d)
	}
}

func TestGenerator_Pool(t *testing.T) {
	inner := &recordingEmbedder{}
	g := NewGenerator(inner, tokenizer.NewLexical(), zap.NewNop()).
		WithContextWindow(4).
		WithContextualPrefix(false).
		WithOverflowPolicy(Pool)

	c := newChunk(0, "one two three four five six seven eight nine ten", nil, chunk.General, "")
	short := newChunk(1, "short text", nil, chunk.General, "")

	out, err := g.EmbedChunks(context.Background(), []chunk.Chunk{c, short})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"one two three four", "five six seven eight", "nine ten", "short text"}
	got := inner.batches[0]
	if len(got) != len(want) {
		t.Fatalf("expected %d texts, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("text %d = %q, want %q", i, got[i], want[i])
		}
	}

	pooled := domain.MeanPool([][]float32{lengthVector(want[0]), lengthVector(want[1]), lengthVector(want[2])})
	assertVectorsEqual(t, out[0].Embedding(), pooled)
	assertVectorsEqual(t, out[1].Embedding(), domain.Normalize(lengthVector("short text")))
}

func TestGenerator_Deterministic(t *testing.T) {
	g := NewGenerator(local.NewEmbedder(768), tokenizer.NewLexical(), zap.NewNop())
	c := newChunk(0, "Clinicians should offer active surveillance to low-risk patients.",
		[]string{"Localized Disease"}, chunk.Recommendation, "A")

	first, err := g.EmbedChunks(context.Background(), []chunk.Chunk{c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := g.EmbedChunks(context.Background(), []chunk.Chunk{c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertVectorsEqual(t, first[0].Embedding(), second[0].Embedding())
}

func TestGenerator_ProviderFailure(t *testing.T) {
	inner := &recordingEmbedder{err: errors.New("connection refused")}
	g := NewGenerator(inner, tokenizer.NewLexical(), zap.NewNop())

	_, err := g.EmbedChunks(context.Background(), []chunk.Chunk{newChunk(0, "text", nil, chunk.General, "")})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Error("provider failure must be retryable")
	}
}

func TestGenerator_DimensionMismatchNotRetryable(t *testing.T) {
	inner := &recordingEmbedder{dimErr: true}
	g := NewGenerator(inner, tokenizer.NewLexical(), zap.NewNop())

	_, err := g.EmbedChunks(context.Background(), []chunk.Chunk{newChunk(0, "text", nil, chunk.General, "")})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if domain.IsRetryable(err) {
		t.Error("dimension mismatch must not be retryable")
	}
}

func TestGenerator_EmbedQuery(t *testing.T) {
	inner := &recordingEmbedder{}
	g := NewGenerator(inner, tokenizer.NewLexical(), zap.NewNop()).WithQueryInstruction("query: ")

	v, err := g.EmbedQuery(context.Background(), "active surveillance eligibility")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.singles[0] != "query: active surveillance eligibility" {
		t.Errorf("unexpected query text %q", inner.singles[0])
	}
	if n := norm(v); math.Abs(n-1) > 1e-6 {
		t.Errorf("query vector not normalized: %g", n)
	}
}

func TestGenerator_RecordsUsage(t *testing.T) {
	g := NewGenerator(local.NewEmbedder(64), tokenizer.NewLexical(), zap.NewNop()).WithBatchSize(1)
	ctx, usage := domain.NewContextWithUsage(context.Background())

	chunks := []chunk.Chunk{
		newChunk(0, "Offer active surveillance.", nil, chunk.Recommendation, "A"),
		newChunk(1, "Repeat biopsy within a year.", nil, chunk.Recommendation, "B"),
	}
	if _, err := g.EmbedChunks(ctx, chunks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.EmbedQuery(ctx, "surveillance"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.Calls != 3 || !usage.Used {
		t.Errorf("expected 3 recorded calls, got %d", usage.Calls)
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	for in, want := range map[string]OverflowPolicy{"": Truncate, "truncate": Truncate, "POOL": Pool} {
		got, err := ParseOverflowPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseOverflowPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOverflowPolicy("drop"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func assertVectorsEqual(t *testing.T, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("component %d = %g, want %g", i, got[i], want[i])
		}
	}
}

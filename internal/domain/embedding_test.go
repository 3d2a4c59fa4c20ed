package domain

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batches int
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batches++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.result.Embedding
	}
	return BatchEmbeddingResult{Embeddings: out}, s.err
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "query: ")

	result, err := emb.Embed(context.Background(), "psa threshold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "query: psa threshold" {
		t.Errorf("expected prepended text, got %q", inner.got[0])
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "query: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbedAll_PrefersBatch(t *testing.T) {
	be := &stubBatchEmbedder{stubEmbedder: stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}}}}

	res, err := EmbedAll(context.Background(), be, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if be.batches != 1 || len(be.got) != 0 {
		t.Errorf("expected one batch call, got batches=%d singles=%d", be.batches, len(be.got))
	}
	if len(res.Embeddings) != 3 {
		t.Errorf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
}

func TestEmbedAll_Fallback(t *testing.T) {
	e := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, TotalTokens: 2}}

	res, err := EmbedAll(context.Background(), e, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.got) != 2 || res.TotalTokens != 4 {
		t.Errorf("expected 2 single calls and 4 tokens, got %d / %d", len(e.got), res.TotalTokens)
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("unexpected normalized vector %v", v)
	}

	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector must stay zero, got %v", zero)
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: got %g", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: got %g", got)
	}
	if got := Cosine([]float32{1}, []float32{1, 0}); got != 0 {
		t.Errorf("length mismatch must give 0, got %g", got)
	}
}

func TestMeanPool(t *testing.T) {
	v := MeanPool([][]float32{{1, 0}, {0, 1}})
	want := float32(1 / math.Sqrt2)
	if math.Abs(float64(v[0]-want)) > 1e-6 || math.Abs(float64(v[1]-want)) > 1e-6 {
		t.Errorf("unexpected pooled vector %v", v)
	}
	if MeanPool(nil) != nil {
		t.Error("empty input must give nil")
	}
}

package retrieve

import (
	"math"
	"testing"

	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
)

func TestMMR_DiversifiesAndBounds(t *testing.T) {
	a := mkChunk("d", document.Guideline, 0, "a").WithEmbedding([]float32{1, 0})
	dup := mkChunk("d", document.Guideline, 1, "b").WithEmbedding([]float32{1, 0})
	other := mkChunk("d", document.Guideline, 2, "c").WithEmbedding([]float32{0, 1})

	hits := []result.Hit{
		result.New(a, 0.9, result.SourceVector),
		result.New(dup, 0.85, result.SourceVector),
		result.New(other, 0.6, result.SourceVector),
	}
	got := mmr(hits, 2, 0.5)
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if got[0].ID() != a.ID() || got[1].ID() != other.ID() {
		t.Errorf("expected a then the dissimilar chunk, got %s, %s", got[0].ID(), got[1].ID())
	}
	if got[1].Score() != 0.6 {
		t.Errorf("reported score must stay the relevance, got %g", got[1].Score())
	}

	seen := map[string]bool{}
	for _, h := range got {
		if seen[h.ID()] {
			t.Fatalf("duplicate %s", h.ID())
		}
		seen[h.ID()] = true
	}
}

func TestMMR_LambdaOneIsRelevanceOrder(t *testing.T) {
	a := mkChunk("d", document.Guideline, 0, "a").WithEmbedding([]float32{1, 0})
	dup := mkChunk("d", document.Guideline, 1, "b").WithEmbedding([]float32{1, 0})
	other := mkChunk("d", document.Guideline, 2, "c").WithEmbedding([]float32{0, 1})
	hits := []result.Hit{
		result.New(a, 0.9, result.SourceVector),
		result.New(dup, 0.85, result.SourceVector),
		result.New(other, 0.6, result.SourceVector),
	}
	got := mmr(hits, 2, 1)
	if got[1].ID() != dup.ID() {
		t.Errorf("lambda=1 must ignore diversity")
	}
}

func TestSimilarity_JaccardFallback(t *testing.T) {
	a := mkChunk("d", document.Guideline, 0, "active surveillance")
	b := mkChunk("d", document.Guideline, 1, "active surveillance")
	if s := similarity(result.New(a, 0, ""), result.New(b, 0, "")); s != 1 {
		t.Errorf("identical text without embeddings: similarity %g", s)
	}
}

func TestMMR_NoOpWhenShort(t *testing.T) {
	a := mkChunk("d", document.Guideline, 0, "a")
	hits := []result.Hit{result.New(a, 1, result.SourceVector)}
	if got := mmr(hits, 5, 0.5); len(got) != 1 {
		t.Errorf("unexpected %v", got)
	}
}

func TestMMR_RRFScoresKeepRelevance(t *testing.T) {
	top := mkChunk("d", document.Guideline, 0, "top").WithEmbedding([]float32{1, 0, 0})
	// cosine 0.4 to the top chunk
	second := mkChunk("d", document.Guideline, 1, "second").
		WithEmbedding([]float32{0.4, float32(math.Sqrt(0.84)), 0})

	vec := []graph.Scored{scored(top, 0.95), scored(second, 0.93)}
	for i := 0; i < 8; i++ {
		c := mkChunk("d", document.Guideline, 2+i, "distractor").WithEmbedding([]float32{0, 0, 1})
		vec = append(vec, scored(c, 0.2-float64(i)*0.01))
	}
	kw := []graph.Scored{scored(top, 3.1), scored(second, 2.8)}

	fused := fuseRRF(vec, kw)
	got := mmr(fused, 2, 0.5)

	if got[0].ID() != top.ID() || got[1].ID() != second.ID() {
		t.Fatalf("expected top then second, got ordinals %d, %d",
			got[0].Chunk().Ordinal(), got[1].Chunk().Ordinal())
	}
	if want := 2.0 / 62; math.Abs(got[1].Score()-want) > 1e-12 {
		t.Errorf("reported score must stay the fused RRF score %g, got %g", want, got[1].Score())
	}
}

func TestNormalizedScores(t *testing.T) {
	a := mkChunk("d", document.Guideline, 0, "a")
	b := mkChunk("d", document.Guideline, 1, "b")
	c := mkChunk("d", document.Guideline, 2, "c")

	got := normalizedScores([]result.Hit{
		result.New(a, 0.03, result.SourceHybrid),
		result.New(b, 0.02, result.SourceHybrid),
		result.New(c, 0.01, result.SourceHybrid),
	})
	if got[a.ID()] != 1 || got[c.ID()] != 0 || math.Abs(got[b.ID()]-0.5) > 1e-9 {
		t.Errorf("unexpected normalization %v", got)
	}

	same := normalizedScores([]result.Hit{result.New(a, 0.5, ""), result.New(b, 0.5, "")})
	if same[a.ID()] != 1 || same[b.ID()] != 1 {
		t.Errorf("equal scores must normalize to 1, got %v", same)
	}
}

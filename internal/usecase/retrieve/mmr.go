package retrieve

import (
	"math"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// mmr greedily picks k hits maximizing lambda*relevance - (1-lambda)*maxSim(selected).
// Relevance is the score min-max normalized over hits, so it weighs the same against
// similarity whatever the fusion scale. Reported scores are left unchanged.
func mmr(hits []result.Hit, k int, lambda float64) []result.Hit {
	if len(hits) <= k {
		return hits
	}
	remaining := append([]result.Hit(nil), hits...)
	selected := make([]result.Hit, 0, k)
	relevance := normalizedScores(hits)

	for len(selected) < k && len(remaining) > 0 {
		best, bestVal := 0, math.Inf(-1)
		for i, h := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				maxSim = max(maxSim, similarity(h, s))
			}
			if v := lambda*relevance[h.ID()] - (1-lambda)*maxSim; v > bestVal {
				best, bestVal = i, v
			}
		}
		selected = append(selected, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return selected
}

// normalizedScores maps hit ids to min-max normalized scores; equal scores map to 1.
func normalizedScores(hits []result.Hit) map[string]float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, h := range hits {
		lo, hi = min(lo, h.Score()), max(hi, h.Score())
	}
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		if hi == lo {
			out[h.ID()] = 1
			continue
		}
		out[h.ID()] = (h.Score() - lo) / (hi - lo)
	}
	return out
}

// similarity is the embedding cosine, or term Jaccard when either embedding is missing.
func similarity(a, b result.Hit) float64 {
	ea, eb := a.Chunk().Embedding(), b.Chunk().Embedding()
	if len(ea) > 0 && len(ea) == len(eb) {
		return domain.Cosine(ea, eb)
	}
	return tokenizer.Jaccard(a.Chunk().Content(), b.Chunk().Content())
}

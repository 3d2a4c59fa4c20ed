package retrieve

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
)

// rerankWeight is the share of the cross-encoder score in the blended score.
const rerankWeight = 0.5

// rerank blends cross-encoder scores into hits and re-sorts. The returned slice
// holds exactly the input hits.
func rerank(ctx context.Context, ce domain.CrossEncoder, query string, hits []result.Hit) ([]result.Hit, error) {
	if len(hits) == 0 {
		return hits, nil
	}
	passages := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = h.Chunk().Content()
	}

	scores, err := ce.Score(ctx, query, passages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankUnavailable, err)
	}
	if len(scores) != len(hits) {
		return nil, fmt.Errorf("%w: %d scores for %d passages", domain.ErrRerankUnavailable, len(scores), len(hits))
	}

	out := make([]result.Hit, len(hits))
	for i, h := range hits {
		out[i] = h.WithScore((1-rerankWeight)*h.Score() + rerankWeight*scores[i])
	}
	sortHits(out)
	return out, nil
}

package retrieve

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
)

// Per-hop score decay.
const (
	sequentialDecay   = 0.8
	hierarchicalDecay = 0.6
)

func decay(rel graph.Relation) (float64, bool) {
	switch {
	case rel.IsSequential():
		return sequentialDecay, true
	case rel.IsHierarchical():
		return hierarchicalDecay, true
	}
	return 0, false
}

// expand walks up to hops edges from every hit. A reached chunk scores its
// predecessor's score times the edge decay; the best path wins. Reached chunks
// must pass f. The result is deduplicated and sorted, not truncated.
func expand(ctx context.Context, store Store, hits []result.Hit, hops int, f filter.Filters) ([]result.Hit, error) {
	best := make(map[string]float64, len(hits))
	for _, h := range hits {
		best[h.ID()] = h.Score()
	}

	frontier := best
	for hop := 0; hop < hops && len(frontier) > 0; hop++ {
		next := make(map[string]float64)
		for id, score := range frontier {
			neighbors, err := store.Neighbors(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("neighbors of %s: %w", id, err)
			}
			for _, n := range neighbors {
				d, ok := decay(n.Relation)
				if !ok {
					continue
				}
				s := score * d
				if cur, seen := best[n.ChunkID]; seen && cur >= s {
					continue
				}
				best[n.ChunkID] = s
				next[n.ChunkID] = s
			}
		}
		frontier = next
	}

	byID := make(map[string]result.Hit, len(hits))
	for _, h := range hits {
		byID[h.ID()] = h
	}
	var fetch []string
	for id := range best {
		if _, ok := byID[id]; !ok {
			fetch = append(fetch, id)
		}
	}

	out := make([]result.Hit, 0, len(best))
	for _, h := range hits {
		out = append(out, h.WithScore(best[h.ID()]))
	}
	if len(fetch) > 0 {
		chunks, err := store.GetChunks(ctx, fetch)
		if err != nil {
			return nil, fmt.Errorf("fetch expanded chunks: %w", err)
		}
		for _, c := range chunks {
			if !f.Matches(c) {
				continue
			}
			out = append(out, result.New(c, best[c.ID()], result.SourceExpansion))
		}
	}
	sortHits(out)
	return out, nil
}

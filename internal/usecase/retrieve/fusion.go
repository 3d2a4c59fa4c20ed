package retrieve

import (
	"sort"

	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// candidate is one id seen by either ranking.
type candidate struct {
	hit       result.Hit
	vector    float64
	keyword   float64
	inVector  bool
	inKeyword bool
}

// union merges both rankings by chunk id. The vector copy of a chunk wins, it
// always carries the embedding.
func union(vec, kw []graph.Scored) (map[string]*candidate, []string) {
	merged := make(map[string]*candidate, len(vec)+len(kw))
	order := make([]string, 0, len(vec)+len(kw))
	for _, s := range vec {
		id := s.Chunk.ID()
		merged[id] = &candidate{hit: result.New(s.Chunk, 0, result.SourceVector), vector: s.Score, inVector: true}
		order = append(order, id)
	}
	for _, s := range kw {
		id := s.Chunk.ID()
		if c, ok := merged[id]; ok {
			c.keyword, c.inKeyword = s.Score, true
			c.hit = c.hit.WithSource(result.SourceHybrid)
			continue
		}
		merged[id] = &candidate{hit: result.New(s.Chunk, 0, result.SourceKeyword), keyword: s.Score, inKeyword: true}
		order = append(order, id)
	}
	return merged, order
}

// fuseWeighted scores vectorWeight*minmax(vector) + keywordWeight*minmax(keyword).
// A chunk missing from one ranking gets 0 for it.
func fuseWeighted(vec, kw []graph.Scored, vectorWeight, keywordWeight float64) []result.Hit {
	merged, order := union(vec, kw)
	nv := minMax(vec)
	nk := minMax(kw)

	hits := make([]result.Hit, 0, len(order))
	for _, id := range order {
		c := merged[id]
		hits = append(hits, c.hit.WithScore(vectorWeight*nv[id]+keywordWeight*nk[id]))
	}
	sortHits(hits)
	return hits
}

// fuseRRF merges rankings via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
func fuseRRF(vec, kw []graph.Scored) []result.Hit {
	merged, order := union(vec, kw)
	rank := func(list []graph.Scored) map[string]float64 {
		out := make(map[string]float64, len(list))
		for r, s := range list {
			out[s.Chunk.ID()] = 1.0 / float64(rrfK+r+1)
		}
		return out
	}
	rv, rk := rank(vec), rank(kw)

	hits := make([]result.Hit, 0, len(order))
	for _, id := range order {
		hits = append(hits, merged[id].hit.WithScore(rv[id]+rk[id]))
	}
	sortHits(hits)
	return hits
}

// single keeps one ranking with its raw scores.
func single(list []graph.Scored, source result.Source) []result.Hit {
	hits := make([]result.Hit, len(list))
	for i, s := range list {
		hits[i] = result.New(s.Chunk, s.Score, source)
	}
	sortHits(hits)
	return hits
}

// minMax normalizes scores to [0, 1]. A list whose scores are all equal maps to 1.
func minMax(list []graph.Scored) map[string]float64 {
	out := make(map[string]float64, len(list))
	if len(list) == 0 {
		return out
	}
	lo, hi := list[0].Score, list[0].Score
	for _, s := range list[1:] {
		lo = min(lo, s.Score)
		hi = max(hi, s.Score)
	}
	for _, s := range list {
		if hi == lo {
			out[s.Chunk.ID()] = 1
			continue
		}
		out[s.Chunk.ID()] = (s.Score - lo) / (hi - lo)
	}
	return out
}

// sortHits orders by score; ties go to guideline chunks, then by id.
func sortHits(hits []result.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score() != hits[j].Score() {
			return hits[i].Score() > hits[j].Score()
		}
		gi := hits[i].Chunk().DocumentType() == document.Guideline
		gj := hits[j].Chunk().DocumentType() == document.Guideline
		if gi != gj {
			return gi
		}
		return hits[i].ID() < hits[j].ID()
	})
}

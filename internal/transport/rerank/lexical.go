package rerank

import (
	"context"

	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

const (
	termWeight   = 0.7
	phraseWeight = 0.3
)

// Lexical scores passages by query term coverage and adjacent query term pairs
// found in the passage. It needs no model and is deterministic.
type Lexical struct{}

// NewLexical returns the lexical cross-encoder.
func NewLexical() *Lexical { return &Lexical{} }

// Score implements domain.CrossEncoder.
func (Lexical) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := tokenizer.Terms(query)
	scores := make([]float64, len(passages))
	if len(q) == 0 {
		return scores, nil
	}

	for i, p := range passages {
		terms := tokenizer.Terms(p)
		set := make(map[string]struct{}, len(terms))
		pairs := make(map[[2]string]struct{}, len(terms))
		for j, t := range terms {
			set[t] = struct{}{}
			if j > 0 {
				pairs[[2]string{terms[j-1], t}] = struct{}{}
			}
		}

		hit := 0
		for _, t := range q {
			if _, ok := set[t]; ok {
				hit++
			}
		}
		score := termWeight * float64(hit) / float64(len(q))

		if len(q) > 1 {
			pairHits := 0
			for j := 1; j < len(q); j++ {
				if _, ok := pairs[[2]string{q[j-1], q[j]}]; ok {
					pairHits++
				}
			}
			score += phraseWeight * float64(pairHits) / float64(len(q)-1)
		} else if hit > 0 {
			score += phraseWeight
		}
		scores[i] = score
	}
	return scores, nil
}

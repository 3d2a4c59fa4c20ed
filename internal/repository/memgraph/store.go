// Package memgraph is an in-process graph backend. Vector search is a brute-force
// cosine scan and keyword search is Okapi BM25 over the same term analysis the
// lexical embedder uses. It backs tests, the CLI and single-node deployments.
package memgraph

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/clinrag/internal/domain"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type entry struct {
	chunk  chunk.Chunk
	tf     map[string]int
	length int
}

// Store implements graph.Store in memory.
type Store struct {
	mu     sync.RWMutex
	chunks map[string]entry
	docs   map[string]document.Document
	byDoc  map[string][]string
	out    map[string][]graph.Edge
	in     map[string][]graph.Edge // NEXT_CHUNK only
	df     map[string]int
	total  int // sum of indexed lengths
}

// New creates an empty store.
func New() *Store {
	return &Store{
		chunks: make(map[string]entry),
		docs:   make(map[string]document.Document),
		byDoc:  make(map[string][]string),
		out:    make(map[string][]graph.Edge),
		in:     make(map[string][]graph.Edge),
		df:     make(map[string]int),
	}
}

// EnsureSchema is a no-op.
func (s *Store) EnsureSchema(context.Context) error { return nil }

// Ping is a no-op.
func (s *Store) Ping(context.Context) error { return nil }

// WithDocument stages fn's writes and swaps them in under the lock, replacing any
// previous version of doc.
func (s *Store) WithDocument(_ context.Context, doc document.Document, fn func(w graph.Writer) error) error {
	b, err := graph.Stage(doc, fn)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(doc.ID())
	s.docs[doc.ID()] = doc
	ids := make([]string, 0, len(b.Chunks()))
	for _, c := range b.Chunks() {
		s.indexLocked(c)
		ids = append(ids, c.ID())
	}
	s.byDoc[doc.ID()] = ids
	for _, e := range b.Edges() {
		s.out[e.From] = append(s.out[e.From], e)
		if e.Type == graph.NextChunk {
			s.in[e.To] = append(s.in[e.To], e)
		}
	}
	return nil
}

// DeleteDocument removes doc and everything attached to it.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, domain.ErrDocumentNotFound)
	}
	s.removeLocked(id)
	return nil
}

// Documents returns the number of stored documents.
func (s *Store) Documents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Store) indexLocked(c chunk.Chunk) {
	terms := tokenizer.Terms(c.PathString() + " " + c.Content())
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	for t := range tf {
		s.df[t]++
	}
	s.total += len(terms)
	s.chunks[c.ID()] = entry{chunk: c, tf: tf, length: len(terms)}
}

func (s *Store) removeLocked(docID string) {
	for _, id := range s.byDoc[docID] {
		e, ok := s.chunks[id]
		if !ok {
			continue
		}
		for t := range e.tf {
			if s.df[t]--; s.df[t] <= 0 {
				delete(s.df, t)
			}
		}
		s.total -= e.length
		delete(s.chunks, id)
		delete(s.out, id)
		delete(s.in, id)
	}
	delete(s.byDoc, docID)
	delete(s.docs, docID)
}

// VectorSearch scans every chunk matching f and keeps cosine >= threshold.
func (s *Store) VectorSearch(
	_ context.Context, vector []float32, k int, threshold float64, f filter.Filters,
) ([]graph.Scored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []graph.Scored
	for _, e := range s.chunks {
		emb := e.chunk.Embedding()
		if len(emb) == 0 || !f.Matches(e.chunk) {
			continue
		}
		if len(emb) != len(vector) {
			return nil, fmt.Errorf("chunk %s has %d dims, query %d: %w",
				e.chunk.ID(), len(emb), len(vector), domain.ErrVectorDimMismatch)
		}
		score := domain.Cosine(vector, emb)
		if score < threshold {
			continue
		}
		hits = append(hits, graph.Scored{Chunk: e.chunk, Score: score})
	}
	return top(hits, k), nil
}

// KeywordSearch ranks chunks by BM25 over the query terms.
func (s *Store) KeywordSearch(_ context.Context, query string, k int, f filter.Filters) ([]graph.Scored, error) {
	terms := tokenizer.TermSet(query)
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := float64(len(s.chunks))
	if n == 0 {
		return nil, nil
	}
	avg := float64(s.total) / n

	var hits []graph.Scored
	for _, e := range s.chunks {
		if !f.Matches(e.chunk) {
			continue
		}
		var score float64
		for t := range terms {
			tf := float64(e.tf[t])
			if tf == 0 {
				continue
			}
			df := float64(s.df[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - bm25B + bm25B*float64(e.length)/avg
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
		if score > 0 {
			hits = append(hits, graph.Scored{Chunk: e.chunk, Score: score})
		}
	}
	return top(hits, k), nil
}

// Neighbors returns outgoing edges of id plus incoming NEXT_CHUNK edges.
func (s *Store) Neighbors(_ context.Context, id string) ([]graph.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graph.Neighbor, 0, len(s.out[id])+len(s.in[id]))
	for _, e := range s.out[id] {
		out = append(out, graph.Neighbor{ChunkID: e.To, Relation: e.Type})
	}
	for _, e := range s.in[id] {
		out = append(out, graph.Neighbor{ChunkID: e.From, Relation: e.Type, Incoming: true})
	}
	return out, nil
}

// GetChunks returns the chunks that exist, in the order of ids.
func (s *Store) GetChunks(_ context.Context, ids []string) ([]chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chunk.Chunk, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.chunks[id]; ok {
			out = append(out, e.chunk)
		}
	}
	return out, nil
}

// top sorts by score descending, ties by id, and keeps k.
func top(hits []graph.Scored, k int) []graph.Scored {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID() < hits[j].Chunk.ID()
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

var _ graph.Store = (*Store)(nil)

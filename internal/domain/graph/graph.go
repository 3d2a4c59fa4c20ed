// Package graph models the typed relationships between chunks and documents.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
)

// Relation is a directed edge type.
type Relation string

// Relation constants.
const (
	NextChunk Relation = "NEXT_CHUNK"
	ParentOf  Relation = "PARENT_OF"
	ChildOf   Relation = "CHILD_OF"
	BelongsTo Relation = "BELONGS_TO"
)

// IsSequential reports whether r links chunks in reading order.
func (r Relation) IsSequential() bool { return r == NextChunk }

// IsHierarchical reports whether r links chunks along the section tree.
func (r Relation) IsHierarchical() bool { return r == ParentOf || r == ChildOf }

// ParseRelation returns the relation for s and whether it is known.
func ParseRelation(s string) (Relation, bool) {
	switch r := Relation(s); r {
	case NextChunk, ParentOf, ChildOf, BelongsTo:
		return r, true
	}
	return "", false
}

// Edge is a directed relationship between two chunks.
type Edge struct {
	From          string
	To            string
	Type          Relation
	OverlapTokens int // NEXT_CHUNK only
}

// Neighbor is an edge seen from one chunk. Incoming NEXT_CHUNK edges are reported
// with Incoming set so traversal can walk back to the preceding chunk.
type Neighbor struct {
	ChunkID  string
	Relation Relation
	Incoming bool
}

// Writer persists one document's chunks and links. Implementations run every call
// inside the transaction opened by the store's WithDocument.
type Writer interface {
	StoreChunk(ctx context.Context, c chunk.Chunk, embedding []float32, doc document.Document) (string, error)
	LinkSequential(ctx context.Context, chunks []chunk.Chunk) error
	LinkHierarchy(ctx context.Context, chunks []chunk.Chunk) error
}

// Scored is a backend search hit. Vector scores are cosine similarities,
// keyword scores are backend-native relevance (BM25 or ts_rank).
type Scored struct {
	Chunk chunk.Chunk
	Score float64
}

// Reader is the query side of a graph backend.
type Reader interface {
	VectorSearch(ctx context.Context, vector []float32, k int, threshold float64, f filter.Filters) ([]Scored, error)
	KeywordSearch(ctx context.Context, query string, k int, f filter.Filters) ([]Scored, error)
	Neighbors(ctx context.Context, chunkID string) ([]Neighbor, error)
	GetChunks(ctx context.Context, ids []string) ([]chunk.Chunk, error)
}

// Store is a complete graph backend.
type Store interface {
	Reader
	// WithDocument upserts doc and replaces its chunks with whatever fn writes.
	// Either all of fn's writes are committed or none; an error from fn rolls back.
	WithDocument(ctx context.Context, doc document.Document, fn func(w Writer) error) error
	DeleteDocument(ctx context.Context, id string) error
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
}

// ErrForeignChunk signals a write for a chunk outside the document being written.
var ErrForeignChunk = errors.New("chunk does not belong to the document")

// Batch stages one document's writes. Backends hand it to fn in WithDocument and
// commit its contents in a single transaction afterwards.
type Batch struct {
	doc    document.Document
	chunks []chunk.Chunk
	edges  []Edge
}

// NewBatch starts a batch for doc.
func NewBatch(doc document.Document) *Batch { return &Batch{doc: doc} }

// StoreChunk implements Writer.
func (b *Batch) StoreChunk(_ context.Context, c chunk.Chunk, embedding []float32, doc document.Document) (string, error) {
	if doc.ID() != b.doc.ID() || c.DocumentID() != b.doc.ID() {
		return "", fmt.Errorf("%w: chunk %s of %q written to %q", ErrForeignChunk, c.ID(), c.DocumentID(), b.doc.ID())
	}
	b.chunks = append(b.chunks, c.WithEmbedding(embedding))
	return c.ID(), nil
}

// LinkSequential implements Writer.
func (b *Batch) LinkSequential(_ context.Context, chunks []chunk.Chunk) error {
	b.edges = append(b.edges, SequentialEdges(chunks)...)
	return nil
}

// LinkHierarchy implements Writer.
func (b *Batch) LinkHierarchy(_ context.Context, chunks []chunk.Chunk) error {
	b.edges = append(b.edges, HierarchyEdges(chunks)...)
	return nil
}

// Document returns the document being written.
func (b *Batch) Document() document.Document { return b.doc }

// Chunks returns the staged chunks, embeddings attached.
func (b *Batch) Chunks() []chunk.Chunk { return b.chunks }

// Edges returns the staged chunk-to-chunk edges.
func (b *Batch) Edges() []Edge { return b.edges }

// Stage runs fn against a fresh batch for doc.
func Stage(doc document.Document, fn func(w Writer) error) (*Batch, error) {
	b := NewBatch(doc)
	if err := fn(b); err != nil {
		return nil, err
	}
	return b, nil
}

// SequentialEdges returns NEXT_CHUNK edges in document order. Each edge carries the
// overlap tokens its two chunks copied from each other.
func SequentialEdges(chunks []chunk.Chunk) []Edge {
	ordered := byOrdinal(chunks)
	edges := make([]Edge, 0, len(ordered))
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].DocumentID() != ordered[i].DocumentID() {
			continue
		}
		edges = append(edges, Edge{
			From:          ordered[i-1].ID(),
			To:            ordered[i].ID(),
			Type:          NextChunk,
			OverlapTokens: ordered[i-1].TrailingOverlapTokens() + ordered[i].LeadingOverlapTokens(),
		})
	}
	return edges
}

// HierarchyEdges returns PARENT_OF/CHILD_OF pairs. A chunk's parent is the first chunk
// (in document order) of the deepest ancestor section present in the same document.
func HierarchyEdges(chunks []chunk.Chunk) []Edge {
	ordered := byOrdinal(chunks)

	// first chunk per (document, section path)
	first := make(map[string]string, len(ordered))
	for _, c := range ordered {
		key := c.DocumentID() + "\x00" + c.PathString()
		if _, ok := first[key]; !ok {
			first[key] = c.ID()
		}
	}

	var edges []Edge
	for _, c := range ordered {
		path := c.SectionPath()
		for l := len(path) - 1; l >= 1; l-- {
			parentID, ok := first[c.DocumentID()+"\x00"+chunk.JoinPath(path[:l])]
			if !ok {
				continue
			}
			edges = append(edges,
				Edge{From: parentID, To: c.ID(), Type: ParentOf},
				Edge{From: c.ID(), To: parentID, Type: ChildOf},
			)
			break
		}
	}
	return edges
}

func byOrdinal(chunks []chunk.Chunk) []chunk.Chunk {
	ordered := append([]chunk.Chunk(nil), chunks...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].DocumentID() != ordered[j].DocumentID() {
			return ordered[i].DocumentID() < ordered[j].DocumentID()
		}
		return ordered[i].Ordinal() < ordered[j].Ordinal()
	})
	return ordered
}

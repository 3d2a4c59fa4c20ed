package ingest

import (
	"context"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
)

// Store is the write side of the graph backend.
type Store interface {
	WithDocument(ctx context.Context, doc document.Document, fn func(w graph.Writer) error) error
	DeleteDocument(ctx context.Context, id string) error
}

// Chunker splits a document into chunks; satisfied by chunking.Chunker.
type Chunker interface {
	Chunk(ctx context.Context, doc document.Document, text string) chunking.Result
}

// ChunkEmbedder attaches vectors to chunks; satisfied by embedding.Generator.
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []chunk.Chunk) ([]chunk.Chunk, error)
}

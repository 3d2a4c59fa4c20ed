package retrieve

import (
	"context"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
)

// Store is the read side of the graph backend.
type Store interface {
	VectorSearch(ctx context.Context, vector []float32, k int, threshold float64, f filter.Filters) ([]graph.Scored, error)
	KeywordSearch(ctx context.Context, query string, k int, f filter.Filters) ([]graph.Scored, error)
	Neighbors(ctx context.Context, chunkID string) ([]graph.Neighbor, error)
	GetChunks(ctx context.Context, ids []string) ([]chunk.Chunk, error)
}

// QueryEmbedder embeds query text; satisfied by embedding.Generator.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

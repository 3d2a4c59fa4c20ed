package retrieve

import (
	"context"
	"fmt"
	"testing"

	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/graph"
	"github.com/kailas-cloud/clinrag/internal/domain/search/filter"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
)

// --- Mocks ---

type mockStore struct {
	vector      []graph.Scored
	vectorErr   error
	keyword     []graph.Scored
	keywordErr  error
	neighbors   map[string][]graph.Neighbor
	chunks      map[string]chunk.Chunk
	vectorK     int
	keywordK    int
	vectorCalls int
	kwCalls     int
}

func (m *mockStore) VectorSearch(_ context.Context, _ []float32, k int, _ float64, _ filter.Filters) ([]graph.Scored, error) {
	m.vectorCalls++
	m.vectorK = k
	return m.vector, m.vectorErr
}

func (m *mockStore) KeywordSearch(_ context.Context, _ string, k int, _ filter.Filters) ([]graph.Scored, error) {
	m.kwCalls++
	m.keywordK = k
	return m.keyword, m.keywordErr
}

func (m *mockStore) Neighbors(_ context.Context, id string) ([]graph.Neighbor, error) {
	return m.neighbors[id], nil
}

func (m *mockStore) GetChunks(_ context.Context, ids []string) ([]chunk.Chunk, error) {
	var out []chunk.Chunk
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockEmbedder struct {
	vec  []float32
	err  error
	wait bool
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, _ string) ([]float32, error) {
	if m.wait {
		<-ctx.Done()
		return nil, fmt.Errorf("embed: %w", ctx.Err())
	}
	return m.vec, m.err
}

type mockCrossEncoder struct {
	scores []float64
	err    error
	calls  int
}

func (m *mockCrossEncoder) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.scores != nil {
		return m.scores, nil
	}
	return make([]float64, len(passages)), nil
}

// --- Fixtures ---

func mkChunk(docID string, typ document.Type, ordinal int, content string) chunk.Chunk {
	return chunk.New(chunk.Params{
		DocumentID:   docID,
		DocumentType: typ,
		Ordinal:      ordinal,
		Content:      content,
		SemanticType: chunk.General,
	}, tokenizer.NewLexical())
}

func scored(c chunk.Chunk, s float64) graph.Scored { return graph.Scored{Chunk: c, Score: s} }

func newRequest(t *testing.T, opts request.Options) request.Request {
	t.Helper()
	req, err := request.New("active surveillance eligibility", filter.Filters{}, opts)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return req
}

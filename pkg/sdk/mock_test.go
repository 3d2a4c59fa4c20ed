package clinrag

import (
	"context"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	dombatch "github.com/kailas-cloud/clinrag/internal/domain/batch"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/clinrag/internal/usecase/health"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

// --- ingestUseCase mock ---

type mockIngestUC struct {
	ingestFn      func(ctx context.Context, in ingest.Input) (ingest.Report, error)
	ingestBatchFn func(ctx context.Context, items []ingest.Input) []dombatch.Result
	deleteFn      func(ctx context.Context, id string) error
	previewFn     func(ctx context.Context, in ingest.Input) (chunking.Result, error)
}

func (m *mockIngestUC) Ingest(ctx context.Context, in ingest.Input) (ingest.Report, error) {
	return m.ingestFn(ctx, in)
}

func (m *mockIngestUC) IngestBatch(ctx context.Context, items []ingest.Input) []dombatch.Result {
	return m.ingestBatchFn(ctx, items)
}

func (m *mockIngestUC) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockIngestUC) Preview(ctx context.Context, in ingest.Input) (chunking.Result, error) {
	return m.previewFn(ctx, in)
}

// --- retrieveUseCase mock ---

type mockRetrieveUC struct {
	retrieveFn func(ctx context.Context, req request.Request) ([]result.Hit, error)
}

func (m *mockRetrieveUC) Retrieve(ctx context.Context, req request.Request) ([]result.Hit, error) {
	return m.retrieveFn(ctx, req)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- public Embedder mocks ---

type fixedEmbedder struct {
	vec []float32
	err error
}

func (e *fixedEmbedder) Embed(context.Context, string) (EmbeddingResult, error) {
	if e.err != nil {
		return EmbeddingResult{}, e.err
	}
	return EmbeddingResult{Embedding: e.vec, PromptTokens: 2, TotalTokens: 2}, nil
}

type batchingEmbedder struct {
	fixedEmbedder
	calls int
}

func (e *batchingEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	e.calls++
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts)), TotalTokens: len(texts)}
	for i := range texts {
		out.Embeddings[i] = e.vec
	}
	return out, nil
}

package clinrag

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	dombatch "github.com/kailas-cloud/clinrag/internal/domain/batch"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/domain/search/mode"
	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
	"github.com/kailas-cloud/clinrag/internal/domain/search/result"
	"github.com/kailas-cloud/clinrag/internal/tokenizer"
	healthuc "github.com/kailas-cloud/clinrag/internal/usecase/health"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

func testChunk(ordinal int, content string) chunk.Chunk {
	return chunk.New(chunk.Params{
		DocumentID:    "aua-2023",
		DocumentType:  document.Guideline,
		Ordinal:       ordinal,
		Content:       content,
		SectionPath:   []string{"Localized Disease", "Low Risk"},
		SemanticType:  chunk.Recommendation,
		EvidenceLevel: "A",
	}, tokenizer.NewLexical())
}

func TestDocumentService_Ingest(t *testing.T) {
	var got ingest.Input
	svc := &DocumentService{svc: &mockIngestUC{
		ingestFn: func(_ context.Context, in ingest.Input) (ingest.Report, error) {
			got = in
			return ingest.Report{
				DocumentID: in.ID,
				Type:       document.Guideline,
				Assembler:  "hierarchical-semantic",
				Chunks:     3,
			}, nil
		},
	}}

	rep, err := svc.Ingest(context.Background(), Document{ID: "aua-2023", Type: "guidelines", Text: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != document.Guideline {
		t.Errorf("type alias not parsed: %q", got.Type)
	}
	if rep.Chunks != 3 || rep.Assembler != "hierarchical-semantic" || rep.Type != TypeGuideline {
		t.Errorf("unexpected report: %+v", rep)
	}
}

func TestDocumentService_Ingest_InvalidType(t *testing.T) {
	svc := &DocumentService{svc: &mockIngestUC{}}
	_, err := svc.Ingest(context.Background(), Document{Type: "poster", Text: "x"})
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestDocumentService_Ingest_Error(t *testing.T) {
	svc := &DocumentService{svc: &mockIngestUC{
		ingestFn: func(context.Context, ingest.Input) (ingest.Report, error) {
			return ingest.Report{}, ErrEmbeddingUnavailable
		},
	}}
	_, err := svc.Ingest(context.Background(), Document{Text: "x"})
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestDocumentService_IngestBatch(t *testing.T) {
	svc := &DocumentService{svc: &mockIngestUC{
		ingestBatchFn: func(_ context.Context, items []ingest.Input) []dombatch.Result {
			return []dombatch.Result{
				dombatch.NewOK(0, items[0].ID, 4),
				dombatch.NewError(1, items[1].ID, ErrInvalidDocument),
			}
		},
	}}

	res, err := svc.IngestBatch(context.Background(), []Document{
		{ID: "a", Text: "first"},
		{ID: "b", Text: ""},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if !res[0].OK || res[0].Chunks != 4 || res[0].ID != "a" {
		t.Errorf("unexpected first result: %+v", res[0])
	}
	if res[1].OK || !errors.Is(res[1].Err, ErrInvalidDocument) {
		t.Errorf("unexpected second result: %+v", res[1])
	}
}

func TestDocumentService_IngestBatch_InvalidType(t *testing.T) {
	svc := &DocumentService{svc: &mockIngestUC{}}
	_, err := svc.IngestBatch(context.Background(), []Document{{Text: "x"}, {Type: "poster", Text: "y"}})
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestDocumentService_Delete(t *testing.T) {
	svc := &DocumentService{svc: &mockIngestUC{
		deleteFn: func(_ context.Context, id string) error {
			if id != "missing" {
				t.Errorf("unexpected id %q", id)
			}
			return ErrDocumentNotFound
		},
	}}
	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDocumentService_Preview(t *testing.T) {
	svc := &DocumentService{svc: &mockIngestUC{
		previewFn: func(context.Context, ingest.Input) (chunking.Result, error) {
			return chunking.Result{
				Type:      document.Guideline,
				Assembler: "hierarchical-semantic",
				Chunks:    []chunk.Chunk{testChunk(0, "Offer active surveillance.")},
			}, nil
		},
	}}

	p, err := svc.Preview(context.Background(), Document{Text: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(p.Chunks))
	}
	c := p.Chunks[0]
	if c.SemanticType != "recommendation" || c.EvidenceLevel != "A" || len(c.SectionPath) != 2 {
		t.Errorf("unexpected chunk: %+v", c)
	}
	if c.TokenCount == 0 || c.ID == "" {
		t.Errorf("expected id and token count: %+v", c)
	}
}

func TestRetrieverService_Retrieve(t *testing.T) {
	var got request.Request
	svc := &RetrieverService{
		defaults: request.Options{K: 5, Rerank: true, MMR: true},
		svc: &mockRetrieveUC{
			retrieveFn: func(_ context.Context, req request.Request) ([]result.Hit, error) {
				got = req
				return []result.Hit{result.New(testChunk(0, "Offer active surveillance."), 0.9, result.SourceHybrid)}, nil
			},
		},
	}

	hits, err := svc.Retrieve(context.Background(), "active surveillance", RetrieveOptions{
		K:              3,
		Mode:           ModeKeyword,
		EvidenceLevels: []string{"A"},
		DisableRerank:  true,
		Expand:         true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Score != 0.9 || hits[0].DocumentID != "aua-2023" {
		t.Fatalf("unexpected hits: %+v", hits)
	}

	o := got.Options()
	if o.K != 3 || o.Mode != mode.Keyword || o.Rerank || !o.MMR || !o.Expand {
		t.Errorf("unexpected options: %+v", o)
	}
	if lv := got.Filters().EvidenceLevels(); len(lv) != 1 || lv[0] != "A" {
		t.Errorf("unexpected filters: %v", lv)
	}
}

func TestRetrieverService_Defaults(t *testing.T) {
	var got request.Request
	svc := &RetrieverService{
		defaults: request.Options{Rerank: true, MMR: true},
		svc: &mockRetrieveUC{
			retrieveFn: func(_ context.Context, req request.Request) ([]result.Hit, error) {
				got = req
				return nil, nil
			},
		},
	}

	hits, err := svc.Retrieve(context.Background(), "eligibility", RetrieveOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", hits)
	}
	o := got.Options()
	if o.K != request.DefaultK || o.Mode != mode.Hybrid || !o.Rerank || !o.MMR {
		t.Errorf("unexpected defaults: %+v", o)
	}
}

func TestRetrieverService_InvalidQuery(t *testing.T) {
	svc := &RetrieverService{svc: &mockRetrieveUC{
		retrieveFn: func(context.Context, request.Request) ([]result.Hit, error) {
			t.Fatal("retrieve must not be called")
			return nil, nil
		},
	}}

	tests := []struct {
		name  string
		query string
		opts  RetrieveOptions
	}{
		{"empty query", "  ", RetrieveOptions{}},
		{"unknown mode", "q", RetrieveOptions{Mode: "fuzzy"}},
		{"unknown document type", "q", RetrieveOptions{DocumentTypes: []DocumentType{"poster"}}},
		{"threshold out of range", "q", RetrieveOptions{SimilarityThreshold: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Retrieve(context.Background(), tt.query, tt.opts)
			if !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}

func TestRetrieverService_Error(t *testing.T) {
	svc := &RetrieverService{svc: &mockRetrieveUC{
		retrieveFn: func(context.Context, request.Request) ([]result.Hit, error) {
			return nil, ErrStorageUnavailable
		},
	}}
	if _, err := svc.Retrieve(context.Background(), "q", RetrieveOptions{}); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestClient_Health(t *testing.T) {
	c := &Client{healthSvc: &mockHealthUC{report: healthuc.Report{
		Status:  healthuc.Degraded,
		Checks:  map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "embedding": healthuc.CheckError},
		Details: map[string]string{"embedding": "status 429"},
	}}}

	h := c.Health(context.Background())
	if h.Status != "degraded" || h.OK() {
		t.Errorf("Status = %q", h.Status)
	}
	if h.Errors["embedding"] != "status 429" {
		t.Errorf("Errors = %v", h.Errors)
	}
	if h.Checks["embedding"] != "error" || h.Checks["database"] != "ok" {
		t.Errorf("Checks = %v", h.Checks)
	}
}

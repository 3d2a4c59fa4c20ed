package clinrag

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/clinrag/internal/chunking"
	dombatch "github.com/kailas-cloud/clinrag/internal/domain/batch"
	"github.com/kailas-cloud/clinrag/internal/domain/chunk"
	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

// DocumentService ingests, previews and deletes documents.
type DocumentService struct {
	svc ingestUseCase
	obs *observer
}

// Ingest chunks, embeds and stores one document, replacing any previous version
// with the same ID.
func (s *DocumentService) Ingest(ctx context.Context, doc Document) (_ IngestReport, err error) {
	start := time.Now()
	chunks := -1
	defer func() { s.obs.observe("document.ingest", start, chunks, err) }()

	in, err := toInput(doc)
	if err != nil {
		return IngestReport{}, err
	}
	rep, err := s.svc.Ingest(ctx, in)
	if err != nil {
		return IngestReport{}, err
	}
	chunks = rep.Chunks
	return IngestReport{
		DocumentID: rep.DocumentID,
		Type:       DocumentType(rep.Type),
		Assembler:  rep.Assembler,
		Chunks:     rep.Chunks,
		Oversized:  rep.Oversized,
		FellBack:   rep.FellBack,
		Warnings:   rep.Warnings,
	}, nil
}

// IngestBatch ingests documents concurrently. Each document succeeds or fails on
// its own; results come back in input order.
func (s *DocumentService) IngestBatch(ctx context.Context, docs []Document) (_ []BatchResult, err error) {
	start := time.Now()
	chunks := -1
	defer func() { s.obs.observe("document.ingest_batch", start, chunks, err) }()

	items := make([]ingest.Input, len(docs))
	for i, d := range docs {
		in, err := toInput(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		items[i] = in
	}

	results := s.svc.IngestBatch(ctx, items)
	out := make([]BatchResult, len(results))
	chunks = 0
	for i, r := range results {
		out[i] = BatchResult{
			ID:     r.ID(),
			OK:     r.Status() == dombatch.StatusOK,
			Chunks: r.Chunks(),
			Err:    r.Err(),
		}
		chunks += r.Chunks()
	}
	return out, nil
}

// Delete removes a document with its chunks and edges.
func (s *DocumentService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("document.delete", start, -1, err) }()

	return s.svc.Delete(ctx, id)
}

// Preview returns the chunks a document would produce, without embedding or storing it.
func (s *DocumentService) Preview(ctx context.Context, doc Document) (_ Preview, err error) {
	start := time.Now()
	chunks := -1
	defer func() { s.obs.observe("document.preview", start, chunks, err) }()

	in, err := toInput(doc)
	if err != nil {
		return Preview{}, err
	}
	res, err := s.svc.Preview(ctx, in)
	if err != nil {
		return Preview{}, err
	}
	chunks = len(res.Chunks)
	return fromResult(res), nil
}

func toInput(d Document) (ingest.Input, error) {
	typ, err := document.ParseType(string(d.Type))
	if err != nil {
		return ingest.Input{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return ingest.Input{
		ID:     d.ID,
		Title:  d.Title,
		Source: d.Source,
		Type:   typ,
		Text:   d.Text,
	}, nil
}

func fromResult(res chunking.Result) Preview {
	out := Preview{
		Type:      DocumentType(res.Type),
		Assembler: res.Assembler,
		FellBack:  res.FellBack,
		Warnings:  res.Warnings,
		Chunks:    make([]Chunk, len(res.Chunks)),
	}
	for i, c := range res.Chunks {
		out.Chunks[i] = fromChunk(c)
	}
	return out
}

func fromChunk(c chunk.Chunk) Chunk {
	return Chunk{
		ID:                     c.ID(),
		DocumentID:             c.DocumentID(),
		Ordinal:                c.Ordinal(),
		Content:                c.Content(),
		TokenCount:             c.TokenCount(),
		SectionPath:            c.SectionPath(),
		SemanticType:           string(c.SemanticType()),
		EvidenceLevel:          c.EvidenceLevel(),
		RecommendationStrength: c.RecommendationStrength(),
		Oversized:              c.Oversized(),
	}
}
